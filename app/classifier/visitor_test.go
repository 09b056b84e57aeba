/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-sensing/footfall-service/app/detection"
	"github.com/retail-sensing/footfall-service/app/stitcher"
)

func TestVisitorStats(t *testing.T) {
	records := []Record{
		{Outcome: Visit, DetectionSeconds: 120, AvgRssi: -70},
		{Outcome: Visit, DetectionSeconds: 180, AvgRssi: -72},
		{Outcome: PassBy, DetectionSeconds: 20, AvgRssi: -90},
	}
	stats := Visitors(records)
	assert.Equal(t, 3, stats.TotalIdentifiers)
	assert.Equal(t, 2, stats.RealVisitors)
	assert.Equal(t, 1, stats.PassersBy)
	assert.InDelta(t, 2.0/3.0, stats.VisitorRatio, 1e-9)
	assert.InDelta(t, 150.0, stats.AvgDwellVisitorsSeconds, 1e-9)
	assert.InDelta(t, -71.0, stats.AvgRssiVisitors, 1e-9)
	assert.InDelta(t, 20.0, stats.AvgDwellPassersSeconds, 1e-9)

	empty := Visitors(nil)
	assert.Zero(t, empty.TotalIdentifiers)
	assert.Zero(t, empty.VisitorRatio)
}

func TestHourlyVisitorPattern(t *testing.T) {
	observations := []Observation{
		{TimeIndex: 3240, Identifier: "v1"},
		{TimeIndex: 3250, Identifier: "v1"},
		{TimeIndex: 3260, Identifier: "p1"},
		{TimeIndex: 3700, Identifier: "v1"},
	}
	records := []Record{
		{Identifier: "v1", Outcome: Visit},
		{Identifier: "p1", Outcome: PassBy},
	}

	pattern := HourlyVisitorPattern(observations, records)
	require.Len(t, pattern, 2)

	assert.Equal(t, 9, pattern[0].Hour)
	assert.Equal(t, 1, pattern[0].RealVisitors)
	assert.Equal(t, 1, pattern[0].PassersBy)
	assert.Equal(t, 2, pattern[0].Total)

	assert.Equal(t, 10, pattern[1].Hour)
	assert.Equal(t, 1, pattern[1].RealVisitors)
	assert.Zero(t, pattern[1].PassersBy)
}

func TestEstimateStitchedVisitors(t *testing.T) {
	// avg dwell 120s = 12 indexes; rotation every 6 indexes → 2 rotations,
	// so 4 raw identifiers estimate 2 physical visitors
	records := []Record{
		{Outcome: Visit, DetectionSeconds: 120},
		{Outcome: Visit, DetectionSeconds: 120},
		{Outcome: Visit, DetectionSeconds: 120},
		{Outcome: Visit, DetectionSeconds: 120},
	}
	adjustment := EstimateStitchedVisitors(records, 6)
	assert.Equal(t, 4, adjustment.RawIdentifierCount)
	assert.InDelta(t, 0.5, adjustment.AdjustmentFactor, 1e-9)
	assert.Equal(t, 2, adjustment.EstimatedRealVisitors)

	// short stays never inflate the estimate above the raw count
	short := []Record{{Outcome: Visit, DetectionSeconds: 20}}
	adjustment = EstimateStitchedVisitors(short, 6)
	assert.InDelta(t, 1.0, adjustment.AdjustmentFactor, 1e-9)
	assert.Equal(t, 1, adjustment.EstimatedRealVisitors)

	// no visitors at all
	adjustment = EstimateStitchedVisitors(nil, 6)
	assert.Zero(t, adjustment.EstimatedRealVisitors)
	assert.InDelta(t, 1.0, adjustment.AdjustmentFactor, 1e-9)
}

func TestClassifyJourneysPoolsIdentifiers(t *testing.T) {
	strategy := dualCondition(t)

	// each identifier alone has 3 detections (below the minimum), but the
	// stitched journey pools 6 inside one window
	observations := append(
		burst("aa:01", detection.ClassIphone, 0, 3, -70),
		burst("bb:02", detection.ClassIphone, 3, 3, -70)...,
	)

	journeys := []stitcher.Journey{{
		ID:              "J0001",
		Identifiers:     []string{"aa:01", "bb:02"},
		DeviceClass:     detection.ClassIphone,
		FirstTime:       0,
		LastTime:        5,
		LifetimeSeconds: 50,
		Appearances:     6,
	}}

	// identifier-level classification rejects both
	for _, record := range strategy.Classify(observations) {
		assert.Equal(t, PassBy, record.Outcome)
	}

	// journey-level classification qualifies the pooled device
	journeyRecords := strategy.ClassifyJourneys(observations, journeys)
	require.Len(t, journeyRecords, 1)
	assert.Equal(t, Visit, journeyRecords[0].Outcome)
	assert.Equal(t, 2, journeyRecords[0].IdentifierCount)
	assert.Equal(t, 50, journeyRecords[0].DwellSeconds)
}

func TestClassifyJourneysSingletonsMatchIdentifierPath(t *testing.T) {
	strategy := dualCondition(t)

	observations := append(
		burst("aa:01", detection.ClassIphone, 0, 6, -70),
		burst("bb:02", detection.ClassIphone, 100, 2, -90)...,
	)

	journeys := []stitcher.Journey{
		{ID: "J0001", Identifiers: []string{"aa:01"}, DeviceClass: detection.ClassIphone},
		{ID: "J0002", Identifiers: []string{"bb:02"}, DeviceClass: detection.ClassIphone},
	}

	identifierRecords := strategy.Classify(observations)
	journeyRecords := strategy.ClassifyJourneys(observations, journeys)
	require.Len(t, journeyRecords, 2)

	// singleton journeys must agree with per-identifier classification
	for i, journeyRecord := range journeyRecords {
		assert.Equal(t, identifierRecords[i].Outcome, journeyRecord.Outcome,
			"journey %s diverged from its identifier", journeyRecord.JourneyID)
	}
}

func TestJourneyVisitors(t *testing.T) {
	records := []JourneyRecord{
		{Outcome: Visit, IdentifierCount: 3, DwellSeconds: 300, AvgRssi: -70},
		{Outcome: PassBy, IdentifierCount: 1, DwellSeconds: 30, AvgRssi: -88},
	}
	stats := JourneyVisitors(records)
	assert.Equal(t, 2, stats.TotalJourneys)
	assert.Equal(t, 1, stats.RealVisitors)
	assert.Equal(t, 3, stats.TotalIdentifiersVisitors)
	assert.InDelta(t, 3.0, stats.AvgIdentifiersPerVisitor, 1e-9)
	assert.InDelta(t, 300.0, stats.AvgDwellVisitorsSeconds, 1e-9)
	assert.InDelta(t, 0.5, stats.VisitorRatio, 1e-9)
}
