/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package classifier

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/retail-sensing/footfall-service/app/stitcher"
)

// JourneyRecord is one classified journey: the dual-condition rule applied
// to the pooled observations of every identifier in the journey.
type JourneyRecord struct {
	JourneyID       string   `json:"journey_id"`
	Identifiers     []string `json:"macs"`
	IdentifierCount int      `json:"mac_count"`
	DeviceClass     int      `json:"device_type"`
	Outcome         Outcome  `json:"visitor_type"`

	DwellSeconds int     `json:"dwell_time"`
	AvgRssi      float64 `json:"avg_rssi"`
	RssiStd      float64 `json:"rssi_std"`
	FirstTime    int     `json:"first_time"`
	LastTime     int     `json:"last_time"`
	Appearances  int     `json:"appearance_count"`
}

// ClassifyJourneys classifies stitched journeys instead of raw identifiers.
// Pooling the rotated identifiers lets a visitor qualify even when no single
// identifier lived long enough on its own.
func (strategy *DualConditionStrategy) ClassifyJourneys(observations []Observation, journeys []stitcher.Journey) []JourneyRecord {
	grouped := groupByIdentifier(observations)

	records := make([]JourneyRecord, 0, len(journeys))
	for _, journey := range journeys {
		var pooled []Observation
		for _, identifier := range journey.Identifiers {
			pooled = append(pooled, grouped[identifier]...)
		}

		pooled = sortedByTime(pooled)
		rssis := make([]float64, len(pooled))
		for i, observation := range pooled {
			rssis[i] = observation.RSSI
		}

		outcome := PassBy
		if len(pooled) > 0 && strategy.qualifies(pooled, strategy.thresholds.For(journey.DeviceClass)) {
			outcome = Visit
		}

		record := JourneyRecord{
			JourneyID:       journey.ID,
			Identifiers:     journey.Identifiers,
			IdentifierCount: len(journey.Identifiers),
			DeviceClass:     journey.DeviceClass,
			Outcome:         outcome,
			DwellSeconds:    journey.LifetimeSeconds,
			FirstTime:       journey.FirstTime,
			LastTime:        journey.LastTime,
			Appearances:     journey.Appearances,
		}
		if len(rssis) > 0 {
			record.AvgRssi = stat.Mean(rssis, nil)
			record.RssiStd = stat.PopStdDev(rssis, nil)
		}
		records = append(records, record)
	}
	return records
}

// JourneyVisitorStats summarizes classified journeys, including how many
// identifiers folded into each outcome.
type JourneyVisitorStats struct {
	TotalJourneys int     `json:"total_journeys"`
	RealVisitors  int     `json:"real_visitors"`
	PassersBy     int     `json:"passers_by"`
	VisitorRatio  float64 `json:"visitor_ratio"`

	AvgDwellVisitorsSeconds float64 `json:"avg_dwell_time_visitors"`
	AvgDwellPassersSeconds  float64 `json:"avg_dwell_time_passers"`
	AvgRssiVisitors         float64 `json:"avg_rssi_visitors"`
	AvgRssiPassers          float64 `json:"avg_rssi_passers"`

	TotalIdentifiersVisitors int     `json:"total_macs_visitors"`
	TotalIdentifiersPassers  int     `json:"total_macs_passers"`
	AvgIdentifiersPerVisitor float64 `json:"avg_mac_per_visitor"`
	AvgIdentifiersPerPasser  float64 `json:"avg_mac_per_passer"`
}

// JourneyVisitors computes visitor statistics over classified journeys.
func JourneyVisitors(records []JourneyRecord) JourneyVisitorStats {
	var stats JourneyVisitorStats
	var dwellVisitors, dwellPassers, rssiVisitors, rssiPassers float64

	for _, record := range records {
		if record.Outcome == Visit {
			stats.RealVisitors++
			stats.TotalIdentifiersVisitors += record.IdentifierCount
			dwellVisitors += float64(record.DwellSeconds)
			rssiVisitors += record.AvgRssi
		} else {
			stats.PassersBy++
			stats.TotalIdentifiersPassers += record.IdentifierCount
			dwellPassers += float64(record.DwellSeconds)
			rssiPassers += record.AvgRssi
		}
	}

	stats.TotalJourneys = stats.RealVisitors + stats.PassersBy
	if stats.TotalJourneys > 0 {
		stats.VisitorRatio = float64(stats.RealVisitors) / float64(stats.TotalJourneys)
	}
	if stats.RealVisitors > 0 {
		stats.AvgDwellVisitorsSeconds = dwellVisitors / float64(stats.RealVisitors)
		stats.AvgRssiVisitors = rssiVisitors / float64(stats.RealVisitors)
		stats.AvgIdentifiersPerVisitor = float64(stats.TotalIdentifiersVisitors) / float64(stats.RealVisitors)
	}
	if stats.PassersBy > 0 {
		stats.AvgDwellPassersSeconds = dwellPassers / float64(stats.PassersBy)
		stats.AvgRssiPassers = rssiPassers / float64(stats.PassersBy)
		stats.AvgIdentifiersPerPasser = float64(stats.TotalIdentifiersPassers) / float64(stats.PassersBy)
	}
	return stats
}

func sortedByTime(observations []Observation) []Observation {
	ordered := make([]Observation, len(observations))
	copy(ordered, observations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].TimeIndex < ordered[j].TimeIndex })
	return ordered
}
