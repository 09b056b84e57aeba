/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package classifier decides which observed devices actually visited the
// store and which merely passed by, and derives conversion statistics.
//
// Two strategies exist with materially different semantics and they are never
// interchangeable: DwellSpan is the legacy span-only rule, DualCondition is
// the RSSI-aware windowed rule. Call sites must pick one explicitly.
package classifier

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/retail-sensing/footfall-service/app/detection"
	"github.com/retail-sensing/footfall-service/pkg/timeindex"
)

// Outcome labels one subject as a visit or a pass-by.
type Outcome string

const (
	Visit  Outcome = "visit"
	PassBy Outcome = "pass_by"
)

// Thresholds carries the per-device-class RSSI visit thresholds. Android
// radios report systematically weaker signal than iPhones, so the bar
// differs per class.
type Thresholds struct {
	ByClass map[int]float64
	Default float64
}

// DefaultThresholds returns the deployed threshold table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ByClass: map[int]float64{
			detection.ClassIphone:  -75,
			detection.ClassAndroid: -85,
		},
		Default: -80,
	}
}

// For returns the threshold for a device class.
func (thresholds Thresholds) For(deviceClass int) float64 {
	if threshold, ok := thresholds.ByClass[deviceClass]; ok {
		return threshold
	}
	return thresholds.Default
}

// Observation is the classification input row: one sighting of an identifier.
// RSSI is only meaningful when the observations come from raw detections;
// position-derived observations carry zero RSSI and only suit the span rule.
type Observation struct {
	TimeIndex   int
	Identifier  string
	DeviceClass int
	RSSI        float64
}

// FromDetections adapts raw detections into observations.
func FromDetections(detections []detection.Detection) []Observation {
	observations := make([]Observation, len(detections))
	for i, d := range detections {
		observations[i] = Observation{
			TimeIndex:   d.TimeIndex,
			Identifier:  d.Identifier,
			DeviceClass: d.DeviceClass,
			RSSI:        d.RSSI,
		}
	}
	return observations
}

// FromPositions adapts localized positions into observations. The RSSI field
// is zero; only span-based classification is valid on these.
func FromPositions(positions []detection.Position) []Observation {
	observations := make([]Observation, len(positions))
	for i, p := range positions {
		observations[i] = Observation{
			TimeIndex:   p.TimeIndex,
			Identifier:  p.Identifier,
			DeviceClass: p.DeviceClass,
		}
	}
	return observations
}

// Record is one classified identifier.
type Record struct {
	Identifier  string  `json:"mac_address"`
	DeviceClass int     `json:"device_type"`
	FirstSeen   int     `json:"first_seen"`
	LastSeen    int     `json:"last_seen"`
	RecordCount int     `json:"record_count"`
	Outcome     Outcome `json:"traffic_type"`

	// DwellMinutes spans first to last sighting.
	DwellMinutes float64 `json:"dwell_time_minutes"`
	// DetectionSeconds counts sightings at 10s each, a dwell proxy that is
	// robust to a single stray late detection.
	DetectionSeconds int `json:"dwell_time"`

	AvgRssi       float64 `json:"avg_rssi"`
	RssiStd       float64 `json:"rssi_std"`
	RssiThreshold float64 `json:"rssi_threshold_used"`
}

// Strategy is one named classification rule. Classify returns one record per
// identifier, ordered by identifier.
type Strategy interface {
	Name() string
	Classify(observations []Observation) []Record
}

// DwellSpanStrategy is the legacy rule: a subject visits when its observed
// span reaches the threshold, regardless of signal strength. Looser than the
// dual-condition rule; kept for comparability with historical reports.
type DwellSpanStrategy struct {
	thresholdMinutes float64
}

// NewDwellSpan builds the span-only strategy.
func NewDwellSpan(thresholdMinutes float64) (*DwellSpanStrategy, error) {
	if thresholdMinutes <= 0 {
		return nil, errors.Errorf("dwell threshold must be positive, got %f", thresholdMinutes)
	}
	return &DwellSpanStrategy{thresholdMinutes: thresholdMinutes}, nil
}

func (strategy *DwellSpanStrategy) Name() string { return "dwell_span" }

func (strategy *DwellSpanStrategy) Classify(observations []Observation) []Record {
	records := summarize(observations, Thresholds{})
	for i := range records {
		if records[i].DwellMinutes >= strategy.thresholdMinutes {
			records[i].Outcome = Visit
		} else {
			records[i].Outcome = PassBy
		}
		records[i].RssiThreshold = 0
	}
	return records
}

// DualConditionStrategy is the deployed rule: a subject visits only if some
// sliding window holds enough detections and the window's mean RSSI clears
// the device-class threshold. Both conditions must hold in the same window.
type DualConditionStrategy struct {
	windowIndexes int
	minDetections int
	thresholds    Thresholds
}

// NewDualCondition builds the windowed rule. windowMinutes is the sliding
// window width (typically 2 minutes = 12 time indexes).
func NewDualCondition(windowMinutes float64, minDetections int, thresholds Thresholds) (*DualConditionStrategy, error) {
	windowIndexes := int(windowMinutes * 60 / timeindex.UnitSeconds)
	if windowIndexes <= 0 {
		return nil, errors.Errorf("window must span at least one time index, got %f minutes", windowMinutes)
	}
	if minDetections < 1 {
		return nil, errors.Errorf("min detections must be at least 1, got %d", minDetections)
	}
	return &DualConditionStrategy{
		windowIndexes: windowIndexes,
		minDetections: minDetections,
		thresholds:    thresholds,
	}, nil
}

func (strategy *DualConditionStrategy) Name() string { return "dual_condition" }

func (strategy *DualConditionStrategy) Classify(observations []Observation) []Record {
	records := summarize(observations, strategy.thresholds)

	grouped := groupByIdentifier(observations)
	for i := range records {
		group := grouped[records[i].Identifier]
		if strategy.qualifies(group, strategy.thresholds.For(records[i].DeviceClass)) {
			records[i].Outcome = Visit
		} else {
			records[i].Outcome = PassBy
		}
	}
	return records
}

// qualifies slides a window from every detection's time index and exits on
// the first window satisfying both conditions. Subjects with fewer total
// detections than the window minimum are rejected without scanning.
func (strategy *DualConditionStrategy) qualifies(group []Observation, threshold float64) bool {
	if len(group) < strategy.minDetections {
		return false
	}

	for i := range group {
		windowEnd := group[i].TimeIndex + strategy.windowIndexes

		j := i
		var rssiSum float64
		for j < len(group) && group[j].TimeIndex < windowEnd {
			rssiSum += group[j].RSSI
			j++
		}

		count := j - i
		if count >= strategy.minDetections && rssiSum/float64(count) > threshold {
			return true
		}
	}
	return false
}

// summarize computes the per-identifier base statistics shared by both
// strategies, ordered by identifier. Outcome is left for the strategy.
func summarize(observations []Observation, thresholds Thresholds) []Record {
	grouped := groupByIdentifier(observations)

	identifiers := make([]string, 0, len(grouped))
	for identifier := range grouped {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)

	records := make([]Record, 0, len(identifiers))
	for _, identifier := range identifiers {
		group := grouped[identifier]

		rssis := make([]float64, len(group))
		for i, observation := range group {
			rssis[i] = observation.RSSI
		}

		first := group[0].TimeIndex
		last := group[len(group)-1].TimeIndex
		deviceClass := group[0].DeviceClass

		records = append(records, Record{
			Identifier:       identifier,
			DeviceClass:      deviceClass,
			FirstSeen:        first,
			LastSeen:         last,
			RecordCount:      len(group),
			DwellMinutes:     timeindex.ToMinutes(last - first),
			DetectionSeconds: len(group) * timeindex.UnitSeconds,
			AvgRssi:          stat.Mean(rssis, nil),
			RssiStd:          stat.PopStdDev(rssis, nil),
			RssiThreshold:    thresholds.For(deviceClass),
		})
	}
	return records
}

// groupByIdentifier buckets observations per identifier, each bucket sorted
// by time index.
func groupByIdentifier(observations []Observation) map[string][]Observation {
	grouped := make(map[string][]Observation)
	for _, observation := range observations {
		grouped[observation.Identifier] = append(grouped[observation.Identifier], observation)
	}
	for _, group := range grouped {
		sort.Slice(group, func(i, j int) bool { return group[i].TimeIndex < group[j].TimeIndex })
	}
	return grouped
}
