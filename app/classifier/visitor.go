/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package classifier

import (
	"sort"

	"github.com/retail-sensing/footfall-service/pkg/timeindex"
)

// VisitorStats summarizes a classified population in visitor terms, using
// the detection-count dwell rather than the first-to-last span.
type VisitorStats struct {
	TotalIdentifiers int     `json:"total_macs"`
	RealVisitors     int     `json:"real_visitors"`
	PassersBy        int     `json:"passers_by"`
	VisitorRatio     float64 `json:"visitor_ratio"`

	AvgDwellVisitorsSeconds float64 `json:"avg_dwell_time_visitors"`
	AvgDwellPassersSeconds  float64 `json:"avg_dwell_time_passers"`
	AvgRssiVisitors         float64 `json:"avg_rssi_visitors"`
	AvgRssiPassers          float64 `json:"avg_rssi_passers"`
}

// Visitors computes visitor statistics over classified records.
func Visitors(records []Record) VisitorStats {
	var stats VisitorStats
	var dwellVisitors, dwellPassers, rssiVisitors, rssiPassers float64

	for _, record := range records {
		if record.Outcome == Visit {
			stats.RealVisitors++
			dwellVisitors += float64(record.DetectionSeconds)
			rssiVisitors += record.AvgRssi
		} else {
			stats.PassersBy++
			dwellPassers += float64(record.DetectionSeconds)
			rssiPassers += record.AvgRssi
		}
	}

	stats.TotalIdentifiers = stats.RealVisitors + stats.PassersBy
	if stats.TotalIdentifiers > 0 {
		stats.VisitorRatio = float64(stats.RealVisitors) / float64(stats.TotalIdentifiers)
	}
	if stats.RealVisitors > 0 {
		stats.AvgDwellVisitorsSeconds = dwellVisitors / float64(stats.RealVisitors)
		stats.AvgRssiVisitors = rssiVisitors / float64(stats.RealVisitors)
	}
	if stats.PassersBy > 0 {
		stats.AvgDwellPassersSeconds = dwellPassers / float64(stats.PassersBy)
		stats.AvgRssiPassers = rssiPassers / float64(stats.PassersBy)
	}
	return stats
}

// HourlyVisitors is one hour's unique visitor and passer counts.
type HourlyVisitors struct {
	Hour         int `json:"hour"`
	RealVisitors int `json:"real_visitors"`
	PassersBy    int `json:"passers_by"`
	Total        int `json:"total"`
}

// HourlyVisitorPattern counts, per hour of activity, how many already
// classified visitors and passers-by were present. Only hours with activity
// appear, in ascending order.
func HourlyVisitorPattern(observations []Observation, records []Record) []HourlyVisitors {
	outcomes := make(map[string]Outcome, len(records))
	for _, record := range records {
		outcomes[record.Identifier] = record.Outcome
	}

	type hourSet struct {
		visitors map[string]bool
		passers  map[string]bool
	}
	byHour := make(map[int]*hourSet)

	for _, observation := range observations {
		outcome, known := outcomes[observation.Identifier]
		if !known {
			continue
		}
		hour := timeindex.ToHour(observation.TimeIndex)
		set, ok := byHour[hour]
		if !ok {
			set = &hourSet{visitors: make(map[string]bool), passers: make(map[string]bool)}
			byHour[hour] = set
		}
		if outcome == Visit {
			set.visitors[observation.Identifier] = true
		} else {
			set.passers[observation.Identifier] = true
		}
	}

	hours := make([]int, 0, len(byHour))
	for hour := range byHour {
		hours = append(hours, hour)
	}
	sort.Ints(hours)

	pattern := make([]HourlyVisitors, 0, len(hours))
	for _, hour := range hours {
		set := byHour[hour]
		pattern = append(pattern, HourlyVisitors{
			Hour:         hour,
			RealVisitors: len(set.visitors),
			PassersBy:    len(set.passers),
			Total:        len(set.visitors) + len(set.passers),
		})
	}
	return pattern
}

// StitchAdjustment estimates how many physical visitors a raw identifier
// count represents once MAC rotation is accounted for.
type StitchAdjustment struct {
	EstimatedRealVisitors int     `json:"estimated_real_visitors"`
	AdjustmentFactor      float64 `json:"adjustment_factor"`
	RawIdentifierCount    int     `json:"raw_mac_count"`
	AvgDwellSeconds       float64 `json:"avg_dwell_time"`
}

// EstimateStitchedVisitors divides the visitor count by the expected number
// of identifier rotations over an average stay. rotationIntervalIndexes is
// the typical rotation period in time indexes (6 = 60 seconds).
func EstimateStitchedVisitors(records []Record, rotationIntervalIndexes int) StitchAdjustment {
	var visitors []Record
	for _, record := range records {
		if record.Outcome == Visit {
			visitors = append(visitors, record)
		}
	}

	if len(visitors) == 0 {
		return StitchAdjustment{AdjustmentFactor: 1.0}
	}

	var dwellSum float64
	for _, record := range visitors {
		dwellSum += float64(record.DetectionSeconds)
	}
	avgDwellSeconds := dwellSum / float64(len(visitors))
	avgDwellIndexes := avgDwellSeconds / timeindex.UnitSeconds

	estimatedRotations := avgDwellIndexes / float64(rotationIntervalIndexes)
	if estimatedRotations < 1 {
		estimatedRotations = 1
	}
	factor := 1.0 / estimatedRotations

	return StitchAdjustment{
		EstimatedRealVisitors: int(float64(len(visitors)) * factor),
		AdjustmentFactor:      factor,
		RawIdentifierCount:    len(visitors),
		AvgDwellSeconds:       avgDwellSeconds,
	}
}
