/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package classifier

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/retail-sensing/footfall-service/pkg/timeindex"
)

// ConversionStats summarizes one classified population.
type ConversionStats struct {
	TotalTraffic   int     `json:"total_traffic"`
	PassByCount    int     `json:"pass_by_count"`
	VisitCount     int     `json:"visit_count"`
	ConversionRate float64 `json:"conversion_rate"`
	AvgDwellPassBy float64 `json:"avg_dwell_pass_by"`
	AvgDwellVisit  float64 `json:"avg_dwell_visit"`
}

// Conversion computes the visit share and average dwell per outcome. An
// empty population yields all zeros, not an error.
func Conversion(records []Record) ConversionStats {
	var stats ConversionStats
	var dwellVisit, dwellPassBy float64

	for _, record := range records {
		switch record.Outcome {
		case Visit:
			stats.VisitCount++
			dwellVisit += record.DwellMinutes
		default:
			stats.PassByCount++
			dwellPassBy += record.DwellMinutes
		}
	}

	stats.TotalTraffic = stats.VisitCount + stats.PassByCount
	if stats.TotalTraffic > 0 {
		stats.ConversionRate = float64(stats.VisitCount) / float64(stats.TotalTraffic)
	}
	if stats.VisitCount > 0 {
		stats.AvgDwellVisit = dwellVisit / float64(stats.VisitCount)
	}
	if stats.PassByCount > 0 {
		stats.AvgDwellPassBy = dwellPassBy / float64(stats.PassByCount)
	}
	return stats
}

// HourlyConversion is one hour's classified traffic.
type HourlyConversion struct {
	Hour           int     `json:"hour"`
	TotalTraffic   int     `json:"total_traffic"`
	PassByCount    int     `json:"pass_by_count"`
	VisitCount     int     `json:"visit_count"`
	ConversionRate float64 `json:"conversion_rate"`
}

// HourlyAnalysis re-classifies each hour's observations independently: a
// device dwelling across an hour boundary is judged per hour, not once
// globally. Returns all 24 hours; empty input returns nil.
func HourlyAnalysis(strategy Strategy, observations []Observation) []HourlyConversion {
	if len(observations) == 0 {
		return nil
	}

	byHour := make(map[int][]Observation)
	for _, observation := range observations {
		hour := timeindex.ToHour(observation.TimeIndex)
		byHour[hour] = append(byHour[hour], observation)
	}

	hourly := make([]HourlyConversion, 0, 24)
	for hour := 0; hour < 24; hour++ {
		entry := HourlyConversion{Hour: hour}
		if group, ok := byHour[hour]; ok {
			stats := Conversion(strategy.Classify(group))
			entry.TotalTraffic = stats.TotalTraffic
			entry.PassByCount = stats.PassByCount
			entry.VisitCount = stats.VisitCount
			entry.ConversionRate = stats.ConversionRate
		}
		hourly = append(hourly, entry)
	}
	return hourly
}

// PeakHours holds the three independent argmax hours over an hourly series.
type PeakHours struct {
	PeakTrafficHour    int `json:"peak_traffic_hour"`
	PeakVisitHour      int `json:"peak_visit_hour"`
	PeakConversionHour int `json:"peak_conversion_hour"`
}

// Peaks finds the hours with the most traffic, the most visits, and the best
// conversion rate. Ties resolve to the earliest hour. Returns false when the
// series is empty.
func Peaks(hourly []HourlyConversion) (PeakHours, bool) {
	if len(hourly) == 0 {
		return PeakHours{}, false
	}

	peaks := PeakHours{
		PeakTrafficHour:    hourly[0].Hour,
		PeakVisitHour:      hourly[0].Hour,
		PeakConversionHour: hourly[0].Hour,
	}
	bestTraffic := hourly[0].TotalTraffic
	bestVisits := hourly[0].VisitCount
	bestConversion := hourly[0].ConversionRate

	for _, entry := range hourly[1:] {
		if entry.TotalTraffic > bestTraffic {
			bestTraffic = entry.TotalTraffic
			peaks.PeakTrafficHour = entry.Hour
		}
		if entry.VisitCount > bestVisits {
			bestVisits = entry.VisitCount
			peaks.PeakVisitHour = entry.Hour
		}
		if entry.ConversionRate > bestConversion {
			bestConversion = entry.ConversionRate
			peaks.PeakConversionHour = entry.Hour
		}
	}
	return peaks, true
}

// WeekdayPattern aggregates conversion behaviour per weekday across days.
type WeekdayPattern struct {
	Weekday           time.Weekday `json:"weekday"`
	AvgConversionRate float64      `json:"avg_conversion_rate"`
	AvgVisitCount     float64      `json:"avg_visit_count"`
	Days              int          `json:"days"`
}

// WeekdayPatterns averages daily conversion stats by weekday. Keys are
// "2006-01-02" dates; unparseable keys are skipped. Weekdays with no data
// are omitted.
func WeekdayPatterns(daily map[string]ConversionStats) []WeekdayPattern {
	conversions := make(map[time.Weekday][]float64)
	visits := make(map[time.Weekday][]float64)

	for day, stats := range daily {
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		weekday := date.Weekday()
		conversions[weekday] = append(conversions[weekday], stats.ConversionRate)
		visits[weekday] = append(visits[weekday], float64(stats.VisitCount))
	}

	patterns := make([]WeekdayPattern, 0, len(conversions))
	for weekday, rates := range conversions {
		patterns = append(patterns, WeekdayPattern{
			Weekday:           weekday,
			AvgConversionRate: stat.Mean(rates, nil),
			AvgVisitCount:     stat.Mean(visits[weekday], nil),
			Days:              len(rates),
		})
	}

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Weekday < patterns[j].Weekday })
	return patterns
}
