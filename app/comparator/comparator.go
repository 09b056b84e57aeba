/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package comparator compares footfall behaviour across stores: traffic
// volumes, time-of-day patterns, dwell distributions, and movement.
package comparator

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/retail-sensing/footfall-service/app/classifier"
	"github.com/retail-sensing/footfall-service/app/detection"
	"github.com/retail-sensing/footfall-service/pkg/timeindex"
)

// minuteBinIndexes groups six 10s indexes into one minute for averaging.
const minuteBinIndexes = 6

// BasicStats is one store's headline numbers for a day. PeakHour is -1 when
// the store had no data.
type BasicStats struct {
	Store           string      `json:"store_name"`
	TotalVisitors   int         `json:"total_visitors"`
	TotalRecords    int         `json:"total_records"`
	AvgDwellMinutes float64     `json:"avg_dwell_time"`
	DeviceClassDist map[int]int `json:"device_type_dist"`
	PeakHour        int         `json:"peak_hour"`
	PeakVisitors    int         `json:"peak_visitors"`
}

// Basic computes headline statistics over one store's positions.
func Basic(store string, positions []detection.Position) BasicStats {
	stats := BasicStats{
		Store:           store,
		DeviceClassDist: make(map[int]int),
		PeakHour:        -1,
	}
	if len(positions) == 0 {
		return stats
	}

	stats.TotalRecords = len(positions)

	hourly := make(map[int]map[string]bool)
	for _, p := range positions {
		stats.DeviceClassDist[p.DeviceClass]++
		hour := timeindex.ToHour(p.TimeIndex)
		if hourly[hour] == nil {
			hourly[hour] = make(map[string]bool)
		}
		hourly[hour][p.Identifier] = true
	}

	dwells := dwellMinutes(positions)
	stats.TotalVisitors = len(dwells)
	var values []float64
	for _, minutes := range dwells {
		values = append(values, minutes)
	}
	stats.AvgDwellMinutes = stat.Mean(values, nil)

	hours := make([]int, 0, len(hourly))
	for hour := range hourly {
		hours = append(hours, hour)
	}
	sort.Ints(hours)
	for _, hour := range hours {
		if count := len(hourly[hour]); count > stats.PeakVisitors {
			stats.PeakVisitors = count
			stats.PeakHour = hour
		}
	}
	return stats
}

// HourlyComparison holds, per category and store, the hour → average number
// of distinct devices present per minute bin.
type HourlyComparison struct {
	Total    map[string]map[int]float64 `json:"total"`
	Visitors map[string]map[int]float64 `json:"visitors"`
	Passers  map[string]map[int]float64 `json:"passers"`
}

// CompareHourlyTraffic averages per-minute unique device counts into hourly
// series, split three ways: everything sensed, classified visitors, and
// classified passers-by. Classification runs once over the whole day's raw
// detections, then the labels drive the per-minute counting.
func CompareHourlyTraffic(storePositions map[string][]detection.Position,
	storeDetections map[string][]detection.Detection, strategy classifier.Strategy) HourlyComparison {

	comparison := HourlyComparison{
		Total:    make(map[string]map[int]float64),
		Visitors: make(map[string]map[int]float64),
		Passers:  make(map[string]map[int]float64),
	}

	for store, positions := range storePositions {
		if len(positions) == 0 {
			continue
		}

		binned := make(map[minuteBin]map[string]bool)
		for _, p := range positions {
			key := minuteBin{hour: timeindex.ToHour(p.TimeIndex), minute: p.TimeIndex / minuteBinIndexes}
			if binned[key] == nil {
				binned[key] = make(map[string]bool)
			}
			binned[key][p.Identifier] = true
		}

		comparison.Total[store] = averagePerHour(binned, nil)

		detections, ok := storeDetections[store]
		if !ok || strategy == nil {
			continue
		}
		visitors := make(map[string]bool)
		passers := make(map[string]bool)
		for _, record := range strategy.Classify(classifier.FromDetections(detections)) {
			if record.Outcome == classifier.Visit {
				visitors[record.Identifier] = true
			} else {
				passers[record.Identifier] = true
			}
		}
		comparison.Visitors[store] = averagePerHour(binned, visitors)
		comparison.Passers[store] = averagePerHour(binned, passers)
	}
	return comparison
}

type minuteBin struct {
	hour   int
	minute int
}

// averagePerHour collapses minute-bin unique counts into per-hour means,
// optionally restricted to one identifier set.
func averagePerHour(binned map[minuteBin]map[string]bool, include map[string]bool) map[int]float64 {

	sums := make(map[int]float64)
	counts := make(map[int]int)
	for key, identifiers := range binned {
		n := 0
		for identifier := range identifiers {
			if include == nil || include[identifier] {
				n++
			}
		}
		sums[key.hour] += float64(n)
		counts[key.hour]++
	}

	averages := make(map[int]float64, len(sums))
	for hour, sum := range sums {
		averages[hour] = sum / float64(counts[hour])
	}
	return averages
}

// Day periods in store-relative hours since opening.
var periodBounds = []struct {
	limit float64
	name  string
}{
	{1.5, "early_morning"},
	{3, "morning"},
	{4.5, "late_morning"},
	{6, "lunch"},
	{7.5, "afternoon"},
	{9, "late_afternoon"},
	{10.5, "evening"},
	{math.Inf(1), "night"},
}

// PeriodOf maps a time index to its named day period.
func PeriodOf(timeIndex int) string {
	hour := float64(timeindex.ToSeconds(timeIndex)) / 3600.0
	for _, bound := range periodBounds {
		if hour < bound.limit {
			return bound.name
		}
	}
	return "night"
}

// ComparePeriodTraffic counts unique devices per day period per store.
func ComparePeriodTraffic(storePositions map[string][]detection.Position) map[string]map[string]int {
	result := make(map[string]map[string]int)
	for store, positions := range storePositions {
		if len(positions) == 0 {
			continue
		}
		periods := make(map[string]map[string]bool)
		for _, p := range positions {
			period := PeriodOf(p.TimeIndex)
			if periods[period] == nil {
				periods[period] = make(map[string]bool)
			}
			periods[period][p.Identifier] = true
		}
		counts := make(map[string]int, len(periods))
		for period, identifiers := range periods {
			counts[period] = len(identifiers)
		}
		result[store] = counts
	}
	return result
}

// CompareWeekdayTraffic counts unique devices per weekday per store across
// multiple dated days. Keys of the inner map are "2006-01-02" dates.
func CompareWeekdayTraffic(storeDays map[string]map[string][]detection.Position) map[string]map[time.Weekday]int {
	result := make(map[string]map[time.Weekday]int)
	for store, days := range storeDays {
		sets := make(map[time.Weekday]map[string]bool)
		for day, positions := range days {
			date, err := time.Parse("2006-01-02", day)
			if err != nil {
				continue
			}
			weekday := date.Weekday()
			if sets[weekday] == nil {
				sets[weekday] = make(map[string]bool)
			}
			for _, p := range positions {
				sets[weekday][p.Identifier] = true
			}
		}
		if len(sets) == 0 {
			continue
		}
		counts := make(map[time.Weekday]int, len(sets))
		for weekday, identifiers := range sets {
			counts[weekday] = len(identifiers)
		}
		result[store] = counts
	}
	return result
}

// DayTypeCounts splits unique device counts into weekday and weekend.
type DayTypeCounts struct {
	Weekday int `json:"Weekday"`
	Weekend int `json:"Weekend"`
}

// CompareWeekendVsWeekday counts unique devices on weekdays vs weekends.
func CompareWeekendVsWeekday(storeDays map[string]map[string][]detection.Position) map[string]DayTypeCounts {
	result := make(map[string]DayTypeCounts)
	for store, days := range storeDays {
		weekday := make(map[string]bool)
		weekend := make(map[string]bool)
		seen := false
		for day, positions := range days {
			date, err := time.Parse("2006-01-02", day)
			if err != nil {
				continue
			}
			seen = true
			target := weekday
			if timeindex.IsWeekend(date) {
				target = weekend
			}
			for _, p := range positions {
				target[p.Identifier] = true
			}
		}
		if seen {
			result[store] = DayTypeCounts{Weekday: len(weekday), Weekend: len(weekend)}
		}
	}
	return result
}

// DwellBuckets is a store's dwell-time distribution.
type DwellBuckets struct {
	VeryShort int `json:"very_short"` // under 3 minutes
	Short     int `json:"short"`      // 3 to 10
	Medium    int `json:"medium"`     // 10 to 30
	Long      int `json:"long"`       // 30 to 60
	VeryLong  int `json:"very_long"`  // 60 and over
}

// CompareDwellDistribution buckets per-device dwell spans per store.
func CompareDwellDistribution(storePositions map[string][]detection.Position) map[string]DwellBuckets {
	result := make(map[string]DwellBuckets)
	for store, positions := range storePositions {
		if len(positions) == 0 {
			continue
		}
		var buckets DwellBuckets
		for _, minutes := range dwellMinutes(positions) {
			switch {
			case minutes < 3:
				buckets.VeryShort++
			case minutes < 10:
				buckets.Short++
			case minutes < 30:
				buckets.Medium++
			case minutes < 60:
				buckets.Long++
			default:
				buckets.VeryLong++
			}
		}
		result[store] = buckets
	}
	return result
}

// MovementStats summarizes how far and how fast devices moved.
type MovementStats struct {
	AvgDistance   float64 `json:"avg_distance"`
	TotalDistance float64 `json:"total_distance"`
	AvgSpeed      float64 `json:"avg_speed"`
}

// Movement computes path-length statistics over one store's positions.
// Devices with a single estimate contribute no path. Speed is total distance
// over the day's observed span, in coordinate units per second.
func Movement(positions []detection.Position) MovementStats {
	var stats MovementStats
	if len(positions) == 0 {
		return stats
	}

	ordered := make([]detection.Position, len(positions))
	copy(ordered, positions)
	detection.SortPositions(ordered)

	var paths []float64
	minTime, maxTime := ordered[0].TimeIndex, ordered[0].TimeIndex
	start := 0
	for i := 1; i <= len(ordered); i++ {
		if i < len(ordered) {
			if ordered[i].TimeIndex < minTime {
				minTime = ordered[i].TimeIndex
			}
			if ordered[i].TimeIndex > maxTime {
				maxTime = ordered[i].TimeIndex
			}
		}
		if i == len(ordered) || ordered[i].Identifier != ordered[start].Identifier {
			if i-start >= 2 {
				path := 0.0
				for j := start + 1; j < i; j++ {
					path += math.Hypot(ordered[j].X-ordered[j-1].X, ordered[j].Y-ordered[j-1].Y)
				}
				paths = append(paths, path)
			}
			start = i
		}
	}

	if len(paths) > 0 {
		stats.AvgDistance = stat.Mean(paths, nil)
		for _, path := range paths {
			stats.TotalDistance += path
		}
	}

	spanSeconds := timeindex.ToSeconds(maxTime - minTime)
	if spanSeconds > 0 {
		stats.AvgSpeed = stats.TotalDistance / float64(spanSeconds)
	}
	return stats
}

// CompareConversion runs conversion statistics per store over already
// classified records.
func CompareConversion(storeRecords map[string][]classifier.Record) map[string]classifier.ConversionStats {
	result := make(map[string]classifier.ConversionStats, len(storeRecords))
	for store, records := range storeRecords {
		result[store] = classifier.Conversion(records)
	}
	return result
}

// dwellMinutes computes the per-identifier span dwell in minutes.
func dwellMinutes(positions []detection.Position) map[string]float64 {
	first := make(map[string]int)
	last := make(map[string]int)
	for _, p := range positions {
		if current, ok := first[p.Identifier]; !ok || p.TimeIndex < current {
			first[p.Identifier] = p.TimeIndex
		}
		if current, ok := last[p.Identifier]; !ok || p.TimeIndex > current {
			last[p.Identifier] = p.TimeIndex
		}
	}
	dwells := make(map[string]float64, len(first))
	for identifier, start := range first {
		dwells[identifier] = timeindex.ToMinutes(last[identifier] - start)
	}
	return dwells
}
