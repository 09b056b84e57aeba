/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package analysis

import (
	"github.com/retail-sensing/footfall-service/app/classifier"
)

// OverallStats averages the daily conversion outcomes over a store's whole
// analysis period.
type OverallStats struct {
	TotalDays         int     `json:"total_days"`
	AvgConversionRate float64 `json:"avg_conversion_rate"`
	AvgVisitCount     float64 `json:"avg_visit_count"`
	AvgDailyVisits    float64 `json:"avg_daily_visits"`
	AvgTotalTraffic   float64 `json:"avg_total_traffic"`
}

// HourlyPatternRow is one hour averaged across all analyzed days.
type HourlyPatternRow struct {
	Hour           int     `json:"hour"`
	TotalTraffic   float64 `json:"total_traffic"`
	VisitCount     float64 `json:"visit_count"`
	ConversionRate float64 `json:"conversion_rate"`
}

// AggregatedStats is the cross-day summary block of a store's cache document.
type AggregatedStats struct {
	Overall        OverallStats                `json:"overall"`
	HourlyPattern  []HourlyPatternRow          `json:"hourly_pattern,omitempty"`
	WeekdayPattern []classifier.WeekdayPattern `json:"weekday_pattern,omitempty"`

	MostCommonPeakTrafficHour    int `json:"most_common_peak_traffic_hour"`
	MostCommonPeakVisitHour      int `json:"most_common_peak_visit_hour"`
	MostCommonPeakConversionHour int `json:"most_common_peak_conversion_hour"`
}

// Aggregate folds a store's daily results into the cross-day summary.
func Aggregate(daily []DayResult) AggregatedStats {
	var aggregated AggregatedStats
	if len(daily) == 0 {
		return aggregated
	}

	days := float64(len(daily))
	byDate := make(map[string]classifier.ConversionStats, len(daily))
	for _, day := range daily {
		aggregated.Overall.AvgConversionRate += day.ConversionStats.ConversionRate / days
		aggregated.Overall.AvgVisitCount += float64(day.ConversionStats.VisitCount) / days
		aggregated.Overall.AvgTotalTraffic += float64(day.ConversionStats.TotalTraffic) / days
		byDate[day.Date] = day.ConversionStats
	}
	aggregated.Overall.TotalDays = len(daily)
	aggregated.Overall.AvgDailyVisits = aggregated.Overall.AvgVisitCount

	aggregated.HourlyPattern = hourlyPattern(daily)
	aggregated.WeekdayPattern = classifier.WeekdayPatterns(byDate)

	aggregated.MostCommonPeakTrafficHour = mostCommonHour(daily, func(day DayResult) int {
		return day.Peaks.PeakTrafficHour
	})
	aggregated.MostCommonPeakVisitHour = mostCommonHour(daily, func(day DayResult) int {
		return day.Peaks.PeakVisitHour
	})
	aggregated.MostCommonPeakConversionHour = mostCommonHour(daily, func(day DayResult) int {
		return day.Peaks.PeakConversionHour
	})

	return aggregated
}

// hourlyPattern averages each hour's traffic and visits across days. The
// hourly conversion rate is the pooled visits over pooled traffic, not an
// average of per-day rates, so empty hours do not dilute it.
func hourlyPattern(daily []DayResult) []HourlyPatternRow {
	var traffic, visits [24]int
	seen := false
	for _, day := range daily {
		for _, hour := range day.Hourly {
			traffic[hour.Hour] += hour.TotalTraffic
			visits[hour.Hour] += hour.VisitCount
			seen = true
		}
	}
	if !seen {
		return nil
	}

	days := float64(len(daily))
	rows := make([]HourlyPatternRow, 0, 24)
	for hour := 0; hour < 24; hour++ {
		row := HourlyPatternRow{
			Hour:         hour,
			TotalTraffic: float64(traffic[hour]) / days,
			VisitCount:   float64(visits[hour]) / days,
		}
		if traffic[hour] > 0 {
			row.ConversionRate = float64(visits[hour]) / float64(traffic[hour])
		}
		rows = append(rows, row)
	}
	return rows
}

// mostCommonHour finds the modal hour over the daily peaks, earliest hour on
// ties.
func mostCommonHour(daily []DayResult, pick func(DayResult) int) int {
	var counts [24]int
	for _, day := range daily {
		hour := pick(day)
		if hour >= 0 && hour < 24 {
			counts[hour]++
		}
	}

	best := 0
	for hour := 1; hour < 24; hour++ {
		if counts[hour] > counts[best] {
			best = hour
		}
	}
	return best
}
