/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package timeindex converts between day-relative 10-second time buckets and
// wall-clock representations.
package timeindex

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// UnitSeconds is the width of one time_index bucket.
const UnitSeconds = 10

// SecondsPerHour in time_index terms: one hour spans 360 buckets.
const (
	SecondsPerHour = 3600
	PerHour        = SecondsPerHour / UnitSeconds
)

// ToSeconds converts a time index to day-relative seconds.
func ToSeconds(timeIndex int) int {
	return timeIndex * UnitSeconds
}

// ToMinutes converts a time index span to minutes.
func ToMinutes(timeIndexSpan int) float64 {
	return float64(timeIndexSpan*UnitSeconds) / 60.0
}

// ToHour returns the hour-of-day bucket a time index falls in.
func ToHour(timeIndex int) int {
	return timeIndex * UnitSeconds / SecondsPerHour
}

// ToClock formats a time index as "HH:MM:SS".
func ToClock(timeIndex int) string {
	totalSeconds := timeIndex * UnitSeconds
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// FromClock parses "HH:MM" or "HH:MM:SS" into a time index, truncating to
// the containing bucket.
func FromClock(clock string) (int, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, errors.Errorf("invalid time format: %s", clock)
	}

	var fields [3]int
	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid time format: %s", clock)
		}
		fields[i] = value
	}

	totalSeconds := fields[0]*3600 + fields[1]*60 + fields[2]
	return totalSeconds / UnitSeconds, nil
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(date time.Time) bool {
	weekday := date.Weekday()
	return weekday == time.Saturday || weekday == time.Sunday
}

// FormatDuration renders minutes as a compact human-readable duration.
func FormatDuration(minutes float64) string {
	switch {
	case minutes < 1:
		return fmt.Sprintf("%ds", int(minutes*60))
	case minutes < 60:
		return fmt.Sprintf("%dm", int(minutes))
	default:
		return fmt.Sprintf("%dh %dm", int(minutes)/60, int(minutes)%60)
	}
}
