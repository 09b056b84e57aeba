/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-sensing/footfall-service/app/classifier"
	"github.com/retail-sensing/footfall-service/app/resultstore"
	"github.com/retail-sensing/footfall-service/app/store"
)

func testOptions() Options {
	return Options{
		SmoothingAlpha:          0.3,
		StitchTimeWindowSeconds: 60,
		StitchThreshold:         0.6,
		DwellWindowMinutes:      2.0,
		MinDetectionsInWindow:   6,
		Thresholds:              classifier.DefaultThresholds(),
		MaxWorkers:              2,
	}
}

// burstRows emits count detection rows for one identifier, one per time
// index starting at from.
func burstRows(identifier string, deviceClass, from, count int, rssi float64) string {
	var builder strings.Builder
	for i := 0; i < count; i++ {
		fmt.Fprintf(&builder, "%d,W1,%s,%d,%.0f\n", from+i, identifier, deviceClass, rssi)
	}
	return builder.String()
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fixtureLoader builds a base with two stores: alpha has a ward plan and two
// days, beta has one day and no plan.
func fixtureLoader(t *testing.T) *store.Loader {
	t.Helper()
	base := t.TempDir()

	alpha := filepath.Join(base, "alpha")
	require.NoError(t, os.Mkdir(alpha, 0o755))
	writeFixture(t, filepath.Join(alpha, "wards.csv"), "name,x,y\nW1,0,0\nW2,10,0\n")

	header := "time_index,sward_name,mac_address,type,rssi\n"
	// visitor qualifies (6 strong detections in-window), passer does not
	writeFixture(t, filepath.Join(alpha, "2025-08-18_parsing.csv"),
		header+burstRows("aa:01", 1, 100, 6, -65)+burstRows("bb:02", 1, 200, 2, -90))
	// one visitor in hour 10
	writeFixture(t, filepath.Join(alpha, "2025-08-19_parsing.csv"),
		header+burstRows("cc:03", 10, 3600, 6, -70))

	beta := filepath.Join(base, "beta")
	require.NoError(t, os.Mkdir(beta, 0o755))
	writeFixture(t, filepath.Join(beta, "2025-08-18_parsing.csv"),
		header+burstRows("dd:04", 1, 50, 6, -60))

	loader, err := store.NewLoader(base)
	require.NoError(t, err)
	return loader
}

func TestNewEngineValidation(t *testing.T) {
	loader := fixtureLoader(t)

	options := testOptions()
	options.MaxWorkers = 0
	_, err := NewEngine(loader, options)
	assert.Error(t, err)

	options = testOptions()
	options.DwellWindowMinutes = 0
	_, err = NewEngine(loader, options)
	assert.Error(t, err)

	options = testOptions()
	options.StitchThreshold = 1.5
	_, err = NewEngine(loader, options)
	assert.Error(t, err)
}

func TestEngineRun(t *testing.T) {
	engine, err := NewEngine(fixtureLoader(t), testOptions())
	require.NoError(t, err)

	results := engine.Run(context.Background(), nil)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Profile.Name)
	assert.Equal(t, "beta", results[1].Profile.Name)

	alpha := results[0]
	require.Len(t, alpha.Daily, 2)
	assert.Equal(t, "2025-08-18", alpha.Daily[0].Date)

	day := alpha.Daily[0]
	assert.Equal(t, 2, day.ConversionStats.TotalTraffic)
	assert.Equal(t, 1, day.ConversionStats.VisitCount)
	assert.InDelta(t, 0.5, day.ConversionStats.ConversionRate, 1e-9)
	assert.Equal(t, 0, day.Peaks.PeakTrafficHour)

	// plan present: both identifiers become singleton journeys
	assert.Equal(t, 2, day.JourneyCount)
	assert.Equal(t, 1, day.JourneyStats.RealVisitors)
	assert.Equal(t, 1, day.JourneyStats.PassersBy)

	assert.Equal(t, 10, alpha.Daily[1].Peaks.PeakTrafficHour)

	// no ward plan: classification still runs, stitching is skipped
	beta := results[1]
	require.Len(t, beta.Daily, 1)
	assert.Equal(t, 1, beta.Daily[0].ConversionStats.VisitCount)
	assert.Zero(t, beta.Daily[0].JourneyCount)
}

func TestEngineRunUnknownStore(t *testing.T) {
	engine, err := NewEngine(fixtureLoader(t), testOptions())
	require.NoError(t, err)

	// unknown stores are skipped, known ones still analyzed
	results := engine.Run(context.Background(), []string{"ghost", "beta"})
	require.Len(t, results, 1)
	assert.Equal(t, "beta", results[0].Profile.Name)
}

func TestAggregate(t *testing.T) {
	daily := []DayResult{
		{
			Store: "alpha", Date: "2025-08-18",
			ConversionStats: classifier.ConversionStats{TotalTraffic: 2, VisitCount: 1, PassByCount: 1, ConversionRate: 0.5},
			Hourly:          []classifier.HourlyConversion{{Hour: 0, TotalTraffic: 2, VisitCount: 1}},
			Peaks:           classifier.PeakHours{PeakTrafficHour: 0, PeakVisitHour: 0, PeakConversionHour: 0},
		},
		{
			Store: "alpha", Date: "2025-08-19",
			ConversionStats: classifier.ConversionStats{TotalTraffic: 1, VisitCount: 1, ConversionRate: 1.0},
			Hourly:          []classifier.HourlyConversion{{Hour: 10, TotalTraffic: 1, VisitCount: 1}},
			Peaks:           classifier.PeakHours{PeakTrafficHour: 10, PeakVisitHour: 10, PeakConversionHour: 10},
		},
	}

	aggregated := Aggregate(daily)
	assert.Equal(t, 2, aggregated.Overall.TotalDays)
	assert.InDelta(t, 0.75, aggregated.Overall.AvgConversionRate, 1e-9)
	assert.InDelta(t, 1.0, aggregated.Overall.AvgVisitCount, 1e-9)
	assert.InDelta(t, 1.5, aggregated.Overall.AvgTotalTraffic, 1e-9)

	require.Len(t, aggregated.HourlyPattern, 24)
	assert.InDelta(t, 1.0, aggregated.HourlyPattern[0].TotalTraffic, 1e-9)
	assert.InDelta(t, 0.5, aggregated.HourlyPattern[0].VisitCount, 1e-9)
	assert.InDelta(t, 0.5, aggregated.HourlyPattern[0].ConversionRate, 1e-9)
	// pooled, not diluted by empty days
	assert.InDelta(t, 1.0, aggregated.HourlyPattern[10].ConversionRate, 1e-9)

	// Monday and Tuesday, one day each
	require.Len(t, aggregated.WeekdayPattern, 2)

	// single-day peaks tie, earliest hour wins
	assert.Equal(t, 0, aggregated.MostCommonPeakTrafficHour)
}

func TestAggregateEmpty(t *testing.T) {
	aggregated := Aggregate(nil)
	assert.Zero(t, aggregated.Overall.TotalDays)
	assert.Nil(t, aggregated.HourlyPattern)
}

func TestCacheRoundTrip(t *testing.T) {
	engine, err := NewEngine(fixtureLoader(t), testOptions())
	require.NoError(t, err)
	results := engine.Run(context.Background(), nil)

	path := filepath.Join(t.TempDir(), "Cache", "conversion_analysis_cache.json")
	require.NoError(t, WriteCache(path, results))

	document, err := ReadCache(path)
	require.NoError(t, err)
	require.Contains(t, document, "alpha")
	assert.Equal(t, 2, document["alpha"].Aggregated.Overall.TotalDays)
	assert.Len(t, document["alpha"].Daily, 2)

	// regeneration from the same inputs is byte-identical
	first, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, WriteCache(path, results))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPersist(t *testing.T) {
	engine, err := NewEngine(fixtureLoader(t), testOptions())
	require.NoError(t, err)
	results := engine.Run(context.Background(), nil)

	db, err := resultstore.Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, Persist(ctx, results, db))

	summaries, err := db.DailySummaries(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "2025-08-18", summaries[0].Day)
	assert.Equal(t, 2, summaries[0].TotalTraffic)
	assert.Equal(t, 1, summaries[0].VisitCount)
	assert.Equal(t, 10, summaries[1].PeakTrafficHour)
	assert.NotEmpty(t, summaries[0].RunID)
}

func TestAnalyzeDayMissingFile(t *testing.T) {
	engine, err := NewEngine(fixtureLoader(t), testOptions())
	require.NoError(t, err)

	_, err = engine.AnalyzeDay("alpha", "2024-01-01", nil)
	assert.Error(t, err)
}
