/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package analysis composes the per-day pipeline: load detections, localize,
// stitch rotated identifiers, classify traffic, and aggregate the results
// into per-store documents and persistable daily summaries.
package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/retail-sensing/footfall-service/app/classifier"
	"github.com/retail-sensing/footfall-service/app/config"
	"github.com/retail-sensing/footfall-service/app/detection"
	"github.com/retail-sensing/footfall-service/app/localizer"
	"github.com/retail-sensing/footfall-service/app/resultstore"
	"github.com/retail-sensing/footfall-service/app/stitcher"
	"github.com/retail-sensing/footfall-service/app/store"
)

// Options carries the pipeline parameters for one engine.
type Options struct {
	SmoothingAlpha          float64
	StitchTimeWindowSeconds int
	StitchThreshold         float64
	StitchFastMode          bool
	DwellWindowMinutes      float64
	MinDetectionsInWindow   int
	Thresholds              classifier.Thresholds
	MaxWorkers              int
}

// OptionsFromConfig builds Options from the loaded application config.
func OptionsFromConfig() Options {
	return Options{
		SmoothingAlpha:          config.AppConfig.SmoothingAlpha,
		StitchTimeWindowSeconds: config.AppConfig.StitchTimeWindowSeconds,
		StitchThreshold:         config.AppConfig.StitchThreshold,
		StitchFastMode:          config.AppConfig.StitchFastMode,
		DwellWindowMinutes:      config.AppConfig.DwellWindowMinutes,
		MinDetectionsInWindow:   config.AppConfig.MinDetectionsInWindow,
		Thresholds: classifier.Thresholds{
			ByClass: map[int]float64{
				detection.ClassIphone:  config.AppConfig.IphoneRssiThreshold,
				detection.ClassAndroid: config.AppConfig.AndroidRssiThreshold,
			},
			Default: config.AppConfig.DefaultRssiThreshold,
		},
		MaxWorkers: config.AppConfig.MaxWorkers,
	}
}

// DayResult is the pipeline output for one (store, day).
type DayResult struct {
	Store string `json:"store"`
	Date  string `json:"date"`

	ConversionStats classifier.ConversionStats    `json:"conversion_stats"`
	Hourly          []classifier.HourlyConversion `json:"hourly_analysis,omitempty"`
	Peaks           classifier.PeakHours          `json:"peak_hours"`
	VisitorStats    classifier.VisitorStats       `json:"visitor_stats"`

	JourneyCount int                            `json:"journey_count"`
	JourneyStats classifier.JourneyVisitorStats `json:"journey_stats"`
}

// StoreResult is one store's full analysis: its profile, the aggregates over
// all analyzed days, and the per-day results in date order.
type StoreResult struct {
	Profile    store.Profile   `json:"profile"`
	Aggregated AggregatedStats `json:"aggregated_stats"`
	Daily      []DayResult     `json:"daily_results"`
}

// Engine runs the analysis pipeline over the stores of one loader.
type Engine struct {
	loader   *store.Loader
	options  Options
	strategy *classifier.DualConditionStrategy
}

// NewEngine validates the options and builds an engine.
func NewEngine(loader *store.Loader, options Options) (*Engine, error) {
	if options.MaxWorkers < 1 {
		return nil, errors.Errorf("max workers must be at least 1, got %d", options.MaxWorkers)
	}

	strategy, err := classifier.NewDualCondition(
		options.DwellWindowMinutes, options.MinDetectionsInWindow, options.Thresholds)
	if err != nil {
		return nil, err
	}

	// fail fast on bad stitch parameters before any data is loaded
	if _, err := stitcher.New(options.StitchTimeWindowSeconds, options.StitchThreshold, nil, true); err != nil {
		return nil, err
	}

	return &Engine{loader: loader, options: options, strategy: strategy}, nil
}

type unit struct {
	store string
	day   string
	plan  detection.WardPlan
}

// Run analyzes every available day of the named stores (all stores when
// names is empty) across the worker pool. A failing day is logged and
// skipped; the remaining units proceed. Results are ordered by store name.
func (engine *Engine) Run(ctx context.Context, names []string) []StoreResult {
	if len(names) == 0 {
		names = engine.loader.Stores()
	}

	var units []unit
	profiles := make(map[string]store.Profile, len(names))
	for _, name := range names {
		info, err := engine.loader.GetInfo(name)
		if err != nil {
			log.WithFields(log.Fields{
				"Method": "analysis.Run",
				"Store":  name,
				"Error":  err.Error(),
			}).Warn("Skipping store")
			continue
		}

		profile, err := engine.loader.GetProfile(name)
		if err != nil {
			log.WithFields(log.Fields{
				"Method": "analysis.Run",
				"Store":  name,
				"Error":  err.Error(),
			}).Warn("Skipping store with bad profile")
			continue
		}
		profiles[name] = profile

		var plan detection.WardPlan
		if info.HasWardPlan {
			plan, err = engine.loader.WardPlan(name)
			if err != nil {
				log.WithFields(log.Fields{
					"Method": "analysis.Run",
					"Store":  name,
					"Error":  err.Error(),
				}).Warn("Ward plan unreadable, analyzing without localization")
				plan = nil
			}
		}

		for _, day := range info.Dates {
			units = append(units, unit{store: name, day: day, plan: plan})
		}
	}

	results := make([]*DayResult, len(units))

	var waitGroup sync.WaitGroup
	semaphore := make(chan struct{}, engine.options.MaxWorkers)
	for i := range units {
		waitGroup.Add(1)
		go func(i int) {
			defer waitGroup.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				return
			}

			result, err := engine.AnalyzeDay(units[i].store, units[i].day, units[i].plan)
			if err != nil {
				log.WithFields(log.Fields{
					"Method": "analysis.Run",
					"Store":  units[i].store,
					"Day":    units[i].day,
					"Error":  err.Error(),
				}).Warn("Skipping failed analysis unit")
				return
			}
			results[i] = &result
		}(i)
	}
	waitGroup.Wait()

	byStore := make(map[string][]DayResult)
	for _, result := range results {
		if result != nil {
			byStore[result.Store] = append(byStore[result.Store], *result)
		}
	}

	storeResults := make([]StoreResult, 0, len(byStore))
	for name, daily := range byStore {
		sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })
		storeResults = append(storeResults, StoreResult{
			Profile:    profiles[name],
			Aggregated: Aggregate(daily),
			Daily:      daily,
		})
	}
	sort.Slice(storeResults, func(i, j int) bool {
		return storeResults[i].Profile.Name < storeResults[j].Profile.Name
	})

	log.WithFields(log.Fields{
		"Method": "analysis.Run",
		"Stores": len(storeResults),
		"Units":  len(units),
	}).Info("Analysis complete")

	return storeResults
}

// AnalyzeDay runs the full pipeline on one day of one store. A nil ward plan
// skips localization and stitching; classification still runs on the raw
// detections.
func (engine *Engine) AnalyzeDay(name, day string, plan detection.WardPlan) (DayResult, error) {
	detections, err := engine.loader.Detections(name, day)
	if err != nil {
		return DayResult{}, err
	}

	observations := classifier.FromDetections(detections)
	records := engine.strategy.Classify(observations)

	result := DayResult{
		Store:           name,
		Date:            day,
		ConversionStats: classifier.Conversion(records),
		Hourly:          classifier.HourlyAnalysis(engine.strategy, observations),
		VisitorStats:    classifier.Visitors(records),
	}
	result.Peaks, _ = classifier.Peaks(result.Hourly)

	if plan != nil {
		positions := localizer.New(plan, engine.options.SmoothingAlpha).Localize(detections)

		linker, err := stitcher.New(
			engine.options.StitchTimeWindowSeconds, engine.options.StitchThreshold,
			detections, engine.options.StitchFastMode)
		if err != nil {
			return DayResult{}, err
		}
		stitched := linker.Stitch(positions)

		journeyRecords := engine.strategy.ClassifyJourneys(observations, stitched.Journeys)
		result.JourneyCount = len(stitched.Journeys)
		result.JourneyStats = classifier.JourneyVisitors(journeyRecords)
	}

	log.WithFields(log.Fields{
		"Method":     "analysis.AnalyzeDay",
		"Store":      name,
		"Day":        day,
		"Detections": len(detections),
		"Traffic":    result.ConversionStats.TotalTraffic,
		"Visits":     result.ConversionStats.VisitCount,
	}).Debug("Analyzed day")

	return result, nil
}

// Persist writes each store's results as a fresh run in the result store.
func Persist(ctx context.Context, results []StoreResult, db *resultstore.Store) error {
	for _, result := range results {
		run := resultstore.Run{
			ID:         uuid.NewString(),
			Store:      result.Profile.Name,
			CreatedUTC: time.Now().UTC(),
		}

		summaries := make([]resultstore.DailySummary, len(result.Daily))
		for i, day := range result.Daily {
			summaries[i] = resultstore.DailySummary{
				RunID:              run.ID,
				Store:              day.Store,
				Day:                day.Date,
				TotalTraffic:       day.ConversionStats.TotalTraffic,
				VisitCount:         day.ConversionStats.VisitCount,
				PassByCount:        day.ConversionStats.PassByCount,
				ConversionRate:     day.ConversionStats.ConversionRate,
				AvgDwellVisit:      day.ConversionStats.AvgDwellVisit,
				AvgDwellPassBy:     day.ConversionStats.AvgDwellPassBy,
				PeakTrafficHour:    day.Peaks.PeakTrafficHour,
				PeakVisitHour:      day.Peaks.PeakVisitHour,
				PeakConversionHour: day.Peaks.PeakConversionHour,
			}
		}

		if err := db.SaveRun(ctx, run, summaries); err != nil {
			return errors.Wrapf(err, "unable to persist run for %s", run.Store)
		}
	}
	return nil
}
