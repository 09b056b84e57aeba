/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/retail-sensing/footfall-service/app/analysis"
	"github.com/retail-sensing/footfall-service/app/resultstore"
	"github.com/retail-sensing/footfall-service/app/store"
	"github.com/retail-sensing/footfall-service/pkg/web"
)

// Footfall represents the reporting API method handler set.
type Footfall struct {
	Loader  *store.Loader
	Results *resultstore.Store
	// Analysis is the in-memory outcome of the batch run, keyed by store.
	Analysis map[string]analysis.StoreResult
}

// StoreListing is one row of the stores index.
type StoreListing struct {
	Name        string        `json:"name"`
	HasWardPlan bool          `json:"has_ward_plan"`
	Dates       []string      `json:"available_dates"`
	Profile     store.Profile `json:"profile"`
}

// StoreSummary is one store's aggregated analysis block.
type StoreSummary struct {
	Profile    store.Profile            `json:"profile"`
	Aggregated analysis.AggregatedStats `json:"aggregated_stats"`
}

// Comparison is the cross-store comparison block consumed by the dashboard.
type Comparison struct {
	Stores          []string  `json:"stores"`
	ConversionRates []float64 `json:"conversion_rates"`
	AvgVisits       []float64 `json:"avg_visits"`
	AvgTraffic      []float64 `json:"avg_traffic"`
	LocationTypes   []string  `json:"location_types"`
	TotalDays       []int     `json:"total_days"`
}

// Index is used for Docker Healthcheck commands to indicate
// whether the http server is up and running to take requests
//nolint:unparam
func (foot *Footfall) Index(ctx context.Context, writer http.ResponseWriter, request *http.Request) error {
	web.Respond(ctx, writer, "Footfall Service", http.StatusOK)
	return nil
}

// GetStores lists the discovered stores with their profiles.
// 200 OK, 500 Internal Error
func (foot *Footfall) GetStores(ctx context.Context, writer http.ResponseWriter, request *http.Request) error {
	names := foot.Loader.Stores()

	listings := make([]StoreListing, 0, len(names))
	for _, name := range names {
		info, err := foot.Loader.GetInfo(name)
		if err != nil {
			return errors.Wrapf(err, "Error describing store %s", name)
		}
		profile, err := foot.Loader.GetProfile(name)
		if err != nil {
			return errors.Wrapf(err, "Error loading profile for %s", name)
		}
		listings = append(listings, StoreListing{
			Name:        info.Name,
			HasWardPlan: info.HasWardPlan,
			Dates:       info.Dates,
			Profile:     profile,
		})
	}

	web.Respond(ctx, writer, listings, http.StatusOK)
	return nil
}

// GetStoreSummary returns the aggregated analysis for one store.
// 200 OK, 404 Not Found, 500 Internal Error
func (foot *Footfall) GetStoreSummary(ctx context.Context, writer http.ResponseWriter, request *http.Request) error {
	name := mux.Vars(request)["store"]

	result, ok := foot.Analysis[name]
	if !ok {
		return errors.Wrap(web.ErrNotFound, name)
	}

	web.Respond(ctx, writer, StoreSummary{
		Profile:    result.Profile,
		Aggregated: result.Aggregated,
	}, http.StatusOK)
	return nil
}

// GetDailySummaries returns the latest persisted run's daily summaries for
// one store.
// 200 OK, 404 Not Found, 500 Internal Error
func (foot *Footfall) GetDailySummaries(ctx context.Context, writer http.ResponseWriter, request *http.Request) error {
	name := mux.Vars(request)["store"]

	if foot.Results == nil {
		return web.ErrStoreNotConfigured
	}

	summaries, err := foot.Results.DailySummaries(ctx, name)
	if err != nil {
		if errors.Cause(err) == resultstore.ErrNoRuns {
			return errors.Wrap(web.ErrNotFound, name)
		}
		return errors.Wrapf(err, "Error loading daily summaries for %s", name)
	}

	web.Respond(ctx, writer, summaries, http.StatusOK)
	return nil
}

// GetComparison returns the cross-store comparison block. The optional
// "stores" query parameter is a comma-separated subset; unknown names are
// rejected.
// 200 OK, 400 Bad Request, 500 Internal Error
func (foot *Footfall) GetComparison(ctx context.Context, writer http.ResponseWriter, request *http.Request) error {
	names := foot.analyzedStores()
	if selection := request.URL.Query().Get("stores"); selection != "" {
		names = nil
		for _, name := range strings.Split(selection, ",") {
			name = strings.TrimSpace(name)
			if _, ok := foot.Analysis[name]; !ok {
				return errors.Wrap(web.ErrInvalidInput, name)
			}
			names = append(names, name)
		}
	}

	comparison := Comparison{
		Stores:          []string{},
		ConversionRates: []float64{},
		AvgVisits:       []float64{},
		AvgTraffic:      []float64{},
		LocationTypes:   []string{},
		TotalDays:       []int{},
	}
	for _, name := range names {
		result := foot.Analysis[name]
		overall := result.Aggregated.Overall

		comparison.Stores = append(comparison.Stores, name)
		comparison.ConversionRates = append(comparison.ConversionRates, overall.AvgConversionRate*100)
		comparison.AvgVisits = append(comparison.AvgVisits, overall.AvgVisitCount)
		comparison.AvgTraffic = append(comparison.AvgTraffic, overall.AvgTotalTraffic)
		comparison.LocationTypes = append(comparison.LocationTypes, result.Profile.Type)
		comparison.TotalDays = append(comparison.TotalDays, overall.TotalDays)
	}

	web.Respond(ctx, writer, comparison, http.StatusOK)
	return nil
}

// analyzedStores lists the analyzed store names sorted.
func (foot *Footfall) analyzedStores() []string {
	names := make([]string, 0, len(foot.Analysis))
	for _, name := range foot.Loader.Stores() {
		if _, ok := foot.Analysis[name]; ok {
			names = append(names, name)
		}
	}
	return names
}
