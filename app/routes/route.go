/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package routes

import (
	"github.com/gorilla/mux"

	"github.com/retail-sensing/footfall-service/app/analysis"
	"github.com/retail-sensing/footfall-service/app/config"
	"github.com/retail-sensing/footfall-service/app/resultstore"
	"github.com/retail-sensing/footfall-service/app/routes/handlers"
	"github.com/retail-sensing/footfall-service/app/store"
	"github.com/retail-sensing/footfall-service/pkg/middlewares"
	"github.com/retail-sensing/footfall-service/pkg/web"
)

// Route struct holds attributes to declare routes
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc web.Handler
}

// NewRouter creates the routes for the reporting API
func NewRouter(loader *store.Loader, results *resultstore.Store, analyzed map[string]analysis.StoreResult) *mux.Router {

	footfall := handlers.Footfall{Loader: loader, Results: results, Analysis: analyzed}

	var routes = []Route{
		//swagger:operation GET / default Healthcheck
		//
		// Healthcheck Endpoint
		//
		// Endpoint that is used to determine if the application is ready to take web requests
		//
		// ---
		// produces:
		// - application/json
		//
		// responses:
		//   '200':
		//     description: OK
		//
		{
			"Index",
			"GET",
			"/",
			footfall.Index,
		},
		//swagger:operation GET /footfall/stores stores getStores
		//
		// Retrieves discovered stores
		//
		// Lists every store folder found under the data directory with its
		// profile, ward plan availability, and the dates that have detection
		// files.
		//
		// ---
		// produces:
		// - application/json
		//
		// responses:
		//   '200':
		//     description: OK
		//   '500':
		//     description: Internal Error
		//
		{
			"GetStores",
			"GET",
			"/footfall/stores",
			footfall.GetStores,
		},
		//swagger:operation GET /footfall/stores/{store}/summary stores getStoreSummary
		//
		// Retrieves a store's aggregated analysis
		//
		// Returns the store profile and the cross-day aggregates (overall
		// averages, hourly pattern, weekday pattern, most common peak hours)
		// from the latest analysis run.
		//
		// ---
		// produces:
		// - application/json
		//
		// responses:
		//   '200':
		//     description: OK
		//   '404':
		//     description: Store not analyzed
		//
		{
			"GetStoreSummary",
			"GET",
			"/footfall/stores/{store}/summary",
			footfall.GetStoreSummary,
		},
		//swagger:operation GET /footfall/stores/{store}/daily stores getDailySummaries
		//
		// Retrieves a store's per-day summaries
		//
		// Returns the daily conversion summaries of the latest persisted run,
		// ordered by day.
		//
		// ---
		// produces:
		// - application/json
		//
		// responses:
		//   '200':
		//     description: OK
		//   '404':
		//     description: No run recorded for store
		//
		{
			"GetDailySummaries",
			"GET",
			"/footfall/stores/{store}/daily",
			footfall.GetDailySummaries,
		},
		//swagger:operation GET /footfall/compare compare getComparison
		//
		// Compares stores
		//
		// Returns the cross-store comparison block. The optional "stores"
		// query parameter selects a comma-separated subset.
		//
		// ---
		// produces:
		// - application/json
		//
		// responses:
		//   '200':
		//     description: OK
		//   '400':
		//     description: Unknown store in selection
		//
		{
			"GetComparison",
			"GET",
			"/footfall/compare",
			footfall.GetComparison,
		},
	}

	router := mux.NewRouter().StrictSlash(true)
	for _, route := range routes {

		var handler = route.HandlerFunc
		handler = middlewares.Recover(handler)
		handler = middlewares.Logger(handler)
		if config.AppConfig.EnableCORS {
			handler = middlewares.CORS(config.AppConfig.CORSOrigin, handler)
		}

		router.
			Methods(route.Method).
			Path(route.Pattern).
			Name(route.Name).
			Handler(handler)
	}

	return router
}
