/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/retail-sensing/footfall-service/app/analysis"
	"github.com/retail-sensing/footfall-service/app/config"
	"github.com/retail-sensing/footfall-service/app/resultstore"
	"github.com/retail-sensing/footfall-service/app/routes"
	"github.com/retail-sensing/footfall-service/app/store"
	"github.com/retail-sensing/footfall-service/pkg/healthcheck"
)

func main() {

	isHealthyPtr := flag.Bool("isHealthy", false, "a bool, runs a healthcheck")
	configPathPtr := flag.String("config", "", "path to the TOML config file")
	flag.Parse()

	// Ensure simple text format
	log.SetFormatter(&log.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})

	// Load config variables
	err := config.InitConfig(*configPathPtr)
	fatalErrorHandler("unable to load configuration variables", err)

	setLoggingLevel(config.AppConfig.LoggingLevel)

	if *isHealthyPtr {
		os.Exit(healthcheck.Healthcheck(config.AppConfig.Port))
	}

	log.WithFields(log.Fields{
		"Method": "main",
		"Action": "Start",
	}).Info("Starting footfall service...")

	// Discover store folders
	loader, err := store.NewLoader(config.AppConfig.DataDir)
	fatalErrorHandler("unable to scan the data directory", err)

	// Open the results database
	results, err := resultstore.Open(config.AppConfig.DatabasePath)
	fatalErrorHandler("unable to open the results database", err)
	defer results.Close()

	// Run the analysis batch
	engine, err := analysis.NewEngine(loader, analysis.OptionsFromConfig())
	fatalErrorHandler("unable to build the analysis engine", err)

	ctx := context.Background()
	storeResults := engine.Run(ctx, nil)

	analyzed := make(map[string]analysis.StoreResult, len(storeResults))
	for _, result := range storeResults {
		analyzed[result.Profile.Name] = result
	}

	// Write the cache document and persist the run
	err = analysis.WriteCache(config.AppConfig.CacheFile, storeResults)
	errorHandler("unable to write the analysis cache", err)

	err = analysis.Persist(ctx, storeResults, results)
	errorHandler("unable to persist the analysis run", err)

	// Initiate webserver and routes
	startWebServer(loader, results, analyzed, config.AppConfig.Port, config.AppConfig.ServiceName)

	log.WithField("Method", "main").Info("Completed.")
}

func startWebServer(loader *store.Loader, results *resultstore.Store,
	analyzed map[string]analysis.StoreResult, port string, serviceName string) {

	// Start Webserver and pass additional data
	router := routes.NewRouter(loader, results, analyzed)

	// Create a new server and set timeout values.
	server := http.Server{
		Addr:           ":" + port,
		Handler:        router,
		ReadTimeout:    time.Duration(config.AppConfig.ServerReadTimeOutSeconds) * time.Second,
		WriteTimeout:   time.Duration(config.AppConfig.ServerWriteTimeOutSeconds) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// We want to report the listener is closed.
	var wg sync.WaitGroup
	wg.Add(1)

	// Start the listener.
	go func() {
		log.Infof("%s running!", serviceName)
		log.Infof("Listener closed : %v", server.ListenAndServe())
		wg.Done()
	}()

	// Listen for an interrupt signal from the OS.
	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt)

	// Wait for a signal to shutdown.
	<-osSignals

	// Create a context to attempt a graceful 5 second shutdown.
	const timeout = 5 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Attempt the graceful shutdown by closing the listener and
	// completing all inflight requests.
	if err := server.Shutdown(ctx); err != nil {

		log.WithFields(log.Fields{
			"Method":  "main",
			"Action":  "shutdown",
			"Timeout": timeout,
			"Message": err.Error(),
		}).Error("Graceful shutdown did not complete")

		// Looks like we timedout on the graceful shutdown. Kill it hard.
		if err := server.Close(); err != nil {
			log.WithFields(log.Fields{
				"Method":  "main",
				"Action":  "shutdown",
				"Message": err.Error(),
			}).Error("Error killing server")
		}
	}

	// Wait for the listener to report it is closed.
	wg.Wait()
}
