/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	maxServerReadTimeoutSeconds  = 1800
	maxServerWriteTimeoutSeconds = 1800
)

type (
	variables struct {
		ServiceName  string `toml:"serviceName"`
		LoggingLevel string `toml:"loggingLevel"`
		Port         string `toml:"port"`

		// data locations
		DataDir      string `toml:"dataDir"`
		CacheFile    string `toml:"cacheFile"`
		DatabasePath string `toml:"databasePath"`

		ServerReadTimeOutSeconds  int `toml:"serverReadTimeOutSeconds"`
		ServerWriteTimeOutSeconds int `toml:"serverWriteTimeOutSeconds"`

		MaxWorkers int `toml:"maxWorkers"`

		// localizer
		SmoothingAlpha float64 `toml:"smoothingAlpha"`

		// stitcher
		StitchTimeWindowSeconds int     `toml:"stitchTimeWindowSeconds"`
		StitchThreshold         float64 `toml:"stitchThreshold"`
		StitchFastMode          bool    `toml:"stitchFastMode"`

		// classifier
		DwellWindowMinutes    float64 `toml:"dwellWindowMinutes"`
		MinDetectionsInWindow int     `toml:"minDetectionsInWindow"`
		IphoneRssiThreshold   float64 `toml:"iphoneRssiThreshold"`
		AndroidRssiThreshold  float64 `toml:"androidRssiThreshold"`
		DefaultRssiThreshold  float64 `toml:"defaultRssiThreshold"`

		EnableCORS bool   `toml:"enableCORS"`
		CORSOrigin string `toml:"corsOrigin"`
	}
)

// AppConfig exports all config variables
var AppConfig variables

// InitConfig loads application variables from the TOML file at path,
// applying defaults for everything absent and rejecting out-of-range values
// eagerly so bad parameters never reach the pipeline.
func InitConfig(path string) error {
	AppConfig = variables{
		ServiceName:               "footfall-service",
		LoggingLevel:              "info",
		Port:                      "8080",
		DataDir:                   "Data",
		CacheFile:                 "Cache/conversion_analysis_cache.json",
		DatabasePath:              "footfall.db",
		ServerReadTimeOutSeconds:  900,
		ServerWriteTimeOutSeconds: 900,
		MaxWorkers:                4,
		SmoothingAlpha:            0.3,
		StitchTimeWindowSeconds:   60,
		StitchThreshold:           0.6,
		DwellWindowMinutes:        2.0,
		MinDetectionsInWindow:     6,
		IphoneRssiThreshold:       -75,
		AndroidRssiThreshold:      -85,
		DefaultRssiThreshold:      -80,
		EnableCORS:                true,
		CORSOrigin:                "*",
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return errors.Wrapf(err, "unable to read config file %s", path)
		}
		if _, err := toml.DecodeFile(path, &AppConfig); err != nil {
			return errors.Wrapf(err, "unable to parse config file %s", path)
		}
	}

	if AppConfig.ServerReadTimeOutSeconds < 1 {
		return errors.New("ServerReadTimeOutSeconds cannot be lesser than 1")
	}
	if AppConfig.ServerReadTimeOutSeconds > maxServerReadTimeoutSeconds {
		// limit to max value
		log.Debugf("serverReadTimeOutSeconds value %d exceeds the max value allowed, set to max value %d",
			AppConfig.ServerReadTimeOutSeconds, maxServerReadTimeoutSeconds)
		AppConfig.ServerReadTimeOutSeconds = maxServerReadTimeoutSeconds
	}

	if AppConfig.ServerWriteTimeOutSeconds < 1 {
		return errors.New("ServerWriteTimeOutSeconds cannot be lesser than 1")
	}
	if AppConfig.ServerWriteTimeOutSeconds > maxServerWriteTimeoutSeconds {
		// limit to max value
		log.Debugf("serverWriteTimeOutSeconds value %d exceeds the max value allowed, set to max value %d",
			AppConfig.ServerWriteTimeOutSeconds, maxServerWriteTimeoutSeconds)
		AppConfig.ServerWriteTimeOutSeconds = maxServerWriteTimeoutSeconds
	}

	if AppConfig.MaxWorkers < 1 {
		return errors.Errorf("maxWorkers must be at least 1, got %d", AppConfig.MaxWorkers)
	}

	if AppConfig.SmoothingAlpha <= 0 || AppConfig.SmoothingAlpha > 1 {
		return errors.Errorf("smoothingAlpha must be in (0, 1], got %f", AppConfig.SmoothingAlpha)
	}

	if AppConfig.StitchTimeWindowSeconds <= 0 {
		return errors.Errorf("stitchTimeWindowSeconds must be positive, got %d", AppConfig.StitchTimeWindowSeconds)
	}

	if AppConfig.StitchThreshold < 0 || AppConfig.StitchThreshold > 1 {
		return errors.Errorf("stitchThreshold must be in [0, 1], got %f", AppConfig.StitchThreshold)
	}

	if AppConfig.DwellWindowMinutes <= 0 {
		return errors.Errorf("dwellWindowMinutes must be positive, got %f", AppConfig.DwellWindowMinutes)
	}

	if AppConfig.MinDetectionsInWindow < 1 {
		return errors.Errorf("minDetectionsInWindow must be at least 1, got %d", AppConfig.MinDetectionsInWindow)
	}

	return nil
}
