/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package store discovers store data folders and loads their ward plans and
// daily detection tables.
//
// Layout: <base>/<store>/wards.csv plus one <date>_parsing.csv per captured
// day, dates formatted 2006-01-02.
package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/retail-sensing/footfall-service/app/detection"
)

const (
	dateLayout    = "2006-01-02"
	parsingSuffix = "_parsing.csv"
	wardPlanFile  = "wards.csv"
)

// ErrUnknownStore is returned for store names outside the base directory.
var ErrUnknownStore = errors.New("unknown store")

// Info describes one discovered store folder.
type Info struct {
	Name        string   `json:"name"`
	HasWardPlan bool     `json:"has_ward_plan"`
	Dates       []string `json:"available_dates"`
}

// Loader discovers stores under one base directory.
type Loader struct {
	baseDir string
	stores  map[string]string
}

// NewLoader scans baseDir for store folders. Hidden folders are ignored; a
// base with no stores at all is an error.
func NewLoader(baseDir string) (*Loader, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read base folder %s", baseDir)
	}

	stores := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			stores[entry.Name()] = filepath.Join(baseDir, entry.Name())
		}
	}
	if len(stores) == 0 {
		return nil, errors.Errorf("no store folders found in %s", baseDir)
	}

	log.WithFields(log.Fields{
		"Method": "store.NewLoader",
		"Base":   baseDir,
		"Stores": len(stores),
	}).Info("Detected store folders")

	return &Loader{baseDir: baseDir, stores: stores}, nil
}

// Stores lists discovered store names, sorted.
func (loader *Loader) Stores() []string {
	names := make([]string, 0, len(loader.stores))
	for name := range loader.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetInfo describes one store: whether it has a ward plan and which dates
// have detection files. Files that do not follow the date naming are ignored.
func (loader *Loader) GetInfo(name string) (Info, error) {
	path, ok := loader.stores[name]
	if !ok {
		return Info{}, errors.Wrap(ErrUnknownStore, name)
	}

	info := Info{Name: name, Dates: []string{}}

	if _, err := os.Stat(filepath.Join(path, wardPlanFile)); err == nil {
		info.HasWardPlan = true
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return Info{}, errors.Wrapf(err, "unable to read store folder %s", path)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), parsingSuffix) {
			continue
		}
		day := strings.TrimSuffix(entry.Name(), parsingSuffix)
		if _, err := time.Parse(dateLayout, day); err != nil {
			continue
		}
		info.Dates = append(info.Dates, day)
	}
	sort.Strings(info.Dates)
	return info, nil
}

// WardPlan loads the store's ward coordinate table.
func (loader *Loader) WardPlan(name string) (detection.WardPlan, error) {
	path, ok := loader.stores[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownStore, name)
	}

	file, err := os.Open(filepath.Join(path, wardPlanFile))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open ward plan for %s", name)
	}
	defer file.Close()

	plan, err := detection.ReadWardPlan(file)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse ward plan for %s", name)
	}
	return plan, nil
}

// Detections loads one day's detection table for a store.
func (loader *Loader) Detections(name, day string) ([]detection.Detection, error) {
	path, ok := loader.stores[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownStore, name)
	}

	file, err := os.Open(filepath.Join(path, day+parsingSuffix))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open detections for %s on %s", name, day)
	}
	defer file.Close()

	detections, err := detection.ReadDetections(file)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse detections for %s on %s", name, day)
	}
	return detections, nil
}

// DetectionsInRange loads one day's detections restricted to a closed time
// index range.
func (loader *Loader) DetectionsInRange(name, day string, fromIndex, toIndex int) ([]detection.Detection, error) {
	detections, err := loader.Detections(name, day)
	if err != nil {
		return nil, err
	}

	filtered := detections[:0]
	for _, d := range detections {
		if d.TimeIndex >= fromIndex && d.TimeIndex <= toIndex {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// CommonDates intersects the available dates of the given stores (all stores
// when names is empty), sorted ascending.
func (loader *Loader) CommonDates(names []string) ([]string, error) {
	if len(names) == 0 {
		names = loader.Stores()
	}

	var common map[string]bool
	for _, name := range names {
		info, err := loader.GetInfo(name)
		if err != nil {
			return nil, err
		}
		dates := make(map[string]bool, len(info.Dates))
		for _, day := range info.Dates {
			dates[day] = true
		}
		if common == nil {
			common = dates
			continue
		}
		for day := range common {
			if !dates[day] {
				delete(common, day)
			}
		}
	}

	result := make([]string, 0, len(common))
	for day := range common {
		result = append(result, day)
	}
	sort.Strings(result)
	return result, nil
}
