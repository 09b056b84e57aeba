/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package analysis

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// WriteCache writes the conversion-analysis cache: one JSON object keyed by
// store name, each entry carrying profile, aggregated_stats, and
// daily_results. Map keys marshal sorted, so regeneration from the same
// inputs is byte-identical.
func WriteCache(path string, results []StoreResult) error {
	document := make(map[string]StoreResult, len(results))
	for _, result := range results {
		document[result.Profile.Name] = result
	}

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal analysis cache")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "unable to create cache folder %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "unable to write analysis cache %s", path)
	}

	log.WithFields(log.Fields{
		"Method": "analysis.WriteCache",
		"Path":   path,
		"Stores": len(document),
		"Bytes":  len(data),
	}).Info("Wrote analysis cache")

	return nil
}

// ReadCache loads a previously written cache document.
func ReadCache(path string) (map[string]StoreResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read analysis cache %s", path)
	}

	document := make(map[string]StoreResult)
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, errors.Wrapf(err, "unable to parse analysis cache %s", path)
	}
	return document, nil
}
