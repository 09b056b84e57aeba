/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const profileFile = "profile.json"

// BusinessDay is one day's opening hours, expressed as fractional hours
// (8.5 = 08:30). Closed days carry the flag instead of hours.
type BusinessDay struct {
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	Closed bool    `json:"closed,omitempty"`
}

// Profile is the store's descriptive metadata, read from an optional
// profile.json in the store folder.
type Profile struct {
	Name            string                 `json:"name"`
	Type            string                 `json:"type"`
	Description     string                 `json:"description,omitempty"`
	Characteristics string                 `json:"characteristics,omitempty"`
	BusinessHours   map[string]BusinessDay `json:"business_hours,omitempty"`
}

// GetProfile loads the store's profile. A store without a profile file gets a
// minimal default; a present but unparseable file is an error.
func (loader *Loader) GetProfile(name string) (Profile, error) {
	path, ok := loader.stores[name]
	if !ok {
		return Profile{}, errors.Wrap(ErrUnknownStore, name)
	}

	profile := Profile{Name: name, Type: "Unknown"}

	data, err := os.ReadFile(filepath.Join(path, profileFile))
	if err != nil {
		if os.IsNotExist(err) {
			return profile, nil
		}
		return Profile{}, errors.Wrapf(err, "unable to read profile for %s", name)
	}

	if err := json.Unmarshal(data, &profile); err != nil {
		return Profile{}, errors.Wrapf(err, "unable to parse profile for %s", name)
	}
	if profile.Name == "" {
		profile.Name = name
	}
	return profile, nil
}
