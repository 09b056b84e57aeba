/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package detection holds the core data model shared by the analysis
// pipeline: raw ward detections, the ward coordinate plan, and localized
// position estimates.
package detection

import "sort"

// Device classes as reported by the gateway firmware. iPhone and Android
// devices rotate their MAC address and are the only classes eligible for
// journey stitching; T-Ward and Trace tags are fixed hardware identifiers.
const (
	ClassIphone  = 1
	ClassAndroid = 10
	ClassTWard   = 32
	ClassTrace   = 101
)

// RotatesIdentifier reports whether devices of this class randomize their
// advertised MAC address.
func RotatesIdentifier(deviceClass int) bool {
	return deviceClass == ClassIphone || deviceClass == ClassAndroid
}

// ClassName returns a human-readable label for a device class.
func ClassName(deviceClass int) string {
	switch deviceClass {
	case ClassIphone:
		return "iPhone"
	case ClassAndroid:
		return "Android"
	case ClassTWard:
		return "T-Ward"
	case ClassTrace:
		return "Trace"
	default:
		return "Unknown"
	}
}

// Detection is one raw sighting of a device by one ward.
type Detection struct {
	TimeIndex   int     `json:"time_index"`
	Ward        string  `json:"sward_name"`
	Identifier  string  `json:"mac_address"`
	DeviceClass int     `json:"type"`
	RSSI        float64 `json:"rssi"`
}

// Position is one localized estimate for a device at a time index.
type Position struct {
	TimeIndex   int     `json:"time_index"`
	Identifier  string  `json:"mac_address"`
	DeviceClass int     `json:"type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	SensorCount int     `json:"sensor_count"`
}

// Ward is one fixed BLE receiver at a known planar coordinate.
type Ward struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// WardPlan maps ward names to their configured coordinates. Loaded once per
// store and immutable for the analysis session.
type WardPlan map[string]Ward

// SortDetections orders detections by (identifier, time index) in place.
func SortDetections(detections []Detection) {
	sort.Slice(detections, func(i, j int) bool {
		if detections[i].Identifier != detections[j].Identifier {
			return detections[i].Identifier < detections[j].Identifier
		}
		return detections[i].TimeIndex < detections[j].TimeIndex
	})
}

// SortPositions orders position estimates by (identifier, time index) in
// place, the order the feature extractor expects.
func SortPositions(positions []Position) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].Identifier != positions[j].Identifier {
			return positions[i].Identifier < positions[j].Identifier
		}
		return positions[i].TimeIndex < positions[j].TimeIndex
	})
}
