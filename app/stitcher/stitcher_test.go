/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package stitcher

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-sensing/footfall-service/app/detection"
)

// walk lays down a straight track of positions for one identifier and the
// matching two-ward detections so the signal fingerprints line up.
func walk(identifier string, deviceClass, from, to int, rssiOffset float64) ([]detection.Position, []detection.Detection) {
	var positions []detection.Position
	var detections []detection.Detection
	for t := from; t <= to; t++ {
		positions = append(positions, detection.Position{
			TimeIndex:   t,
			Identifier:  identifier,
			DeviceClass: deviceClass,
			X:           float64(t),
			Y:           0,
			SensorCount: 2,
		})
		detections = append(detections,
			detection.Detection{TimeIndex: t, Ward: "W1", Identifier: identifier, DeviceClass: deviceClass, RSSI: -65 + rssiOffset},
			detection.Detection{TimeIndex: t, Ward: "W2", Identifier: identifier, DeviceClass: deviceClass, RSSI: -72 + rssiOffset},
		)
	}
	return positions, detections
}

func TestNewValidatesParameters(t *testing.T) {
	_, err := New(0, 0.6, nil, false)
	assert.Error(t, err)

	_, err = New(60, 1.5, nil, false)
	assert.Error(t, err)

	_, err = New(60, 0.6, nil, false)
	assert.NoError(t, err)
}

func TestExtractFeatures(t *testing.T) {
	positions := []detection.Position{
		{TimeIndex: 10, Identifier: "a", DeviceClass: 1, X: 0, Y: 0},
		{TimeIndex: 12, Identifier: "a", DeviceClass: 1, X: 3, Y: 4},
		{TimeIndex: 14, Identifier: "a", DeviceClass: 1, X: 3, Y: 4},
		{TimeIndex: 50, Identifier: "b", DeviceClass: 10, X: 7, Y: 7},
	}

	features := ExtractFeatures(positions)
	require.Len(t, features, 2)

	a := features[0]
	assert.Equal(t, "a", a.Identifier)
	assert.Equal(t, 10, a.FirstTime)
	assert.Equal(t, 14, a.LastTime)
	assert.Equal(t, 3, a.Appearances)
	assert.InDelta(t, 2.0, a.MeanX, 1e-9)
	assert.InDelta(t, 5.0, a.TotalDistance, 1e-9)
	assert.Equal(t, 40, a.LifetimeSeconds)

	// single appearance: zero deviation, zero path, zero lifetime
	b := features[1]
	assert.Equal(t, "b", b.Identifier)
	assert.Zero(t, b.StdX)
	assert.Zero(t, b.StdY)
	assert.Zero(t, b.TotalDistance)
	assert.Zero(t, b.LifetimeSeconds)
}

func TestGenerateCandidatesFiltering(t *testing.T) {
	posA, detA := walk("aa:01", detection.ClassIphone, 0, 10, 0)
	posB, detB := walk("bb:02", detection.ClassIphone, 8, 20, 0)
	posC, detC := walk("cc:03", detection.ClassAndroid, 8, 20, 0)
	posT, detT := walk("tw:04", detection.ClassTWard, 8, 20, 0)

	positions := append(append(append(posA, posB...), posC...), posT...)
	detections := append(append(append(detA, detB...), detC...), detT...)

	stitcher, err := New(60, 0.6, detections, false)
	require.NoError(t, err)

	features := ExtractFeatures(positions)
	candidates := stitcher.GenerateCandidates(features, positions)

	for _, candidate := range candidates {
		assert.NotEqual(t, "tw:04", candidate.A, "fixed hardware must never be a candidate")
		assert.NotEqual(t, "tw:04", candidate.B, "fixed hardware must never be a candidate")
		if candidate.A == "aa:01" || candidate.B == "aa:01" {
			assert.NotContains(t, []string{candidate.A, candidate.B}, "cc:03",
				"candidates must not cross device classes")
		}
	}

	// aa:01 → bb:02 overlaps at indexes 8..10, so the pair must be proposed
	found := false
	for _, candidate := range candidates {
		if candidate.A == "aa:01" && candidate.B == "bb:02" {
			found = true
			assert.Equal(t, 10, candidate.OverlapTime)
			assert.InDelta(t, -20.0, candidate.TimeGapSeconds, 1e-9)
		}
	}
	assert.True(t, found, "expected candidate aa:01 → bb:02")
}

func TestGenerateCandidatesRequireCommonTime(t *testing.T) {
	// b starts right after a ends: inside the window but with no common
	// time index there is no fingerprint to compare, so no candidate
	posA, detA := walk("aa:01", detection.ClassIphone, 0, 10, 0)
	posB, detB := walk("bb:02", detection.ClassIphone, 12, 20, 0)

	positions := append(posA, posB...)
	detections := append(detA, detB...)

	stitcher, err := New(60, 0.6, detections, false)
	require.NoError(t, err)

	candidates := stitcher.GenerateCandidates(ExtractFeatures(positions), positions)
	assert.Empty(t, candidates)
}

func TestSimilarityWeakSignalCapped(t *testing.T) {
	// fingerprints 30 dBm apart: signal score 0, total capped at 0
	posA, detA := walk("aa:01", detection.ClassIphone, 0, 10, 0)
	posB, detB := walk("bb:02", detection.ClassIphone, 8, 20, 30)

	positions := append(posA, posB...)
	detections := append(detA, detB...)

	stitcher, err := New(60, 0.6, detections, false)
	require.NoError(t, err)

	features := ExtractFeatures(positions)
	score := stitcher.Similarity(features[0], features[1], -20, 10)
	assert.LessOrEqual(t, score, 0.25, "weak fingerprint must cap the total score")

	result := stitcher.Stitch(positions)
	assert.NotEqual(t, result.Assignments["aa:01"], result.Assignments["bb:02"])
}

func TestStitchLinksRotatedIdentifier(t *testing.T) {
	posA, detA := walk("aa:01", detection.ClassIphone, 0, 10, 0)
	posB, detB := walk("bb:02", detection.ClassIphone, 8, 20, 0)

	positions := append(posA, posB...)
	detections := append(detA, detB...)

	stitcher, err := New(60, 0.6, detections, false)
	require.NoError(t, err)

	result := stitcher.Stitch(positions)
	assert.Equal(t, result.Assignments["aa:01"], result.Assignments["bb:02"],
		"matching fingerprints within the window must merge into one journey")

	require.Len(t, result.Journeys, 1)
	journey := result.Journeys[0]
	assert.Equal(t, "J0001", journey.ID)
	assert.ElementsMatch(t, []string{"aa:01", "bb:02"}, journey.Identifiers)
	assert.Equal(t, 0, journey.FirstTime)
	assert.Equal(t, 20, journey.LastTime)
	assert.Equal(t, 200, journey.LifetimeSeconds)
	assert.Equal(t, len(positions), journey.Appearances)
}

func TestStitchPartitionInvariant(t *testing.T) {
	posA, detA := walk("aa:01", detection.ClassIphone, 0, 10, 0)
	posB, detB := walk("bb:02", detection.ClassIphone, 8, 20, 0)
	posC, detC := walk("cc:03", detection.ClassAndroid, 100, 130, 0)
	posT, detT := walk("tw:04", detection.ClassTWard, 0, 200, 0)

	positions := append(append(append(posA, posB...), posC...), posT...)
	detections := append(append(append(detA, detB...), detC...), detT...)

	stitcher, err := New(60, 0.6, detections, false)
	require.NoError(t, err)

	result := stitcher.Stitch(positions)

	// every identifier appears in exactly one journey
	assigned := make(map[string]string)
	for _, journey := range result.Journeys {
		for _, identifier := range journey.Identifiers {
			_, duplicate := assigned[identifier]
			assert.False(t, duplicate, "identifier %s in more than one journey", identifier)
			assigned[identifier] = journey.ID
		}
	}
	assert.Len(t, assigned, 4)
}

func TestStitchDeterministicUnderShuffle(t *testing.T) {
	posA, detA := walk("aa:01", detection.ClassIphone, 0, 10, 0)
	posB, detB := walk("bb:02", detection.ClassIphone, 8, 20, 0)
	posC, detC := walk("cc:03", detection.ClassIphone, 9, 25, 0)

	positions := append(append(posA, posB...), posC...)
	detections := append(append(detA, detB...), detC...)

	stitcher, err := New(60, 0.6, detections, false)
	require.NoError(t, err)
	reference := stitcher.Stitch(positions)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 5; trial++ {
		shuffled := make([]detection.Position, len(positions))
		copy(shuffled, positions)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		result := stitcher.Stitch(shuffled)
		assert.Equal(t, reference.Assignments, result.Assignments,
			"assignments must not depend on input order")
	}
}

func TestStitchFastMode(t *testing.T) {
	posA, _ := walk("aa:01", detection.ClassIphone, 0, 10, 0)
	posB, _ := walk("bb:02", detection.ClassIphone, 8, 20, 30)

	positions := append(posA, posB...)

	// fast mode ignores the dissimilar fingerprints and still links on the
	// temporal and spatial components
	stitcher, err := New(60, 0.6, nil, true)
	require.NoError(t, err)

	result := stitcher.Stitch(positions)
	assert.Equal(t, result.Assignments["aa:01"], result.Assignments["bb:02"])
}

func TestStitchEmptyInput(t *testing.T) {
	stitcher, err := New(60, 0.6, nil, false)
	require.NoError(t, err)

	result := stitcher.Stitch(nil)
	assert.Empty(t, result.Features)
	assert.Empty(t, result.Assignments)
	assert.Empty(t, result.Journeys)
}
