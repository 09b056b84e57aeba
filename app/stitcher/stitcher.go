/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package stitcher links identifiers separated by MAC rotation back into
// device journeys. Two identifiers are linked when one appears shortly after
// the other with a consistent signal fingerprint and spatial continuity.
package stitcher

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/retail-sensing/footfall-service/app/detection"
	"github.com/retail-sensing/footfall-service/pkg/timeindex"
)

// Similarity component weights. The simultaneous signal fingerprint dominates
// because two radios in the same pocket see near-identical per-ward RSSI.
const (
	weightSignal   = 0.60
	weightTemporal = 0.15
	weightSpatial  = 0.15
	weightPattern  = 0.05
	weightMovement = 0.05

	maxSpatialDistance = 100.0
	maxStdDiff         = 50.0
	maxAvgRssiDiff     = 20.0

	// signal fingerprints weaker than this cap the whole score
	minSignalScore = 0.5

	// neutral signal score when fast mode skips the fingerprint comparison
	fastModeSignalScore = 0.7

	minCommonWards = 2
)

// Candidate is a proposed link: b first appeared within the time window after
// a's last appearance, both share a device class, and both were active at
// OverlapTime so their signal fingerprints can be compared.
type Candidate struct {
	A              string
	B              string
	TimeGapSeconds float64
	OverlapTime    int
}

// Journey is a merged sequence of identifiers believed to be one physical
// device.
type Journey struct {
	ID              string   `json:"journey_id"`
	Identifiers     []string `json:"macs"`
	DeviceClass     int      `json:"device_type"`
	FirstTime       int      `json:"first_time"`
	LastTime        int      `json:"last_time"`
	LifetimeSeconds int      `json:"lifetime"`
	Appearances     int      `json:"total_appearances"`
}

// Result carries the stitching outputs: per-identifier features, the
// identifier → journey assignment, and per-journey aggregates.
type Result struct {
	Features    []Features
	Assignments map[string]string
	Journeys    []Journey
}

type signalKey struct {
	timeIndex  int
	identifier string
}

// Stitcher runs the four-stage stitching pipeline over one day's positions.
type Stitcher struct {
	timeWindowSeconds float64
	threshold         float64
	fastMode          bool
	signals           map[signalKey]map[string]float64
}

// New builds a Stitcher. timeWindowSeconds bounds the gap between one
// identifier vanishing and its successor appearing; threshold is the minimum
// similarity for a link. detections supply the per-ward signal fingerprints;
// fast mode skips fingerprint comparison and substitutes a neutral score.
func New(timeWindowSeconds int, threshold float64, detections []detection.Detection, fastMode bool) (*Stitcher, error) {
	if timeWindowSeconds <= 0 {
		return nil, errors.Errorf("time window must be positive, got %d", timeWindowSeconds)
	}
	if threshold < 0 || threshold > 1 {
		return nil, errors.Errorf("threshold must be in [0, 1], got %f", threshold)
	}

	stitcher := &Stitcher{
		timeWindowSeconds: float64(timeWindowSeconds),
		threshold:         threshold,
		fastMode:          fastMode,
	}
	if !fastMode {
		stitcher.signals = indexSignals(detections)
	}
	return stitcher, nil
}

// indexSignals groups detections into per-(time index, identifier) ward→rssi
// fingerprints for overlap comparison.
func indexSignals(detections []detection.Detection) map[signalKey]map[string]float64 {
	signals := make(map[signalKey]map[string]float64)
	for _, d := range detections {
		key := signalKey{timeIndex: d.TimeIndex, identifier: d.Identifier}
		fingerprint, ok := signals[key]
		if !ok {
			fingerprint = make(map[string]float64)
			signals[key] = fingerprint
		}
		fingerprint[d.Ward] = d.RSSI
	}
	return signals
}

// Stitch runs feature extraction, candidate generation, linking, and journey
// aggregation. Output is deterministic for any input order.
func (stitcher *Stitcher) Stitch(positions []detection.Position) Result {
	features := ExtractFeatures(positions)
	candidates := stitcher.GenerateCandidates(features, positions)
	assignments := stitcher.link(features, candidates)
	journeys := buildJourneys(positions, assignments)

	return Result{
		Features:    features,
		Assignments: assignments,
		Journeys:    journeys,
	}
}

// GenerateCandidates proposes linkable identifier pairs. Only rotating device
// classes participate, pairs never cross classes, and a pair requires at
// least one common active time index.
func (stitcher *Stitcher) GenerateCandidates(features []Features, positions []detection.Position) []Candidate {
	activeTimes := make(map[string]map[int]bool)
	for _, f := range features {
		if detection.RotatesIdentifier(f.DeviceClass) {
			activeTimes[f.Identifier] = make(map[int]bool)
		}
	}
	for _, p := range positions {
		if times, ok := activeTimes[p.Identifier]; ok {
			times[p.TimeIndex] = true
		}
	}

	windowIndexes := stitcher.timeWindowSeconds / timeindex.UnitSeconds

	var candidates []Candidate
	for _, deviceClass := range []int{detection.ClassIphone, detection.ClassAndroid} {
		var classFeatures []Features
		for _, f := range features {
			if f.DeviceClass == deviceClass {
				classFeatures = append(classFeatures, f)
			}
		}
		if len(classFeatures) < 2 {
			continue
		}

		for _, a := range classFeatures {
			for _, b := range classFeatures {
				if a.Identifier == b.Identifier {
					continue
				}
				if float64(b.FirstTime) > float64(a.LastTime)+windowIndexes {
					continue
				}

				overlap := -1
				for t := range activeTimes[a.Identifier] {
					if activeTimes[b.Identifier][t] && t > overlap {
						overlap = t
					}
				}
				if overlap < 0 {
					continue
				}

				candidates = append(candidates, Candidate{
					A:              a.Identifier,
					B:              b.Identifier,
					TimeGapSeconds: float64(timeindex.ToSeconds(b.FirstTime - a.LastTime)),
					OverlapTime:    overlap,
				})
			}
		}
	}
	return candidates
}

// Similarity scores a candidate pair in [0, 1]. A weak signal fingerprint
// short-circuits: the remaining components cannot rescue the pair.
func (stitcher *Stitcher) Similarity(a, b Features, timeGapSeconds float64, overlapTime int) float64 {
	signalScore := stitcher.signalScore(a.Identifier, b.Identifier, overlapTime)
	if !stitcher.fastMode && signalScore < minSignalScore {
		return signalScore * 0.5
	}

	temporalScore := math.Max(0, 1-math.Abs(timeGapSeconds)/stitcher.timeWindowSeconds)

	spatialDistance := math.Hypot(b.FirstX-a.LastX, b.FirstY-a.LastY)
	spatialScore := math.Max(0, 1-spatialDistance/maxSpatialDistance)

	meanDistance := math.Hypot(b.MeanX-a.MeanX, b.MeanY-a.MeanY)
	patternScore := math.Max(0, 1-meanDistance/maxSpatialDistance)

	stdDiff := math.Abs(a.StdX-b.StdX) + math.Abs(a.StdY-b.StdY)
	movementScore := math.Max(0, 1-stdDiff/maxStdDiff)

	return weightSignal*signalScore +
		weightTemporal*temporalScore +
		weightSpatial*spatialScore +
		weightPattern*patternScore +
		weightMovement*movementScore
}

// signalScore compares the two identifiers' per-ward RSSI vectors at the
// overlap time. Fewer than two common wards is an unusable fingerprint.
func (stitcher *Stitcher) signalScore(a, b string, overlapTime int) float64 {
	if stitcher.fastMode {
		return fastModeSignalScore
	}

	fingerprintA, okA := stitcher.signals[signalKey{timeIndex: overlapTime, identifier: a}]
	fingerprintB, okB := stitcher.signals[signalKey{timeIndex: overlapTime, identifier: b}]
	if !okA || !okB {
		return 0
	}

	var totalDiff float64
	common := 0
	for ward, rssiA := range fingerprintA {
		if rssiB, ok := fingerprintB[ward]; ok {
			totalDiff += math.Abs(rssiA - rssiB)
			common++
		}
	}
	if common < minCommonWards {
		return 0
	}

	return math.Max(0, 1-totalDiff/float64(common)/maxAvgRssiDiff)
}

// link picks each identifier's best-scoring successor and folds chains into
// journeys. Candidates are processed in generation order and only a strictly
// better score replaces a chosen successor, so ties resolve to the
// lexicographically smallest pair and the output is stable.
func (stitcher *Stitcher) link(features []Features, candidates []Candidate) map[string]string {
	featureByID := make(map[string]Features, len(features))
	for _, f := range features {
		featureByID[f.Identifier] = f
	}

	type successor struct {
		identifier string
		score      float64
	}
	best := make(map[string]successor)
	var order []string

	for _, candidate := range candidates {
		score := stitcher.Similarity(
			featureByID[candidate.A], featureByID[candidate.B],
			candidate.TimeGapSeconds, candidate.OverlapTime,
		)
		if score < stitcher.threshold {
			continue
		}
		current, ok := best[candidate.A]
		if !ok {
			order = append(order, candidate.A)
			best[candidate.A] = successor{identifier: candidate.B, score: score}
		} else if score > current.score {
			best[candidate.A] = successor{identifier: candidate.B, score: score}
		}
	}

	assignments := make(map[string]string, len(features))
	assigned := make(map[string]bool)
	journeyCount := 0

	for _, from := range order {
		if !assigned[from] {
			journeyCount++
			assignments[from] = journeyID(journeyCount)
			assigned[from] = true
		}
		to := best[from].identifier
		if !assigned[to] {
			assignments[to] = assignments[from]
			assigned[to] = true
		}
	}

	// every unlinked identifier becomes a singleton journey
	for _, f := range features {
		if !assigned[f.Identifier] {
			journeyCount++
			assignments[f.Identifier] = journeyID(journeyCount)
		}
	}

	return assignments
}

func journeyID(n int) string {
	return fmt.Sprintf("J%04d", n)
}

// buildJourneys aggregates positions by assigned journey, ordered by first
// appearance in (identifier, time index) order.
func buildJourneys(positions []detection.Position, assignments map[string]string) []Journey {
	ordered := make([]detection.Position, len(positions))
	copy(ordered, positions)
	detection.SortPositions(ordered)

	byID := make(map[string]*Journey)
	var journeys []*Journey
	seen := make(map[string]map[string]bool)

	for _, p := range ordered {
		id, ok := assignments[p.Identifier]
		if !ok {
			continue
		}
		journey, exists := byID[id]
		if !exists {
			journey = &Journey{
				ID:          id,
				DeviceClass: p.DeviceClass,
				FirstTime:   p.TimeIndex,
				LastTime:    p.TimeIndex,
			}
			byID[id] = journey
			journeys = append(journeys, journey)
			seen[id] = make(map[string]bool)
		}

		if p.TimeIndex < journey.FirstTime {
			journey.FirstTime = p.TimeIndex
		}
		if p.TimeIndex > journey.LastTime {
			journey.LastTime = p.TimeIndex
		}
		journey.Appearances++
		if !seen[id][p.Identifier] {
			seen[id][p.Identifier] = true
			journey.Identifiers = append(journey.Identifiers, p.Identifier)
		}
	}

	result := make([]Journey, len(journeys))
	for i, journey := range journeys {
		journey.LifetimeSeconds = timeindex.ToSeconds(journey.LastTime - journey.FirstTime)
		result[i] = *journey
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
