/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

// Package localizer estimates device positions from per-ward RSSI readings.
//
// One ward puts the device on a circle around it, two wards interpolate an
// inverse-distance weighted point between them, three or more take a
// signal-weighted centroid. Estimates are smoothed per device with an EMA.
package localizer

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/retail-sensing/footfall-service/app/detection"
)

type point struct {
	x float64
	y float64
}

type reading struct {
	ward string
	rssi float64
}

// Localizer turns detection tables into position tables against one ward plan.
type Localizer struct {
	plan   detection.WardPlan
	alpha  float64
	source rand.Source
}

// New returns a Localizer for the given ward plan. alpha is the EMA smoothing
// factor, typically 0.3.
func New(plan detection.WardPlan, alpha float64) *Localizer {
	return &Localizer{
		plan:   plan,
		alpha:  alpha,
		source: rand.NewSource(time.Now().UnixNano()),
	}
}

// SetRandSource replaces the randomness used for the single-ward angle pick.
// Intended for reproducible runs and tests.
func (localizer *Localizer) SetRandSource(source rand.Source) {
	localizer.source = source
}

// Localize computes one smoothed position per (identifier, time index) group
// that had at least one usable reading. Readings against wards absent from
// the plan are skipped; groups with nothing usable produce no estimate.
// Smoothing state lives only within this call, so each day starts fresh.
func (localizer *Localizer) Localize(detections []detection.Detection) []detection.Position {
	ordered := make([]detection.Detection, len(detections))
	copy(ordered, detections)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].TimeIndex != ordered[j].TimeIndex {
			return ordered[i].TimeIndex < ordered[j].TimeIndex
		}
		return ordered[i].Identifier < ordered[j].Identifier
	})

	rng := rand.New(localizer.source)
	previous := make(map[string]point)
	positions := make([]detection.Position, 0, len(ordered))

	for start := 0; start < len(ordered); {
		end := start + 1
		for end < len(ordered) &&
			ordered[end].TimeIndex == ordered[start].TimeIndex &&
			ordered[end].Identifier == ordered[start].Identifier {
			end++
		}
		group := ordered[start:end]
		start = end

		identifier := group[0].Identifier
		readings := make([]reading, len(group))
		for i, d := range group {
			readings[i] = reading{ward: d.Ward, rssi: d.RSSI}
		}

		var estimate point
		var ok bool
		switch len(readings) {
		case 1:
			prev, seen := previous[identifier]
			estimate, ok = localizer.fromSingleWard(readings[0], prev, seen, rng)
		case 2:
			estimate, ok = localizer.fromTwoWards(readings)
		default:
			estimate, ok = localizer.fromManyWards(readings)
		}
		if !ok {
			continue
		}

		if prev, seen := previous[identifier]; seen {
			estimate.x = localizer.alpha*estimate.x + (1-localizer.alpha)*prev.x
			estimate.y = localizer.alpha*estimate.y + (1-localizer.alpha)*prev.y
		}
		previous[identifier] = estimate

		positions = append(positions, detection.Position{
			TimeIndex:   group[0].TimeIndex,
			Identifier:  identifier,
			DeviceClass: group[0].DeviceClass,
			X:           estimate.x,
			Y:           estimate.y,
			SensorCount: len(readings),
		})
	}

	detection.SortPositions(positions)
	return positions
}

// fromSingleWard places the device on the circle of estimated distance around
// the ward. If the device has a previous position far enough from the ward,
// that bearing is kept; otherwise the angle is picked uniformly at random.
func (localizer *Localizer) fromSingleWard(r reading, prev point, seen bool, rng *rand.Rand) (point, bool) {
	ward, known := localizer.plan[r.ward]
	if !known {
		return point{}, false
	}
	distance := RssiToDistance(r.rssi)

	var angle float64
	if seen {
		dx := prev.x - ward.X
		dy := prev.y - ward.Y
		if math.Hypot(dx, dy) > 0.1 {
			angle = math.Atan2(dy, dx)
		} else {
			angle = rng.Float64() * 2 * math.Pi
		}
	} else {
		angle = rng.Float64() * 2 * math.Pi
	}

	return point{
		x: ward.X + distance*math.Cos(angle),
		y: ward.Y + distance*math.Sin(angle),
	}, true
}

// fromTwoWards interpolates between the two ward coordinates, weighted by
// inverse estimated distance so the closer ward pulls harder.
func (localizer *Localizer) fromTwoWards(readings []reading) (point, bool) {
	first, knownFirst := localizer.plan[readings[0].ward]
	second, knownSecond := localizer.plan[readings[1].ward]
	if !knownFirst || !knownSecond {
		return point{}, false
	}

	weightFirst := 1.0 / RssiToDistance(readings[0].rssi)
	weightSecond := 1.0 / RssiToDistance(readings[1].rssi)
	total := weightFirst + weightSecond

	return point{
		x: (first.X*weightFirst + second.X*weightSecond) / total,
		y: (first.Y*weightFirst + second.Y*weightSecond) / total,
	}, true
}

// fromManyWards takes the signal-weighted centroid over the wards present in
// the plan, dropping unknown wards.
func (localizer *Localizer) fromManyWards(readings []reading) (point, bool) {
	var weightedX, weightedY, total float64
	usable := 0

	for _, r := range readings {
		ward, known := localizer.plan[r.ward]
		if !known {
			continue
		}
		weight := RssiToWeight(r.rssi)
		weightedX += ward.X * weight
		weightedY += ward.Y * weight
		total += weight
		usable++
	}

	if usable == 0 || total == 0 {
		return point{}, false
	}
	return point{x: weightedX / total, y: weightedY / total}, true
}
