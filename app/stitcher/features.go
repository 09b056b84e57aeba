/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package stitcher

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/retail-sensing/footfall-service/app/detection"
	"github.com/retail-sensing/footfall-service/pkg/timeindex"
)

// Features summarizes one identifier's day of position estimates. Used only
// as stitching input.
type Features struct {
	Identifier  string
	DeviceClass int
	FirstTime   int
	LastTime    int
	Appearances int

	FirstX float64
	FirstY float64
	LastX  float64
	LastY  float64
	MeanX  float64
	MeanY  float64
	StdX   float64
	StdY   float64

	// TotalDistance is the cumulative path length over consecutive estimates.
	TotalDistance float64
	// LifetimeSeconds spans first to last appearance.
	LifetimeSeconds int
}

// ExtractFeatures builds one feature summary per identifier, ordered by
// identifier. Standard deviations are population deviations, so a single
// appearance yields zero rather than an undefined value.
func ExtractFeatures(positions []detection.Position) []Features {
	ordered := make([]detection.Position, len(positions))
	copy(ordered, positions)
	detection.SortPositions(ordered)

	features := make([]Features, 0)
	for start := 0; start < len(ordered); {
		end := start + 1
		for end < len(ordered) && ordered[end].Identifier == ordered[start].Identifier {
			end++
		}
		group := ordered[start:end]
		start = end

		xs := make([]float64, len(group))
		ys := make([]float64, len(group))
		totalDistance := 0.0
		for i, p := range group {
			xs[i] = p.X
			ys[i] = p.Y
			if i > 0 {
				totalDistance += math.Hypot(p.X-group[i-1].X, p.Y-group[i-1].Y)
			}
		}

		first := group[0]
		last := group[len(group)-1]
		features = append(features, Features{
			Identifier:      first.Identifier,
			DeviceClass:     first.DeviceClass,
			FirstTime:       first.TimeIndex,
			LastTime:        last.TimeIndex,
			Appearances:     len(group),
			FirstX:          first.X,
			FirstY:          first.Y,
			LastX:           last.X,
			LastY:           last.Y,
			MeanX:           stat.Mean(xs, nil),
			MeanY:           stat.Mean(ys, nil),
			StdX:            stat.PopStdDev(xs, nil),
			StdY:            stat.PopStdDev(ys, nil),
			TotalDistance:   totalDistance,
			LifetimeSeconds: timeindex.ToSeconds(last.TimeIndex - first.TimeIndex),
		})
	}

	sort.Slice(features, func(i, j int) bool {
		return features[i].Identifier < features[j].Identifier
	})
	return features
}
