/* Apache v2 license
*  Copyright (C) <2025> Retail Sensing
*
*  SPDX-License-Identifier: Apache-2.0
 */

package localizer

const (
	nearRssi     = -60.0
	farRssi      = -80.0
	nearDistance = 2.0
	farDistance  = 10.0

	weightStrongRssi = -40.0
	weightWeakRssi   = -100.0
)

// RssiToDistance converts a signal strength to an estimated distance by
// piecewise-linear interpolation: -60 dBm and stronger reads as 2.0 units,
// -80 dBm and weaker as 10.0, linear in between. Never extrapolates.
func RssiToDistance(rssi float64) float64 {
	if rssi >= nearRssi {
		return nearDistance
	}
	if rssi <= farRssi {
		return farDistance
	}
	return nearDistance + (farDistance-nearDistance)*(nearRssi-rssi)/(nearRssi-farRssi)
}

// RssiToWeight converts a signal strength to a centroid weight. The signal is
// normalized into [0, 1] over [-100, -40] dBm and inverted, so strong signals
// weigh up to 10 and the weakest weigh just under 1.
func RssiToWeight(rssi float64) float64 {
	normalized := (weightStrongRssi - rssi) / (weightStrongRssi - weightWeakRssi)
	if normalized < 0 {
		normalized = 0
	} else if normalized > 1 {
		normalized = 1
	}
	return 1.0 / (normalized + 0.1)
}
