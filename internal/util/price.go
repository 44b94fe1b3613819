// Package util provides common helpers for price arithmetic.
package util

import "math"

// RoundToTick rounds x to the nearest tick increment. Zero or negative
// ticks leave x unchanged apart from the sign of the tick being ignored.
func RoundToTick(x, tick float64) float64 {
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	tick = math.Abs(tick)
	return math.Round(x/tick) * tick
}

// Clamp bounds x to the closed interval [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
