// Package dsp holds the level primitives shared by the analysis packages.
package dsp

import "math"

// Epsilon keeps level logarithms finite on silent input.
const Epsilon = 1e-10

// SilenceDB is the level reported for an all-zero signal (20*log10(Epsilon)).
var SilenceDB = ToDB(0)

// ToDB converts a linear amplitude to decibels, offset by Epsilon.
func ToDB(x float64) float64 {
	return 20.0 * math.Log10(x+Epsilon)
}

// RMS returns the root-mean-square of x, or 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(Energy(x) / float64(len(x)))
}

// Peak returns max(|x|).
func Peak(x []float64) float64 {
	var peak float64
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// Energy returns the sum of squares of x.
func Energy(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// Mean returns the arithmetic mean of x, or 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AllFinite reports whether every sample of x is finite.
func AllFinite(x []float64) bool {
	for _, v := range x {
		if !IsFinite(v) {
			return false
		}
	}
	return true
}
