// Package filterbank splits a mono signal into the fixed seven-band
// spectral catalog used by the metrics engine.
//
// Each band is a Butterworth high-pass section cascade at the lower edge
// followed by a Butterworth low-pass cascade at the upper edge, run as a
// single forward pass.
package filterbank

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/dsp"
)

// Order is the Butterworth order applied at each band edge.
const Order = 4

// Cutoffs are normalized to Nyquist and clamped to this open interval.
const (
	minNormalized = 0.001
	maxNormalized = 0.999
)

// Band is a named frequency range in Hz.
type Band struct {
	Name   string  `json:"name"`
	LowHz  float64 `json:"low_hz"`
	HighHz float64 `json:"high_hz"`
}

var catalog = [...]Band{
	{Name: "sub_bass", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "low_mid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "high_mid", LowHz: 2000, HighHz: 4000},
	{Name: "presence", LowHz: 4000, HighHz: 8000},
	{Name: "brilliance", LowHz: 8000, HighHz: 20000},
}

// Catalog returns the seven analysis bands in ascending frequency order.
// The returned slice is a copy.
func Catalog() []Band {
	out := make([]Band, len(catalog))
	copy(out, catalog[:])
	return out
}

// NumBands is the size of the catalog.
func NumBands() int {
	return len(catalog)
}

// Bandpass returns signal filtered to [lowHz, highHz]. The input is not
// modified.
//
// Degenerate bands (cutoffs that collapse after clamping) and any numerical
// failure while designing or running the filter yield an all-zero signal of
// the same length instead of an error.
func Bandpass(signal []float64, lowHz, highHz, sampleRate float64) []float64 {
	out := make([]float64, len(signal))
	if len(signal) == 0 || !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return out
	}

	nyquist := sampleRate / 2
	lowN := dsp.Clamp(lowHz/nyquist, minNormalized, maxNormalized)
	highN := dsp.Clamp(highHz/nyquist, minNormalized, maxNormalized)
	if math.IsNaN(lowN) || math.IsNaN(highN) || lowN >= highN {
		return out
	}

	copy(out, signal)
	if !apply(out, lowN*nyquist, highN*nyquist, sampleRate) {
		clear(out)
	}
	return out
}

// Split runs every catalog band over signal, in catalog order.
func Split(signal []float64, sampleRate float64) [][]float64 {
	out := make([][]float64, len(catalog))
	for i, b := range catalog {
		out[i] = Bandpass(signal, b.LowHz, b.HighHz, sampleRate)
	}
	return out
}

func apply(buf []float64, lowHz, highHz, sampleRate float64) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	hp := biquad.NewChain(design.ButterworthHP(lowHz, Order, sampleRate))
	lp := biquad.NewChain(design.ButterworthLP(highHz, Order, sampleRate))
	hp.ProcessBlock(buf)
	lp.ProcessBlock(buf)

	return dsp.AllFinite(buf)
}
