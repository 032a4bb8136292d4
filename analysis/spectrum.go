package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

const (
	spectrumFFTSize = 4096
	spectrumHop     = 2048
	rolloffFraction = 0.85
)

// Spectrum summarizes the long-term average magnitude spectrum of a clip.
type Spectrum struct {
	CentroidHz float64 `json:"centroid_hz"`
	RolloffHz  float64 `json:"rolloff_hz"`
	DominantHz float64 `json:"dominant_hz"`
	Frames     int     `json:"frames"`
}

// Summarize averages Hann-windowed STFT magnitudes of mono and reports the
// spectral centroid, the 85% rolloff frequency and the strongest bin.
// Silent input yields a zero Spectrum.
func Summarize(mono []float64, sampleRate int) (Spectrum, error) {
	if sampleRate <= 0 {
		return Spectrum{}, fmt.Errorf("%w: %d", ErrSampleRate, sampleRate)
	}
	if len(mono) == 0 {
		return Spectrum{}, nil
	}

	plan, err := algofft.NewPlanReal64(spectrumFFTSize)
	if err != nil {
		return Spectrum{}, fmt.Errorf("fft plan: %w", err)
	}

	hann := make([]float64, spectrumFFTSize)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(spectrumFFTSize-1))
	}

	nBins := spectrumFFTSize / 2
	avg := make([]float64, nBins)
	spec := make([]complex128, nBins+1)
	frame := make([]float64, spectrumFFTSize)

	frames := 0
	for pos := 0; pos+spectrumFFTSize <= len(mono); pos += spectrumHop {
		for i := range frame {
			frame[i] = mono[pos+i] * hann[i]
		}
		plan.Forward(spec, frame)
		for k := 1; k < nBins; k++ {
			avg[k] += cmplx.Abs(spec[k])
		}
		frames++
	}
	if frames == 0 {
		// Shorter than one frame: zero-pad.
		clear(frame)
		for i := 0; i < len(mono); i++ {
			frame[i] = mono[i] * hann[i]
		}
		plan.Forward(spec, frame)
		for k := 1; k < nBins; k++ {
			avg[k] = cmplx.Abs(spec[k])
		}
		frames = 1
	}

	binHz := float64(sampleRate) / float64(spectrumFFTSize)
	var total, weighted, best float64
	bestBin := 0
	for k := 1; k < nBins; k++ {
		mag := avg[k] / float64(frames)
		avg[k] = mag
		total += mag
		weighted += mag * float64(k) * binHz
		if mag > best {
			best = mag
			bestBin = k
		}
	}
	if total <= 1e-12 {
		return Spectrum{Frames: frames}, nil
	}

	s := Spectrum{
		CentroidHz: weighted / total,
		DominantHz: float64(bestBin) * binHz,
		Frames:     frames,
	}
	var acc float64
	for k := 1; k < nBins; k++ {
		acc += avg[k]
		if acc >= rolloffFraction*total {
			s.RolloffHz = float64(k) * binHz
			break
		}
	}
	return s, nil
}
