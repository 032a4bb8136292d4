package analysis

import (
	"errors"
	"fmt"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/dsp"
)

// SampleRate is the rate decoded audio is converted to before analysis.
const SampleRate = 44100

var (
	ErrEmptyBuffer     = errors.New("analysis: empty audio buffer")
	ErrChannelMismatch = errors.New("analysis: left/right length mismatch")
	ErrSampleRate      = errors.New("analysis: invalid sample rate")
	ErrNonFinite       = errors.New("analysis: non-finite sample")
)

// Buffer is a decoded stereo clip. Mono sources carry the same samples in
// both channels.
type Buffer struct {
	Left       []float64
	Right      []float64
	SampleRate int
}

// NewBuffer validates and wraps two channel slices. The slices are not copied.
func NewBuffer(left, right []float64, sampleRate int) (Buffer, error) {
	b := Buffer{Left: left, Right: right, SampleRate: sampleRate}
	if err := b.Validate(); err != nil {
		return Buffer{}, err
	}
	return b, nil
}

// FromMono duplicates a single channel into both sides of a new buffer.
func FromMono(mono []float64, sampleRate int) (Buffer, error) {
	left := append([]float64(nil), mono...)
	right := append([]float64(nil), mono...)
	return NewBuffer(left, right, sampleRate)
}

// Validate reports structurally invalid input and NaN or infinite samples.
func (b Buffer) Validate() error {
	if len(b.Left) == 0 && len(b.Right) == 0 {
		return ErrEmptyBuffer
	}
	if len(b.Left) != len(b.Right) {
		return fmt.Errorf("%w: %d vs %d", ErrChannelMismatch, len(b.Left), len(b.Right))
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrSampleRate, b.SampleRate)
	}
	if !dsp.AllFinite(b.Left) {
		return fmt.Errorf("%w in left channel", ErrNonFinite)
	}
	if !dsp.AllFinite(b.Right) {
		return fmt.Errorf("%w in right channel", ErrNonFinite)
	}
	return nil
}

// Len is the number of frames.
func (b Buffer) Len() int {
	return len(b.Left)
}

// Seconds is the clip duration.
func (b Buffer) Seconds() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Left)) / float64(b.SampleRate)
}

// Mono returns the per-sample mean of the two channels.
func (b Buffer) Mono() []float64 {
	n := len(b.Left)
	if len(b.Right) < n {
		n = len(b.Right)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = 0.5 * (b.Left[i] + b.Right[i])
	}
	return out
}
