package analysis

import (
	"errors"
	"math"
	"testing"
)

func TestSummarizeFindsSineFrequency(t *testing.T) {
	s, err := Summarize(makeSine(1000, 0.5, SampleRate), SampleRate)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	binHz := float64(SampleRate) / spectrumFFTSize
	if math.Abs(s.DominantHz-1000) > binHz {
		t.Fatalf("dominant = %.1f Hz, want ~1000", s.DominantHz)
	}
	if math.Abs(s.CentroidHz-1000) > 50 {
		t.Fatalf("centroid = %.1f Hz, want ~1000", s.CentroidHz)
	}
	if s.RolloffHz < 900 || s.RolloffHz > 1100 {
		t.Fatalf("rolloff = %.1f Hz, want near 1000", s.RolloffHz)
	}
	if s.Frames < 2 {
		t.Fatalf("expected several STFT frames, got %d", s.Frames)
	}
}

func TestSummarizeShortInputIsZeroPadded(t *testing.T) {
	s, err := Summarize(makeSine(2000, 0.5, 1024), SampleRate)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Frames != 1 {
		t.Fatalf("frames = %d, want 1", s.Frames)
	}
	if math.Abs(s.DominantHz-2000) > 50 {
		t.Fatalf("dominant = %.1f Hz, want ~2000", s.DominantHz)
	}
}

func TestSummarizeSilence(t *testing.T) {
	s, err := Summarize(make([]float64, 8192), SampleRate)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.CentroidHz != 0 || s.RolloffHz != 0 || s.DominantHz != 0 {
		t.Fatalf("expected zero spectrum for silence, got %+v", s)
	}
}

func TestSummarizeRejectsBadRate(t *testing.T) {
	if _, err := Summarize([]float64{1}, 0); !errors.Is(err, ErrSampleRate) {
		t.Fatalf("err = %v, want ErrSampleRate", err)
	}
}
