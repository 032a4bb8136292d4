// Package audiofile decodes uploaded clips into analysis buffers and writes
// stereo WAV files for external tools.
package audiofile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
	"github.com/hajimehoshi/go-mp3"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyAudio        = errors.New("audio file contains no samples")
)

// Extensions lists the formats Decode understands.
var Extensions = []string{".wav", ".wave", ".mp3"}

// Decode reads a WAV or MP3 file and returns a stereo buffer at
// analysis.SampleRate. Mono files are duplicated to both channels.
func Decode(path string) (analysis.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return analysis.Buffer{}, err
	}
	defer f.Close()

	var left, right []float64
	var rate int
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		left, right, rate, err = readWAV(f)
	case ".mp3":
		left, right, rate, err = readMP3(f)
	default:
		return analysis.Buffer{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return analysis.Buffer{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return toAnalysisRate(left, right, rate)
}

func readWAV(r io.ReadSeeker) ([]float64, []float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, nil, 0, fmt.Errorf("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, nil, 0, fmt.Errorf("invalid wav buffer")
	}

	numCh := buf.Format.NumChannels
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, nil, 0, ErrEmptyAudio
	}

	left := make([]float64, frames)
	right := make([]float64, frames)
	if numCh == 1 {
		for i := range frames {
			v := float64(buf.Data[i])
			left[i] = v
			right[i] = v
		}
	} else {
		for i := range frames {
			left[i] = float64(buf.Data[i*numCh])
			right[i] = float64(buf.Data[i*numCh+1])
		}
	}
	return left, right, buf.Format.SampleRate, nil
}

// go-mp3 always yields interleaved 16-bit little-endian stereo.
func readMP3(r io.Reader) ([]float64, []float64, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, nil, 0, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, nil, 0, err
	}

	const bytesPerFrame = 4
	frames := len(raw) / bytesPerFrame
	if frames == 0 {
		return nil, nil, 0, ErrEmptyAudio
	}
	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := range frames {
		o := i * bytesPerFrame
		l := int16(uint16(raw[o]) | uint16(raw[o+1])<<8)
		rr := int16(uint16(raw[o+2]) | uint16(raw[o+3])<<8)
		left[i] = float64(l) / 32768.0
		right[i] = float64(rr) / 32768.0
	}
	return left, right, dec.SampleRate(), nil
}

func toAnalysisRate(left, right []float64, rate int) (analysis.Buffer, error) {
	if rate <= 0 {
		return analysis.Buffer{}, fmt.Errorf("%w: %d", analysis.ErrSampleRate, rate)
	}
	var err error
	if left, err = resampleIfNeeded(left, rate, analysis.SampleRate); err != nil {
		return analysis.Buffer{}, err
	}
	if right, err = resampleIfNeeded(right, rate, analysis.SampleRate); err != nil {
		return analysis.Buffer{}, err
	}
	n := min(len(left), len(right))
	if n == 0 {
		return analysis.Buffer{}, ErrEmptyAudio
	}
	return analysis.NewBuffer(left[:n], right[:n], analysis.SampleRate)
}

func resampleIfNeeded(in []float64, fromRate int, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d Hz: %w", fromRate, toRate, err)
	}
	return r.Process(in), nil
}

// WriteStereoWAV writes buf as a 16-bit stereo WAV file.
func WriteStereoWAV(path string, buf analysis.Buffer) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]float32, buf.Len()*2)
	for i := range buf.Len() {
		data[i*2] = float32(buf.Left[i])
		data[i*2+1] = float32(buf.Right[i])
	}

	enc := wav.NewEncoder(f, buf.SampleRate, 16, 2, 1)
	pcm := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  buf.SampleRate,
			NumChannels: 2,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(pcm); err != nil {
		return err
	}
	return enc.Close()
}
