// Package analysis turns a decoded stereo clip into the level, crest,
// stereo width and band-energy metrics compared across analysis runs.
package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/dsp"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/filterbank"
)

// BandEnergy is the RMS level of one filter bank band in dB.
type BandEnergy struct {
	Band string
	DB   float64
}

// BandEnergies keeps band levels in catalog order. It encodes to JSON as an
// object whose keys follow that order.
type BandEnergies []BandEnergy

// Get returns the level of the named band.
func (b BandEnergies) Get(name string) (float64, bool) {
	for _, e := range b {
		if e.Band == name {
			return e.DB, true
		}
	}
	return 0, false
}

// Names returns the band names in order.
func (b BandEnergies) Names() []string {
	out := make([]string, len(b))
	for i, e := range b {
		out[i] = e.Band
	}
	return out
}

func (b BandEnergies) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Band)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.DB)
		if err != nil {
			return nil, fmt.Errorf("band %s: %w", e.Band, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b *BandEnergies) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*b = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("band energies: expected object, got %v", tok)
	}

	var out BandEnergies
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("band energies: expected key, got %v", tok)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("band energies: %s: %w", name, err)
		}
		out = append(out, BandEnergy{Band: name, DB: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*b = out
	return nil
}

// Metrics is the result of one analysis run.
type Metrics struct {
	RMSDB          float64      `json:"rms_db"`
	PeakDB         float64      `json:"peak_db"`
	CrestFactorDB  float64      `json:"crest_factor_db"`
	StereoWidthPct float64      `json:"stereo_width_pct"`
	BandEnergies   BandEnergies `json:"band_energies"`
}

// Analyze computes Metrics for buf. It fails only for structurally invalid
// input; silent or otherwise degenerate audio yields finite sentinel values.
func Analyze(buf Buffer) (Metrics, error) {
	if err := buf.Validate(); err != nil {
		return Metrics{}, err
	}

	mono := buf.Mono()

	m := Metrics{
		RMSDB:          dsp.ToDB(dsp.RMS(mono)),
		PeakDB:         dsp.ToDB(dsp.Peak(mono)),
		StereoWidthPct: StereoWidth(buf.Left, buf.Right),
	}
	m.CrestFactorDB = m.PeakDB - m.RMSDB

	bands := filterbank.Catalog()
	m.BandEnergies = make(BandEnergies, len(bands))
	for i, b := range bands {
		filtered := filterbank.Bandpass(mono, b.LowHz, b.HighHz, float64(buf.SampleRate))
		m.BandEnergies[i] = BandEnergy{Band: b.Name, DB: dsp.ToDB(dsp.RMS(filtered))}
	}

	return m, nil
}

// StereoWidth returns the share of total energy carried by the side
// channel, in percent. Identical channels give 0, inverted channels 100.
func StereoWidth(left, right []float64) float64 {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	var midE, sideE float64
	for i := 0; i < n; i++ {
		mid := 0.5 * (left[i] + right[i])
		side := 0.5 * (left[i] - right[i])
		midE += mid * mid
		sideE += side * side
	}
	return 100.0 * sideE / (midE + sideE + dsp.Epsilon)
}
