// Package history aggregates completed analysis runs per user and per
// mixing console, and derives trend insights from that history.
package history

import (
	"maps"
	"strings"
)

// Unspecified replaces empty metadata fields.
const Unspecified = "unspecified"

// Metadata describes where and how a clip was recorded.
type Metadata struct {
	Name  string `json:"analysis_name"`
	Venue string `json:"venue"`
	Mixer string `json:"mixer"`
}

// Normalize trims every field and substitutes Unspecified for empty ones.
func (m Metadata) Normalize() Metadata {
	return Metadata{
		Name:  orUnspecified(m.Name),
		Venue: orUnspecified(m.Venue),
		Mixer: orUnspecified(m.Mixer),
	}
}

func orUnspecified(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unspecified
	}
	return s
}

// UserProfile is the rolling history of one user.
type UserProfile struct {
	AnalysisCount int            `json:"count"`
	RMSHistory    []float64      `json:"rms_history"`
	VenueCounts   map[string]int `json:"venues"`
}

// RecentMean averages the last window RMS values (fewer if not available).
func (p UserProfile) RecentMean(window int) float64 {
	return trailingMean(p.RMSHistory, window)
}

func (p *UserProfile) clone() *UserProfile {
	return &UserProfile{
		AnalysisCount: p.AnalysisCount,
		RMSHistory:    append([]float64(nil), p.RMSHistory...),
		VenueCounts:   maps.Clone(p.VenueCounts),
	}
}

// MixerProfile is the rolling history of one console model, across users.
type MixerProfile struct {
	AnalysisCount int       `json:"count"`
	RMSSamples    []float64 `json:"rms_samples"`
}

// Mean averages the retained RMS samples.
func (p MixerProfile) Mean() float64 {
	return trailingMean(p.RMSSamples, len(p.RMSSamples))
}

func (p *MixerProfile) clone() *MixerProfile {
	return &MixerProfile{
		AnalysisCount: p.AnalysisCount,
		RMSSamples:    append([]float64(nil), p.RMSSamples...),
	}
}

// State is the persisted aggregate of all users and mixers.
type State struct {
	Users  map[string]*UserProfile  `json:"users"`
	Mixers map[string]*MixerProfile `json:"mixers"`
}

func NewState() State {
	return State{
		Users:  make(map[string]*UserProfile),
		Mixers: make(map[string]*MixerProfile),
	}
}

// Clone returns a deep copy. Nil maps and entries are normalized away.
func (s State) Clone() State {
	out := NewState()
	for k, p := range s.Users {
		if p != nil {
			out.Users[k] = p.clone()
		}
	}
	for k, p := range s.Mixers {
		if p != nil {
			out.Mixers[k] = p.clone()
		}
	}
	return out
}

func trailingMean(x []float64, window int) float64 {
	if window <= 0 || len(x) == 0 {
		return 0
	}
	if window < len(x) {
		x = x[len(x)-window:]
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}
