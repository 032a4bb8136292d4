package history

import (
	"fmt"
	"slices"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
)

// Settings tunes insight thresholds and history retention.
type Settings struct {
	// ThresholdDB is the strict distance from the recent mean that counts
	// as a pressure change.
	ThresholdDB float64
	// Window is how many trailing runs form the recent mean.
	Window int
	// MinRuns is the analysis count at which trend insights start.
	MinRuns int
	// SummaryRuns is the analysis count at which the cumulative total is reported.
	SummaryRuns int
	// Retention caps the stored RMS history per user and per mixer.
	// Zero keeps everything.
	Retention int
}

func DefaultSettings() Settings {
	return Settings{
		ThresholdDB: 2.0,
		Window:      5,
		MinRuns:     3,
		SummaryRuns: 5,
		Retention:   1000,
	}
}

func (s Settings) Validate() error {
	if !(s.ThresholdDB > 0) {
		return fmt.Errorf("threshold_db must be > 0")
	}
	if s.Window < 1 {
		return fmt.Errorf("window must be >= 1")
	}
	if s.MinRuns < 1 {
		return fmt.Errorf("min_runs must be >= 1")
	}
	if s.SummaryRuns < 1 {
		return fmt.Errorf("summary_runs must be >= 1")
	}
	if s.Retention < 0 {
		return fmt.Errorf("retention must be >= 0")
	}
	if s.Retention > 0 && s.Retention < s.Window {
		return fmt.Errorf("retention (%d) must be 0 or >= window (%d)", s.Retention, s.Window)
	}
	return nil
}

// Aggregator owns the per-user and per-mixer state. It is not safe for
// concurrent use; callers serialize access.
type Aggregator struct {
	settings Settings
	state    State
}

// NewAggregator resumes from a previously persisted state.
func NewAggregator(settings Settings, state State) *Aggregator {
	return &Aggregator{settings: settings, state: state.Clone()}
}

func (a *Aggregator) Settings() Settings {
	return a.settings
}

// Record folds one completed run into the user's and the mixer's profile.
func (a *Aggregator) Record(userID string, m analysis.Metrics, meta Metadata) {
	meta = meta.Normalize()

	user, ok := a.state.Users[userID]
	if !ok {
		user = &UserProfile{VenueCounts: make(map[string]int)}
		a.state.Users[userID] = user
	}
	if user.VenueCounts == nil {
		user.VenueCounts = make(map[string]int)
	}
	user.AnalysisCount++
	user.RMSHistory = a.retain(append(user.RMSHistory, m.RMSDB))
	user.VenueCounts[meta.Venue]++

	mixer, ok := a.state.Mixers[meta.Mixer]
	if !ok {
		mixer = &MixerProfile{}
		a.state.Mixers[meta.Mixer] = mixer
	}
	mixer.AnalysisCount++
	mixer.RMSSamples = a.retain(append(mixer.RMSSamples, m.RMSDB))
}

func (a *Aggregator) retain(x []float64) []float64 {
	limit := a.settings.Retention
	if limit <= 0 || len(x) <= limit {
		return x
	}
	// Copy so the dropped prefix does not pin the old backing array.
	return append([]float64(nil), x[len(x)-limit:]...)
}

// Profile returns a copy of the user's profile.
func (a *Aggregator) Profile(userID string) (UserProfile, bool) {
	p, ok := a.state.Users[userID]
	if !ok || p == nil {
		return UserProfile{}, false
	}
	return *p.clone(), true
}

// Mixer returns a copy of the named mixer's profile.
func (a *Aggregator) Mixer(name string) (MixerProfile, bool) {
	p, ok := a.state.Mixers[name]
	if !ok || p == nil {
		return MixerProfile{}, false
	}
	return *p.clone(), true
}

// MixerNames lists known mixers alphabetically.
func (a *Aggregator) MixerNames() []string {
	names := make([]string, 0, len(a.state.Mixers))
	for k := range a.state.Mixers {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Snapshot returns a deep copy suitable for persistence.
func (a *Aggregator) Snapshot() State {
	return a.state.Clone()
}
