// Package advice turns a single metrics result into mix feedback for the
// front-of-house engineer.
package advice

import (
	"fmt"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
)

// Severity classifies a tip.
type Severity string

const (
	SeverityGood    Severity = "good"
	SeverityWarning Severity = "warning"
)

// Target ranges for a live mix recording.
const (
	RMSGoodMinDB  = -20.0
	RMSGoodMaxDB  = -16.0
	RMSTooLowDB   = -23.0
	PeakClipDB    = -1.0
	WidthIdealMin = 50.0
	WidthIdealMax = 70.0
)

// Tip is one piece of feedback.
type Tip struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type rule func(analysis.Metrics) *Tip

var rules = []rule{
	tipRMSGood,
	tipRMSTooLow,
	tipPeakClipping,
	tipWidthIdeal,
}

// Generate evaluates every rule in order and returns the tips that fired.
func Generate(m analysis.Metrics) []Tip {
	var tips []Tip
	for _, r := range rules {
		if tip := r(m); tip != nil {
			tips = append(tips, *tip)
		}
	}
	return tips
}

func tipRMSGood(m analysis.Metrics) *Tip {
	if m.RMSDB < RMSGoodMinDB || m.RMSDB > RMSGoodMaxDB {
		return nil
	}
	return &Tip{
		RuleID:   "rms_good",
		Severity: SeverityGood,
		Message:  fmt.Sprintf("RMS level is in the target range (%.1f dB).", m.RMSDB),
	}
}

func tipRMSTooLow(m analysis.Metrics) *Tip {
	if m.RMSDB >= RMSTooLowDB {
		return nil
	}
	return &Tip{
		RuleID:   "rms_too_low",
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("Level is too low (%.1f dB). Bring the master up.", m.RMSDB),
	}
}

func tipPeakClipping(m analysis.Metrics) *Tip {
	if m.PeakDB <= PeakClipDB {
		return nil
	}
	return &Tip{
		RuleID:   "peak_clipping_risk",
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("Peaks are too hot (%.1f dB). Risk of clipping.", m.PeakDB),
	}
}

func tipWidthIdeal(m analysis.Metrics) *Tip {
	if m.StereoWidthPct < WidthIdealMin || m.StereoWidthPct > WidthIdealMax {
		return nil
	}
	return &Tip{
		RuleID:   "width_ideal",
		Severity: SeverityGood,
		Message:  fmt.Sprintf("Stereo width is ideal (%.1f%%).", m.StereoWidthPct),
	}
}
