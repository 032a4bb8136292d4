package history

import (
	"fmt"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
)

// Insight rule identifiers.
const (
	RuleFirstAnalysis  = "first_analysis"
	RulePressureUp     = "pressure_improved"
	RulePressureDown   = "pressure_dropped"
	RulePressureStable = "pressure_stable"
	RuleTotalCount     = "total_count"
	RuleAccumulating   = "accumulating"
)

// Insight is one trend message.
type Insight struct {
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`
}

// Messages flattens insights to their text.
func Messages(ins []Insight) []string {
	out := make([]string, len(ins))
	for i, in := range ins {
		out[i] = in.Message
	}
	return out
}

// Insights compares current against the user's history. It does not
// modify state. In the normal flow Record has already run, so the history
// includes current.
func (a *Aggregator) Insights(userID string, current analysis.Metrics) []Insight {
	user, ok := a.state.Users[userID]
	if !ok || user == nil {
		return []Insight{{
			RuleID:  RuleFirstAnalysis,
			Message: "First analysis! Keep analyzing to build up your history.",
		}}
	}

	s := a.settings
	var out []Insight

	if user.AnalysisCount >= s.MinRuns {
		avg := user.RecentMean(s.Window)
		cur := current.RMSDB
		switch {
		case cur > avg+s.ThresholdDB:
			out = append(out, Insight{
				RuleID:  RulePressureUp,
				Message: fmt.Sprintf("Pressure improved: %+.1f dB above your recent average.", cur-avg),
			})
		case cur < avg-s.ThresholdDB:
			out = append(out, Insight{
				RuleID:  RulePressureDown,
				Message: fmt.Sprintf("Pressure dropped: %.1f dB below your recent average.", avg-cur),
			})
		default:
			out = append(out, Insight{
				RuleID:  RulePressureStable,
				Message: fmt.Sprintf("Stable pressure (recent average: %.1f dB).", avg),
			})
		}
	}

	if user.AnalysisCount >= s.SummaryRuns {
		out = append(out, Insight{
			RuleID:  RuleTotalCount,
			Message: fmt.Sprintf("Total analyses: %d.", user.AnalysisCount),
		})
	}

	if len(out) == 0 {
		return []Insight{{
			RuleID:  RuleAccumulating,
			Message: fmt.Sprintf("Accumulating data... trend analysis starts after %d runs.", s.MinRuns),
		}}
	}
	return out
}
