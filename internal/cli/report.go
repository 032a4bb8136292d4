// Package cli renders analyzer results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/advice"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/history"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/internal/engine"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/separation"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/store"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func RenderReport(w io.Writer, rep *engine.Report) {
	rec := rep.Record
	fmt.Fprintln(w, TitleStyle.Render("PA Analysis: "+rec.Metadata.Name))
	keyValue(w, "Record", rec.ID)
	keyValue(w, "Venue", rec.Metadata.Venue)
	keyValue(w, "Mixer", rec.Metadata.Mixer)

	fmt.Fprintln(w, SectionStyle.Render("Levels"))
	renderMetrics(w, rec.Metrics)

	fmt.Fprintln(w, SectionStyle.Render("Spectrum"))
	keyValue(w, "Centroid", fmt.Sprintf("%.0f Hz", rep.Spectrum.CentroidHz))
	keyValue(w, "Rolloff (85%)", fmt.Sprintf("%.0f Hz", rep.Spectrum.RolloffHz))
	keyValue(w, "Dominant", fmt.Sprintf("%.0f Hz", rep.Spectrum.DominantHz))

	fmt.Fprintln(w, SectionStyle.Render("Insights"))
	for _, in := range rep.Insights {
		fmt.Fprintf(w, "  %s\n", in.Message)
	}

	if len(rep.Tips) > 0 {
		fmt.Fprintln(w, SectionStyle.Render("Advice"))
		for _, tip := range rep.Tips {
			style := GoodStyle
			if tip.Severity == advice.SeverityWarning {
				style = WarnStyle
			}
			fmt.Fprintf(w, "  %s\n", style.Render(tip.Message))
		}
	}

	if sep := rep.Separation; sep != nil {
		fmt.Fprintln(w, SectionStyle.Render("Stems"))
		if sep.Status != separation.StatusOK {
			fmt.Fprintf(w, "  %s\n", WarnStyle.Render(fmt.Sprintf("Separation %s: %s", sep.Status, sep.Reason)))
		}
		for _, stem := range sep.Stems {
			keyValue(w, stem.Name, fmt.Sprintf("RMS %.1f dB, peak %.1f dB, width %.1f%%",
				stem.Metrics.RMSDB, stem.Metrics.PeakDB, stem.Metrics.StereoWidthPct))
		}
	}
}

func renderMetrics(w io.Writer, m analysis.Metrics) {
	keyValue(w, "RMS", fmt.Sprintf("%.1f dB", m.RMSDB))
	keyValue(w, "Peak", fmt.Sprintf("%.1f dB", m.PeakDB))
	keyValue(w, "Crest factor", fmt.Sprintf("%.1f dB", m.CrestFactorDB))
	keyValue(w, "Stereo width", fmt.Sprintf("%.1f%%", m.StereoWidthPct))
	for _, b := range m.BandEnergies {
		keyValue(w, b.Band, fmt.Sprintf("%.1f dB", b.DB))
	}
}

func RenderHistory(w io.Writer, userID string, recs []store.Record) {
	fmt.Fprintln(w, TitleStyle.Render("History: "+userID))
	if len(recs) == 0 {
		fmt.Fprintln(w, KeyStyle.Render("  No analyses yet."))
		return
	}
	for _, r := range recs {
		fmt.Fprintf(w, "  %s  %-20s %-16s %-12s %s\n",
			KeyStyle.Render(r.ID),
			r.Metadata.Name,
			r.Metadata.Venue,
			r.Metadata.Mixer,
			ValueStyle.Render(fmt.Sprintf("%.1f dB", r.Metrics.RMSDB)))
	}
}

func RenderProfile(w io.Writer, userID string, p history.UserProfile, window int) {
	fmt.Fprintln(w, TitleStyle.Render("Profile: "+userID))
	keyValue(w, "Analyses", fmt.Sprint(p.AnalysisCount))
	if len(p.RMSHistory) > 0 {
		keyValue(w, "Recent average", fmt.Sprintf("%.1f dB (last %d)", p.RecentMean(window), min(window, len(p.RMSHistory))))
		keyValue(w, "Latest", fmt.Sprintf("%.1f dB", p.RMSHistory[len(p.RMSHistory)-1]))
	}
	if len(p.VenueCounts) > 0 {
		fmt.Fprintln(w, SectionStyle.Render("Venues"))
		for _, venue := range slices.Sorted(maps.Keys(p.VenueCounts)) {
			keyValue(w, venue, fmt.Sprint(p.VenueCounts[venue]))
		}
	}
}

func RenderMixers(w io.Writer, mixers []engine.MixerSummary) {
	fmt.Fprintln(w, TitleStyle.Render("Mixers"))
	if len(mixers) == 0 {
		fmt.Fprintln(w, KeyStyle.Render("  No analyses yet."))
		return
	}
	for _, m := range mixers {
		keyValue(w, m.Name, fmt.Sprintf("%d analyses, average RMS %.1f dB", m.Count, m.MeanRMSDB))
	}
}
