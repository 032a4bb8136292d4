package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/internal/audiofile"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/internal/engine"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/store"
)

func writeTempMix(t *testing.T, amp float64) string {
	t.Helper()
	n := analysis.SampleRate / 4
	left := make([]float64, n)
	right := make([]float64, n)
	for i := range left {
		left[i] = amp * math.Sin(2*math.Pi*440*float64(i)/analysis.SampleRate)
		right[i] = amp * math.Sin(2*math.Pi*660*float64(i)/analysis.SampleRate)
	}
	buf, err := analysis.NewBuffer(left, right, analysis.SampleRate)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	path := filepath.Join(t.TempDir(), "mix.wav")
	if err := audiofile.WriteStereoWAV(path, buf); err != nil {
		t.Fatalf("WriteStereoWAV: %v", err)
	}
	return path
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("PA_LOG_LEVEL", "error")
	t.Setenv("PA_SEPARATION_ENABLED", "false")
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
	return out.String()
}

func TestAnalyzeHistoryMixers(t *testing.T) {
	for _, backend := range []string{"json", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			isolate(t)
			dataDir := t.TempDir()
			global := []string{"--data-dir", dataDir, "--backend", backend}
			mix := writeTempMix(t, 0.3)

			for range 3 {
				args := append([]string{"analyze", mix, "--user", "foh@example.com", "--venue", "Loft", "--mixer", "X32", "--json"}, global...)
				var rep engine.Report
				if err := json.Unmarshal([]byte(runCLI(t, args...)), &rep); err != nil {
					t.Fatalf("report json: %v", err)
				}
				if len(rep.Record.Metrics.BandEnergies) != 7 || len(rep.Insights) == 0 {
					t.Fatalf("report = %+v", rep)
				}
			}

			var recs []store.Record
			out := runCLI(t, append([]string{"history", "--user", "foh@example.com", "--json"}, global...)...)
			if err := json.Unmarshal([]byte(out), &recs); err != nil {
				t.Fatalf("history json: %v", err)
			}
			if len(recs) != 3 || recs[0].Metadata.Mixer != "X32" {
				t.Fatalf("history = %+v", recs)
			}

			out = runCLI(t, append([]string{"mixers"}, global...)...)
			if !strings.Contains(out, "X32") || !strings.Contains(out, "3 analyses") {
				t.Fatalf("mixers output: %q", out)
			}

			out = runCLI(t, append([]string{"profile", "--user", "foh@example.com"}, global...)...)
			if !strings.Contains(out, "Loft") {
				t.Fatalf("profile output: %q", out)
			}
		})
	}
}

func TestAnalyzeSeparateWithoutTool(t *testing.T) {
	isolate(t)
	mix := writeTempMix(t, 0.2)
	out := runCLI(t, "analyze", mix, "--user", "u", "--separate", "--data-dir", t.TempDir())
	if !strings.Contains(out, "Separation unavailable") {
		t.Fatalf("output: %q", out)
	}
}

func TestProfileUnknownUser(t *testing.T) {
	isolate(t)
	err := run(context.Background(), []string{"profile", "--user", "ghost", "--data-dir", t.TempDir()}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("err = %v", err)
	}
}

func TestRejectsUnknownBackend(t *testing.T) {
	isolate(t)
	err := run(context.Background(), []string{"mixers", "--backend", "postgres", "--data-dir", t.TempDir()}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "backend") {
		t.Fatalf("err = %v", err)
	}
}

func TestVersion(t *testing.T) {
	out := runCLI(t, "version")
	if !strings.Contains(out, version) {
		t.Fatalf("output: %q", out)
	}
}
