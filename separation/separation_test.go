package separation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
)

func testBuffer(t *testing.T) analysis.Buffer {
	t.Helper()
	n := analysis.SampleRate / 4
	mono := make([]float64, n)
	for i := range mono {
		mono[i] = 0.3 * math.Sin(2*math.Pi*220*float64(i)/analysis.SampleRate)
	}
	buf, err := analysis.FromMono(mono, analysis.SampleRate)
	if err != nil {
		t.Fatalf("FromMono: %v", err)
	}
	return buf
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-demucs")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

const copyStemsScript = `model=$2
out=$4
in=$5
mkdir -p "$out/$model/input"
for s in drums bass other vocals; do
  cp "$in" "$out/$model/input/$s.wav"
done
`

type stubSeparator struct {
	available bool
	stems     Stems
	err       error
	panicMsg  string
}

func (s stubSeparator) Available() bool { return s.available }

func (s stubSeparator) Separate(context.Context, analysis.Buffer) (Stems, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.stems, s.err
}

func TestRunWithoutSeparator(t *testing.T) {
	for _, sep := range []Separator{nil, Unavailable{}, stubSeparator{}} {
		out := Run(context.Background(), sep, analysis.Buffer{})
		if out.Status != StatusUnavailable || out.Stems != nil {
			t.Fatalf("%T: outcome = %+v", sep, out)
		}
	}
}

func TestRunClassifiesErrors(t *testing.T) {
	buf := testBuffer(t)
	cases := []struct {
		name string
		sep  stubSeparator
		want Status
	}{
		{"unavailable", stubSeparator{available: true, err: ErrUnavailable}, StatusUnavailable},
		{"failure", stubSeparator{available: true, err: &Failure{Reason: "exit status 1"}}, StatusFailed},
		{"panic", stubSeparator{available: true, panicMsg: "boom"}, StatusFailed},
		{"missing stem", stubSeparator{available: true, stems: Stems{"drums": buf}}, StatusFailed},
	}
	for _, tc := range cases {
		out := Run(context.Background(), tc.sep, buf)
		if out.Status != tc.want || out.Reason == "" {
			t.Errorf("%s: outcome = %+v, want %s", tc.name, out, tc.want)
		}
	}
}

func TestFailureUnwrap(t *testing.T) {
	err := error(&Failure{Reason: "timed out", Err: context.DeadlineExceeded})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("Failure does not unwrap")
	}
	var f *Failure
	if !errors.As(err, &f) || f.Reason != "timed out" {
		t.Fatalf("errors.As = %+v", f)
	}
}

func TestDetect(t *testing.T) {
	if _, ok := Detect(Options{Enabled: false, Binary: "sh"}).(Unavailable); !ok {
		t.Fatal("disabled separation should be unavailable")
	}
	if _, ok := Detect(Options{Enabled: true, Binary: "definitely-not-installed-demucs"}).(Unavailable); !ok {
		t.Fatal("missing binary should be unavailable")
	}
	script := writeScript(t, "exit 0\n")
	d, ok := Detect(Options{Enabled: true, Binary: script}).(*Demucs)
	if !ok || !d.Available() {
		t.Fatalf("expected Demucs, got %#v", d)
	}
	if d.model() != DefaultModel {
		t.Fatalf("model = %q", d.model())
	}
}

func TestDemucsSeparate(t *testing.T) {
	script := writeScript(t, copyStemsScript)
	d := &Demucs{Binary: script, Model: "htdemucs", WorkDir: t.TempDir()}
	buf := testBuffer(t)

	out := Run(context.Background(), d, buf)
	if out.Status != StatusOK {
		t.Fatalf("outcome = %+v", out)
	}
	for _, name := range StemNames {
		stem, ok := out.Stems[name]
		if !ok {
			t.Fatalf("missing stem %s", name)
		}
		if stem.Len() != buf.Len() || stem.SampleRate != analysis.SampleRate {
			t.Fatalf("%s: len=%d rate=%d", name, stem.Len(), stem.SampleRate)
		}
	}
	entries, err := os.ReadDir(d.WorkDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("work dir not cleaned up: %d entries", len(entries))
	}
}

func TestDemucsNonZeroExit(t *testing.T) {
	script := writeScript(t, "echo 'model weights not found' >&2\nexit 3\n")
	d := &Demucs{Binary: script}
	_, err := d.Separate(context.Background(), testBuffer(t))
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("err = %v, want *Failure", err)
	}
	if !strings.Contains(f.Reason, "exit status 3") || !strings.Contains(f.Reason, "model weights not found") {
		t.Fatalf("reason = %q", f.Reason)
	}
}

func TestDemucsMissingStems(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	out := Run(context.Background(), &Demucs{Binary: script}, testBuffer(t))
	if out.Status != StatusFailed || !strings.Contains(out.Reason, "read stem drums") {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestDemucsTimeout(t *testing.T) {
	script := writeScript(t, "exec sleep 30\n")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	out := Run(ctx, &Demucs{Binary: script}, testBuffer(t))
	if out.Status != StatusFailed || !strings.Contains(out.Reason, "timed out") {
		t.Fatalf("outcome = %+v", out)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("separation did not stop on timeout (%s)", elapsed)
	}
}

func TestDemucsCanceled(t *testing.T) {
	script := writeScript(t, "exec sleep 30\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := (&Demucs{Binary: script}).Separate(ctx, testBuffer(t))
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("err = %v, want *Failure", err)
	}
	if f.Reason != "canceled" || !errors.Is(err, context.Canceled) {
		t.Fatalf("reason = %q, err = %v", f.Reason, err)
	}
}
