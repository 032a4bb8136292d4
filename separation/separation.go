// Package separation splits a mix into instrument stems with an external
// source-separation tool. The tool is optional; when it is missing or fails
// the analysis continues without stems.
package separation

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
)

// StemNames lists the stems a successful separation yields, in report order.
var StemNames = []string{"drums", "bass", "other", "vocals"}

// Stems maps a stem name to its audio.
type Stems map[string]analysis.Buffer

var ErrUnavailable = errors.New("source separation unavailable")

// Failure reports a separation attempt that ran and did not succeed.
type Failure struct {
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return "separation failed: " + f.Reason
	}
	return fmt.Sprintf("separation failed: %s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Separator is the separation capability. Implementations must be safe to
// call from one goroutine at a time.
type Separator interface {
	Available() bool
	Separate(ctx context.Context, buf analysis.Buffer) (Stems, error)
}

// Unavailable is the Separator used when no tool is installed.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Separate(context.Context, analysis.Buffer) (Stems, error) {
	return nil, ErrUnavailable
}

type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
	StatusFailed      Status = "failed"
)

// Outcome is the result of Run. Stems is set only when Status is StatusOK.
type Outcome struct {
	Status Status
	Stems  Stems
	Reason string
}

// Run attempts separation and classifies the result. It never returns an
// error and never panics.
func Run(ctx context.Context, sep Separator, buf analysis.Buffer) (out Outcome) {
	if sep == nil || !sep.Available() {
		return Outcome{Status: StatusUnavailable, Reason: ErrUnavailable.Error()}
	}
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Status: StatusFailed, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	stems, err := sep.Separate(ctx, buf)
	switch {
	case errors.Is(err, ErrUnavailable):
		return Outcome{Status: StatusUnavailable, Reason: err.Error()}
	case err != nil:
		return Outcome{Status: StatusFailed, Reason: err.Error()}
	}
	for _, name := range StemNames {
		if _, ok := stems[name]; !ok {
			return Outcome{Status: StatusFailed, Reason: fmt.Sprintf("missing stem %q", name)}
		}
	}
	return Outcome{Status: StatusOK, Stems: stems}
}
