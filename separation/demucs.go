package separation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/internal/audiofile"
)

const (
	DefaultBinary = "demucs"
	DefaultModel  = "htdemucs"

	inputName = "input"
)

// Options configures Detect.
type Options struct {
	Enabled bool
	Binary  string
	Model   string
	// WorkDir holds per-run scratch directories. Empty means os.TempDir.
	WorkDir string
}

// Detect resolves the separator for this process: Demucs when enabled and the
// binary is on PATH, Unavailable otherwise.
func Detect(opts Options) Separator {
	if !opts.Enabled {
		return Unavailable{}
	}
	bin := opts.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return Unavailable{}
	}
	return &Demucs{Binary: path, Model: opts.Model, WorkDir: opts.WorkDir}
}

// Demucs runs the demucs command line tool:
//
//	<binary> -n <model> -o <out> <input.wav>
//
// and reads <out>/<model>/input/<stem>.wav back.
type Demucs struct {
	Binary  string
	Model   string
	WorkDir string
}

func (d *Demucs) Available() bool { return d != nil && d.Binary != "" }

func (d *Demucs) model() string {
	if d.Model == "" {
		return DefaultModel
	}
	return d.Model
}

func (d *Demucs) Separate(ctx context.Context, buf analysis.Buffer) (Stems, error) {
	if !d.Available() {
		return nil, ErrUnavailable
	}
	dir, err := os.MkdirTemp(d.WorkDir, "pa-separate-*")
	if err != nil {
		return nil, &Failure{Reason: "create work dir", Err: err}
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, inputName+".wav")
	if err := audiofile.WriteStereoWAV(input, buf); err != nil {
		return nil, &Failure{Reason: "write input", Err: err}
	}
	outDir := filepath.Join(dir, "out")

	cmd := exec.CommandContext(ctx, d.Binary, "-n", d.model(), "-o", outDir, input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			reason := "canceled"
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				reason = "timed out"
			}
			return nil, &Failure{Reason: reason, Err: ctxErr}
		}
		reason := "exit"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			reason = fmt.Sprintf("exit status %d", exitErr.ExitCode())
		}
		if msg := lastLine(stderr.String()); msg != "" {
			reason += ": " + msg
		}
		return nil, &Failure{Reason: reason, Err: err}
	}

	stemDir := filepath.Join(outDir, d.model(), inputName)
	stems := make(Stems, len(StemNames))
	for _, name := range StemNames {
		b, err := audiofile.Decode(filepath.Join(stemDir, name+".wav"))
		if err != nil {
			return nil, &Failure{Reason: "read stem " + name, Err: err}
		}
		stems[name] = b
	}
	return stems, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
