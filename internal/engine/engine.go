// Package engine runs the analysis session: decode, measure, record,
// compare against history, advise, and optionally separate stems.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/advice"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/history"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/internal/audiofile"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/separation"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/store"
)

const DefaultSeparationTimeout = 10 * time.Minute

type Options struct {
	Settings   history.Settings
	Records    store.RecordStore
	Aggregates store.AggregateStore
	// Separator defaults to separation.Unavailable.
	Separator         separation.Separator
	SeparationTimeout time.Duration
	Logger            logrus.FieldLogger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine serializes updates to the shared history. Metric computation and
// stem separation run outside the lock.
type Engine struct {
	mu         sync.Mutex
	agg        *history.Aggregator
	records    store.RecordStore
	aggregates store.AggregateStore

	separator  separation.Separator
	sepTimeout time.Duration
	log        logrus.FieldLogger
	now        func() time.Time
	decode     func(path string) (analysis.Buffer, error)
}

// New restores the persisted aggregate state and returns a ready engine.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Records == nil || opts.Aggregates == nil {
		return nil, fmt.Errorf("engine: record and aggregate stores are required")
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	state, err := opts.Aggregates.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: load aggregates: %w", err)
	}

	e := &Engine{
		agg:        history.NewAggregator(opts.Settings, state),
		records:    opts.Records,
		aggregates: opts.Aggregates,
		separator:  opts.Separator,
		sepTimeout: opts.SeparationTimeout,
		log:        opts.Logger,
		now:        opts.Now,
		decode:     audiofile.Decode,
	}
	if e.separator == nil {
		e.separator = separation.Unavailable{}
	}
	if e.sepTimeout <= 0 {
		e.sepTimeout = DefaultSeparationTimeout
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// SeparationAvailable reports whether stems can be produced.
func (e *Engine) SeparationAvailable() bool {
	return e.separator.Available()
}

type Request struct {
	UserID   string
	Path     string
	Metadata history.Metadata
	Separate bool
}

type StemReport struct {
	Name    string           `json:"name"`
	Metrics analysis.Metrics `json:"metrics"`
}

type SeparationReport struct {
	Status separation.Status `json:"status"`
	Reason string            `json:"reason,omitempty"`
	Stems  []StemReport      `json:"stems,omitempty"`
}

// Report is everything one analysis run produced.
type Report struct {
	UserID     string            `json:"user_id"`
	Record     store.Record      `json:"record"`
	Spectrum   analysis.Spectrum `json:"spectrum"`
	Insights   []history.Insight `json:"insights"`
	Tips       []advice.Tip      `json:"tips"`
	Separation *SeparationReport `json:"separation,omitempty"`
}

// Analyze decodes req.Path and runs the full session on it. Decode errors
// surface before any state changes.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Report, error) {
	buf, err := e.decode(req.Path)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"user":  req.UserID,
			"path":  req.Path,
			"error": err,
		}).Error("Decode failed")
		return nil, err
	}
	return e.AnalyzeBuffer(ctx, req, buf)
}

// AnalyzeBuffer runs the session on already decoded audio. req.Path is
// ignored.
func (e *Engine) AnalyzeBuffer(ctx context.Context, req Request, buf analysis.Buffer) (*Report, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	start := time.Now()
	log := e.log.WithFields(logrus.Fields{
		"user":  req.UserID,
		"venue": req.Metadata.Venue,
		"mixer": req.Metadata.Mixer,
	})

	m, err := analysis.Analyze(buf)
	if err != nil {
		return nil, err
	}
	spec, err := analysis.Summarize(buf.Mono(), buf.SampleRate)
	if err != nil {
		return nil, err
	}

	rec, insights, err := e.commit(ctx, req.UserID, req.Metadata, m)
	if err != nil {
		log.WithField("error", err).Error("Persisting analysis failed")
		return nil, err
	}

	report := &Report{
		UserID:   req.UserID,
		Record:   rec,
		Spectrum: spec,
		Insights: insights,
		Tips:     advice.Generate(m),
	}
	log.WithFields(logrus.Fields{
		"record":  rec.ID,
		"rms_db":  m.RMSDB,
		"elapsed": time.Since(start).String(),
	}).Info("Analysis recorded")

	if req.Separate {
		report.Separation = e.separate(ctx, buf, log)
	}
	return report, nil
}

// commit folds the run into the aggregate history, persists it, then appends
// the record, as one serialized step. A failed append restores and re-saves
// the previous aggregate state.
func (e *Engine) commit(ctx context.Context, userID string, meta history.Metadata, m analysis.Metrics) (store.Record, []history.Insight, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := store.NewRecord(e.now(), meta, m)

	prev := e.agg.Snapshot()
	e.agg.Record(userID, m, rec.Metadata)
	if err := e.aggregates.Save(ctx, e.agg.Snapshot()); err != nil {
		e.agg = history.NewAggregator(e.agg.Settings(), prev)
		return store.Record{}, nil, fmt.Errorf("save aggregates: %w", err)
	}

	if err := e.records.Append(ctx, userID, rec); err != nil {
		e.agg = history.NewAggregator(e.agg.Settings(), prev)
		if rerr := e.aggregates.Save(context.WithoutCancel(ctx), prev); rerr != nil {
			e.log.WithFields(logrus.Fields{
				"user":  userID,
				"error": rerr,
			}).Error("Restoring aggregates after failed append")
		}
		return store.Record{}, nil, fmt.Errorf("append record: %w", err)
	}
	return rec, e.agg.Insights(userID, m), nil
}

func (e *Engine) separate(ctx context.Context, buf analysis.Buffer, log logrus.FieldLogger) *SeparationReport {
	ctx, cancel := context.WithTimeout(ctx, e.sepTimeout)
	defer cancel()

	start := time.Now()
	out := separation.Run(ctx, e.separator, buf)
	rep := &SeparationReport{Status: out.Status, Reason: out.Reason}
	fields := logrus.Fields{
		"status":  out.Status,
		"elapsed": time.Since(start).String(),
	}
	if out.Status != separation.StatusOK {
		fields["reason"] = out.Reason
		log.WithFields(fields).Warn("Stem separation skipped")
		return rep
	}

	for _, name := range separation.StemNames {
		sm, err := analysis.Analyze(out.Stems[name])
		if err != nil {
			log.WithFields(logrus.Fields{"stem": name, "error": err}).Warn("Stem analysis failed")
			continue
		}
		rep.Stems = append(rep.Stems, StemReport{Name: name, Metrics: sm})
	}
	log.WithFields(fields).Info("Stems analyzed")
	return rep
}

// History returns the user's stored records, newest first.
func (e *Engine) History(ctx context.Context, userID string) ([]store.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.records.List(ctx, userID)
}

func (e *Engine) Profile(userID string) (history.UserProfile, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agg.Profile(userID)
}

type MixerSummary struct {
	Name      string  `json:"name"`
	Count     int     `json:"count"`
	MeanRMSDB float64 `json:"avg_rms"`
}

// Mixers summarizes every known console, sorted by name.
func (e *Engine) Mixers() []MixerSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := e.agg.MixerNames()
	out := make([]MixerSummary, 0, len(names))
	for _, name := range names {
		p, ok := e.agg.Mixer(name)
		if !ok {
			continue
		}
		out = append(out, MixerSummary{Name: name, Count: p.AnalysisCount, MeanRMSDB: p.Mean()})
	}
	return out
}
