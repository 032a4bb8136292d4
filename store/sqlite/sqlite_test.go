package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/history"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "pa.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func metricsWithRMS(rms float64) analysis.Metrics {
	return analysis.Metrics{
		RMSDB:          rms,
		PeakDB:         -3,
		CrestFactorDB:  -3 - rms,
		StereoWidthPct: 55,
		BandEnergies: analysis.BandEnergies{
			{Band: "bass", DB: -25},
			{Band: "mid", DB: -21},
		},
	}
}

func TestListUnknownUser(t *testing.T) {
	s := openTestStore(t)
	recs, err := s.List(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("len = %d", len(recs))
	}
}

func TestAppendListOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 9, 18, 30, 0, 0, time.FixedZone("JST", 9*3600))

	order := []time.Duration{time.Minute, 0, 2 * time.Minute}
	for i, d := range order {
		rec := store.NewRecord(base.Add(d), history.Metadata{Venue: "Hall", Mixer: "DM7"}, metricsWithRMS(-20+float64(i)))
		if err := s.Append(ctx, "foh@venue.jp", rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.Append(ctx, "someone-else", store.NewRecord(base, history.Metadata{}, metricsWithRMS(-30))); err != nil {
		t.Fatalf("Append other: %v", err)
	}

	recs, err := s.List(ctx, "foh@venue.jp")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len = %d", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Timestamp.After(recs[i-1].Timestamp) {
			t.Fatalf("records not newest first at %d", i)
		}
	}
	if recs[0].Metrics.RMSDB != -18 || recs[0].Metadata.Mixer != "DM7" {
		t.Fatalf("newest = %+v", recs[0])
	}
	if names := recs[0].Metrics.BandEnergies.Names(); len(names) != 2 || names[0] != "bass" {
		t.Fatalf("band order = %v", names)
	}
	if recs[2].ID != base.Format(store.IDLayout) {
		t.Fatalf("oldest ID = %q", recs[2].ID)
	}
}

func TestAggregateSaveReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.Users) != 0 || len(st.Mixers) != 0 {
		t.Fatalf("fresh state not empty: %+v", st)
	}

	agg := history.NewAggregator(history.DefaultSettings(), st)
	agg.Record("u1", metricsWithRMS(-18), history.Metadata{Venue: "A", Mixer: "X32"})
	agg.Record("u2", metricsWithRMS(-22), history.Metadata{Venue: "B", Mixer: "X32"})
	if err := s.Save(ctx, agg.Snapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	agg.Record("u1", metricsWithRMS(-16), history.Metadata{Venue: "A", Mixer: "SQ5"})
	if err := s.Save(ctx, agg.Snapshot()); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Users) != 2 || len(got.Mixers) != 2 {
		t.Fatalf("users=%d mixers=%d", len(got.Users), len(got.Mixers))
	}
	u1 := got.Users["u1"]
	if u1.AnalysisCount != 2 || len(u1.RMSHistory) != 2 || u1.RMSHistory[1] != -16 || u1.VenueCounts["A"] != 2 {
		t.Fatalf("u1 = %+v", u1)
	}
	if x := got.Mixers["X32"]; x.AnalysisCount != 2 || x.Mean() != -20 {
		t.Fatalf("X32 = %+v", x)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error")
	}
}
