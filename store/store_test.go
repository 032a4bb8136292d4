package store

import (
	"strings"
	"testing"
	"time"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/history"
)

func TestSafeKey(t *testing.T) {
	cases := map[string]string{
		"admin@pa.local":   "admin_at_pa.local",
		"a-b.c":            "a-b.c",
		"a+b@x.com":        "a%2Bb_at_x.com",
		"a_b@x.com":        "a%5Fb_at_x.com",
		"Bob":              "%42ob",
		"../../etc/passwd": "..%2F..%2Fetc%2Fpasswd",
		"山田":               "%E5%B1%B1%E7%94%B0",
		"":                 "_",
	}
	for in, want := range cases {
		if got := SafeKey(in); got != want {
			t.Errorf("SafeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSafeKeyDistinctIDsStayDistinct(t *testing.T) {
	ids := []string{
		"", "_", "%5F", "a.b", "a_b", "a+b", "a b", "a@b", "a_at_b", "x.at.y", "x@y",
		"bob", "Bob", "BOB", "山田", "田中", "yamada 太郎", "yamada_太郎", "a%2Bb",
	}
	seen := make(map[string]string, len(ids))
	for _, id := range ids {
		key := strings.ToLower(SafeKey(id))
		if prev, ok := seen[key]; ok {
			t.Fatalf("%q and %q share key %q", prev, id, key)
		}
		seen[key] = id
	}
}

func TestNewRecord(t *testing.T) {
	at := time.Date(2026, 3, 14, 21, 5, 9, 0, time.UTC)
	rec := NewRecord(at, history.Metadata{Venue: "Quattro"}, analysis.Metrics{RMSDB: -18})
	if rec.ID != "20260314_210509" {
		t.Fatalf("ID = %q", rec.ID)
	}
	if rec.Metadata.Mixer != history.Unspecified || rec.Metadata.Name != history.Unspecified {
		t.Fatalf("metadata not normalized: %+v", rec.Metadata)
	}
	if !rec.Timestamp.Equal(at) || rec.Metrics.RMSDB != -18 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := []Record{
		{ID: "b", Timestamp: base.Add(time.Hour)},
		{ID: "a", Timestamp: base},
		{ID: "c", Timestamp: base.Add(2 * time.Hour)},
		{ID: "c2", Timestamp: base.Add(2 * time.Hour)},
	}
	SortNewestFirst(recs)
	want := []string{"c2", "c", "b", "a"}
	for i, r := range recs {
		if r.ID != want[i] {
			t.Fatalf("order = %v, want %v", ids(recs), want)
		}
	}
}

func ids(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
