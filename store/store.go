// Package store defines the persistence boundaries of the analyzer: the
// per-user record history and the aggregate profile state.
package store

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/history"
)

// IDLayout formats record identifiers from their timestamp.
const IDLayout = "20060102_150405"

// Record is one persisted analysis run.
type Record struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  history.Metadata `json:"metadata"`
	Metrics   analysis.Metrics `json:"result"`
}

// NewRecord stamps a run with its creation time.
func NewRecord(at time.Time, meta history.Metadata, m analysis.Metrics) Record {
	return Record{
		ID:        at.Format(IDLayout),
		Timestamp: at,
		Metadata:  meta.Normalize(),
		Metrics:   m,
	}
}

// RecordStore keeps an append-only analysis history per user.
type RecordStore interface {
	Append(ctx context.Context, userID string, rec Record) error
	// List returns the user's records, newest first. Unknown users have
	// an empty history.
	List(ctx context.Context, userID string) ([]Record, error)
}

// AggregateStore persists the history aggregator state.
type AggregateStore interface {
	Load(ctx context.Context) (history.State, error)
	Save(ctx context.Context, state history.State) error
}

// SortNewestFirst orders records by descending timestamp. Records with equal
// timestamps keep their insertion order reversed.
func SortNewestFirst(recs []Record) {
	slices.Reverse(recs)
	slices.SortStableFunc(recs, func(a, b Record) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}

// SafeKey maps a user identifier onto a filesystem-safe name. Distinct
// identifiers always yield distinct names, also on case-insensitive
// filesystems: lowercase ASCII letters, digits, '-' and '.' are kept, '@'
// becomes "_at_", and every other byte is written as %XX (uppercase hex).
// The empty identifier maps to "_".
func SafeKey(userID string) string {
	if userID == "" {
		return "_"
	}
	const hexDigits = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(userID); i++ {
		c := userID[i]
		switch {
		case c == '@':
			sb.WriteString("_at_")
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '.':
			sb.WriteByte(c)
		default:
			sb.WriteByte('%')
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0x0F])
		}
	}
	return sb.String()
}
