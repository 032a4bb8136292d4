// Package jsonfile stores analysis records and aggregate state as JSON files
// under a data directory.
//
// Layout:
//
//	<dir>/user_data/<safe user key>.json   {"analyses": [...]}
//	<dir>/aggregates.json                  {"users": {...}, "mixers": {...}}
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/history"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/store"
)

const (
	userDir        = "user_data"
	aggregatesFile = "aggregates.json"
)

type userFile struct {
	Analyses []store.Record `json:"analyses"`
}

// Store implements store.RecordStore and store.AggregateStore. It does no
// locking of its own; one process owns a data directory at a time.
type Store struct {
	dir string
}

var (
	_ store.RecordStore    = (*Store)(nil)
	_ store.AggregateStore = (*Store)(nil)
)

// New prepares dir for use.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("jsonfile: empty data dir")
	}
	if err := os.MkdirAll(filepath.Join(dir, userDir), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) userPath(userID string) string {
	return filepath.Join(s.dir, userDir, store.SafeKey(userID)+".json")
}

func (s *Store) Append(ctx context.Context, userID string, rec store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.userPath(userID)
	var f userFile
	if err := readJSON(path, &f); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	f.Analyses = append(f.Analyses, rec)
	return writeJSON(path, f)
}

func (s *Store) List(ctx context.Context, userID string) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var f userFile
	if err := readJSON(s.userPath(userID), &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []store.Record{}, nil
		}
		return nil, err
	}
	if f.Analyses == nil {
		return []store.Record{}, nil
	}
	store.SortNewestFirst(f.Analyses)
	return f.Analyses, nil
}

func (s *Store) Load(ctx context.Context) (history.State, error) {
	if err := ctx.Err(); err != nil {
		return history.State{}, err
	}
	var st history.State
	if err := readJSON(filepath.Join(s.dir, aggregatesFile), &st); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return history.NewState(), nil
		}
		return history.State{}, err
	}
	return st.Clone(), nil
}

func (s *Store) Save(ctx context.Context, state history.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeJSON(filepath.Join(s.dir, aggregatesFile), state.Clone())
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces path atomically via a temp file and rename.
func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
