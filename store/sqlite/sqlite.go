// Package sqlite is a SQLite backend for the record and aggregate stores,
// built on gorm.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/analysis"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/history"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/store"
)

type recordRow struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"index;not null"`
	RecordID  string    `gorm:"not null"`
	Timestamp time.Time `gorm:"index;not null"`
	Metadata  string    `gorm:"type:text;not null"`
	Metrics   string    `gorm:"type:text;not null"`
}

func (recordRow) TableName() string { return "analysis_records" }

type userProfileRow struct {
	UserID     string `gorm:"primaryKey"`
	Count      int    `gorm:"not null"`
	RMSHistory string `gorm:"type:text;not null"`
	Venues     string `gorm:"type:text;not null"`
}

func (userProfileRow) TableName() string { return "user_profiles" }

type mixerProfileRow struct {
	Name       string `gorm:"primaryKey"`
	Count      int    `gorm:"not null"`
	RMSSamples string `gorm:"type:text;not null"`
}

func (mixerProfileRow) TableName() string { return "mixer_profiles" }

// Store implements store.RecordStore and store.AggregateStore.
type Store struct {
	db *gorm.DB
}

var (
	_ store.RecordStore    = (*Store)(nil)
	_ store.AggregateStore = (*Store)(nil)
)

// Open connects to the database file at path and migrates the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := db.AutoMigrate(&recordRow{}, &userProfileRow{}, &mixerProfileRow{}); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Append(ctx context.Context, userID string, rec store.Record) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(rec.Metrics)
	if err != nil {
		return err
	}
	row := recordRow{
		ID:        uuid.NewString(),
		UserID:    userID,
		RecordID:  rec.ID,
		Timestamp: rec.Timestamp.UTC(),
		Metadata:  string(meta),
		Metrics:   string(metrics),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, userID string) ([]store.Record, error) {
	var rows []recordRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp asc").Order("rowid asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	recs := make([]store.Record, 0, len(rows))
	for _, row := range rows {
		rec := store.Record{ID: row.RecordID, Timestamp: row.Timestamp}
		if err := json.Unmarshal([]byte(row.Metadata), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("record %s metadata: %w", row.ID, err)
		}
		var m analysis.Metrics
		if err := json.Unmarshal([]byte(row.Metrics), &m); err != nil {
			return nil, fmt.Errorf("record %s metrics: %w", row.ID, err)
		}
		rec.Metrics = m
		recs = append(recs, rec)
	}
	store.SortNewestFirst(recs)
	return recs, nil
}

func (s *Store) Load(ctx context.Context) (history.State, error) {
	db := s.db.WithContext(ctx)
	var users []userProfileRow
	if err := db.Find(&users).Error; err != nil {
		return history.State{}, fmt.Errorf("failed to load user profiles: %w", err)
	}
	var mixers []mixerProfileRow
	if err := db.Find(&mixers).Error; err != nil {
		return history.State{}, fmt.Errorf("failed to load mixer profiles: %w", err)
	}

	st := history.NewState()
	for _, u := range users {
		p := &history.UserProfile{AnalysisCount: u.Count}
		if err := json.Unmarshal([]byte(u.RMSHistory), &p.RMSHistory); err != nil {
			return history.State{}, fmt.Errorf("user %s rms history: %w", u.UserID, err)
		}
		if err := json.Unmarshal([]byte(u.Venues), &p.VenueCounts); err != nil {
			return history.State{}, fmt.Errorf("user %s venues: %w", u.UserID, err)
		}
		st.Users[u.UserID] = p
	}
	for _, m := range mixers {
		p := &history.MixerProfile{AnalysisCount: m.Count}
		if err := json.Unmarshal([]byte(m.RMSSamples), &p.RMSSamples); err != nil {
			return history.State{}, fmt.Errorf("mixer %s samples: %w", m.Name, err)
		}
		st.Mixers[m.Name] = p
	}
	return st, nil
}

// Save replaces the stored aggregate state in a single transaction.
func (s *Store) Save(ctx context.Context, state history.State) error {
	users := make([]userProfileRow, 0, len(state.Users))
	for id, p := range state.Users {
		if p == nil {
			continue
		}
		hist, err := json.Marshal(nonNil(p.RMSHistory))
		if err != nil {
			return err
		}
		venues := p.VenueCounts
		if venues == nil {
			venues = map[string]int{}
		}
		v, err := json.Marshal(venues)
		if err != nil {
			return err
		}
		users = append(users, userProfileRow{UserID: id, Count: p.AnalysisCount, RMSHistory: string(hist), Venues: string(v)})
	}
	mixers := make([]mixerProfileRow, 0, len(state.Mixers))
	for name, p := range state.Mixers {
		if p == nil {
			continue
		}
		samples, err := json.Marshal(nonNil(p.RMSSamples))
		if err != nil {
			return err
		}
		mixers = append(mixers, mixerProfileRow{Name: name, Count: p.AnalysisCount, RMSSamples: string(samples)})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&userProfileRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&mixerProfileRow{}).Error; err != nil {
			return err
		}
		if len(users) > 0 {
			if err := tx.Create(&users).Error; err != nil {
				return fmt.Errorf("failed to save user profiles: %w", err)
			}
		}
		if len(mixers) > 0 {
			if err := tx.Create(&mixers).Error; err != nil {
				return fmt.Errorf("failed to save mixer profiles: %w", err)
			}
		}
		return nil
	})
}

func nonNil(x []float64) []float64 {
	if x == nil {
		return []float64{}
	}
	return x
}
