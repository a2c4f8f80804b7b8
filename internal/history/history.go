// Package history keeps a sqlite ledger of capture sessions.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SessionRecord is one row per capture session. StoppedAt is nil while the
// session runs, or when the daemon died before stopping it.
type SessionRecord struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Directory   string     `gorm:"index" json:"directory"`
	Target      string     `json:"target,omitempty"`
	StartOrigin string     `json:"start_origin"`
	StopOrigin  string     `json:"stop_origin,omitempty"`
	Source      string     `json:"capture_source"`
	StartedAt   time.Time  `gorm:"index" json:"started_at"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
	Frames      int        `json:"frames"`
	CreatedAt   time.Time  `json:"-"`
	UpdatedAt   time.Time  `json:"-"`
}

// Duration returns the recorded length, or zero for an open session.
func (r SessionRecord) Duration() time.Duration {
	if r.StoppedAt == nil {
		return 0
	}
	return r.StoppedAt.Sub(r.StartedAt)
}

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite file at path, creating its directory and
// migrating the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.Initialize(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Initialize migrates the schema.
func (s *Store) Initialize() error {
	if err := s.db.AutoMigrate(&SessionRecord{}); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Begin inserts rec and fills in its ID.
func (s *Store) Begin(rec *SessionRecord) error {
	if result := s.db.Create(rec); result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert session record")
	}
	return nil
}

// Finish closes the session with the given ID.
func (s *Store) Finish(id uint, stoppedAt time.Time, frames int, stopOrigin string) error {
	result := s.db.Model(&SessionRecord{}).Where("id = ?", id).Updates(map[string]any{
		"stopped_at":  stoppedAt,
		"frames":      frames,
		"stop_origin": stopOrigin,
	})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to finish session record")
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(gorm.ErrRecordNotFound, "session record %d", id)
	}
	return nil
}

// Get returns the record with the given ID.
func (s *Store) Get(id uint) (*SessionRecord, error) {
	var rec SessionRecord
	result := s.db.First(&rec, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get session record")
	}
	return &rec, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []SessionRecord
	result := s.db.Order("started_at DESC").Order("id DESC").Limit(limit).Find(&recs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query session records")
	}
	return recs, nil
}

// CloseDangling marks every open session as stopped at now with the given
// origin. The daemon calls it at startup to close rows left by a crash.
func (s *Store) CloseDangling(now time.Time, origin string) (int64, error) {
	result := s.db.Model(&SessionRecord{}).Where("stopped_at IS NULL").Updates(map[string]any{
		"stopped_at":  now,
		"stop_origin": origin,
	})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to close dangling session records")
	}
	return result.RowsAffected, nil
}
