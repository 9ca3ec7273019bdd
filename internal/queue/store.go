package queue

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotTTL invalidates a persisted snapshot wholesale once its envelope
// timestamp falls outside the retention window.
const SnapshotTTL = 24 * time.Hour

// Store is the persistence contract the manager writes through. Persistence
// is best-effort; implementations must never fail the caller.
type Store interface {
	Load() []Job
	Save(jobs []Job)
}

type snapshotEnvelope struct {
	Timestamp time.Time `json:"timestamp"`
	Jobs      []Job     `json:"jobs"`
}

// SnapshotStore serializes the full job list to a single JSON file so tracked
// jobs survive process restarts. Concurrent writers are last-writer-wins; the
// authoritative state lives in Postgres and the snapshot is only a resume
// hint.
type SnapshotStore struct {
	path   string
	logger zerolog.Logger
}

// NewSnapshotStore creates a store writing to the given file path.
func NewSnapshotStore(path string, logger zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{path: path, logger: logger}
}

// Load reads the snapshot from disk. A missing, corrupt, or expired snapshot
// yields an empty list; corrupt files are removed so the next save starts
// clean.
func (s *SnapshotStore) Load() []Job {
	if s == nil || s.path == "" {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("queue: snapshot read failed")
		}
		return nil
	}
	var env snapshotEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("queue: snapshot corrupt, discarding")
		s.clear()
		return nil
	}
	if env.Timestamp.IsZero() || time.Since(env.Timestamp) > SnapshotTTL {
		s.logger.Info().Str("path", s.path).Msg("queue: snapshot expired, discarding")
		s.clear()
		return nil
	}
	return env.Jobs
}

// Save writes the jobs to disk. Failures are logged and swallowed; the
// in-memory state stays authoritative for the session.
func (s *SnapshotStore) Save(jobs []Job) {
	if s == nil || s.path == "" {
		return
	}
	raw, err := json.Marshal(snapshotEnvelope{Timestamp: time.Now(), Jobs: jobs})
	if err != nil {
		s.logger.Warn().Err(err).Msg("queue: snapshot marshal failed")
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("queue: snapshot dir failed")
		return
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("queue: snapshot write failed")
	}
}

func (s *SnapshotStore) clear() {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("queue: snapshot remove failed")
	}
}
