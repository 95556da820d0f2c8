// Package history persists suite run results in a bbolt database.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// CheckRecord is the stored outcome of a single check.
type CheckRecord struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Report   string        `json:"report,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Run is the stored outcome of a suite run.
type Run struct {
	ID       string        `json:"id"`
	Suite    string        `json:"suite"`
	Source   string        `json:"source,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Passed   bool          `json:"passed"`
	Checks   []CheckRecord `json:"checks"`
}

// Failed returns the checks that did not pass or skip.
func (r Run) Failed() []CheckRecord {
	var out []CheckRecord
	for _, c := range r.Checks {
		if c.Status == "fail" || c.Status == "error" {
			out = append(out, c)
		}
	}
	return out
}

// Store is a bbolt-backed run history.
type Store struct {
	db *bolt.DB
	mu sync.RWMutex
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveRun stores run under its ID, replacing any previous record.
func (s *Store) SaveRun(run Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put([]byte(run.ID), data)
	})
}

// GetRun loads a run by ID.
func (s *Store) GetRun(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run Run
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(runsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &run)
	})
	return run, err
}

// ListRuns returns all runs, newest first. A positive limit caps the result.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []Run
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", string(k), err)
			}
			runs = append(runs, run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Started.After(runs[j].Started)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// DeleteRun removes a run. Deleting an unknown id is not an error.
func (s *Store) DeleteRun(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Delete([]byte(id))
	})
}

// Prune keeps the newest keep runs and deletes the rest, returning how many
// were removed.
func (s *Store) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	runs, err := s.ListRuns(0)
	if err != nil {
		return 0, err
	}
	if len(runs) <= keep {
		return 0, nil
	}
	stale := runs[keep:]

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket)
		for _, run := range stale {
			if err := b.Delete([]byte(run.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}
