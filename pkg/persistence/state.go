package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// SnapshotVersion is the current version of the Q-table snapshot format.
const SnapshotVersion = 1

// QEntry is one (state, agent) → value row of the Q-table.
type QEntry struct {
	Kind    string  `cbor:"1,keyasint"`
	Bucket  string  `cbor:"2,keyasint"`
	AgentID string  `cbor:"3,keyasint"`
	Value   float64 `cbor:"4,keyasint"`
}

// QTableSnapshot is the on-disk representation of the policy engine's
// learned value function.
type QTableSnapshot struct {
	Version int       `cbor:"1,keyasint"`
	SavedAt time.Time `cbor:"2,keyasint"`
	Entries []QEntry  `cbor:"3,keyasint"`
}

// QTableStore manages atomic persistence of a QTableSnapshot to a single file.
type QTableStore struct {
	mu   sync.Mutex
	path string
}

// NewQTableStore creates a store backed by the file at path.
func NewQTableStore(path string) *QTableStore {
	return &QTableStore{path: path}
}

// Save atomically replaces the snapshot file: it writes to a temp file in
// the same directory, then renames over the destination so a reader never
// observes a partially written file.
func (s *QTableStore) Save(snapshot QTableSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("persistence: create state dir: %w", err)
	}

	snapshot.Version = SnapshotVersion
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = time.Now()
	}

	data, err := cbor.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("persistence: encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".qtable-*.tmp")
	if err != nil {
		return fmt.Errorf("persistence: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persistence: rename temp file: %w", err)
	}

	return nil
}

// Load reads the snapshot from disk. A missing file returns a zero-value
// snapshot and no error (start from an empty Q-table). A file that exists
// but fails to decode, or carries an unknown version, is reported as an
// error; callers are expected to log it and start from zero rather than
// fail startup (§7: persistence errors never halt the process).
func (s *QTableStore) Load() (QTableSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return QTableSnapshot{}, nil
	}
	if err != nil {
		return QTableSnapshot{}, fmt.Errorf("persistence: read snapshot: %w", err)
	}

	var snapshot QTableSnapshot
	if err := cbor.Unmarshal(data, &snapshot); err != nil {
		return QTableSnapshot{}, fmt.Errorf("persistence: decode snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return QTableSnapshot{}, fmt.Errorf("persistence: unsupported snapshot version %d", snapshot.Version)
	}

	return snapshot, nil
}

// Clear removes the snapshot file. Safe to call when no file exists.
func (s *QTableStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
