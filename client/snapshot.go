package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-errors"
)

// Snapshot is the persisted form of AuthState
type Snapshot struct {
	AccessToken  string           `json:"accessToken"`
	SessionToken string           `json:"sessionToken"`
	ExpiresAt    time.Time        `json:"expiresAt"`
	AdminID      string           `json:"adminId"`
	Mode         auth.SessionMode `json:"mode"`
}

func (s *Snapshot) pair() *auth.TokenPair {
	return &auth.TokenPair{
		AccessToken:  s.AccessToken,
		SessionToken: s.SessionToken,
		ExpiresAt:    s.ExpiresAt,
		AdminID:      s.AdminID,
		Mode:         s.Mode,
	}
}

func snapshotFromState(s AuthState) *Snapshot {
	return &Snapshot{
		AccessToken:  s.AccessToken,
		SessionToken: s.SessionToken,
		ExpiresAt:    s.Expiry,
		AdminID:      s.AdminID,
		Mode:         s.Mode(),
	}
}

// SnapshotStore persists the client session across restarts.
// Load returns nil, nil when nothing is stored.
type SnapshotStore interface {
	Load() (*Snapshot, error)
	Save(s *Snapshot) error
	Delete() error
}

type MemorySnapshotStore struct {
	mu       sync.Mutex
	snapshot *Snapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (m *MemorySnapshotStore) Load() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil, nil
	}
	cp := *m.snapshot
	return &cp, nil
}

func (m *MemorySnapshotStore) Save(s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil {
		m.snapshot = nil
		return nil
	}
	cp := *s
	m.snapshot = &cp
	return nil
}

func (m *MemorySnapshotStore) Delete() error {
	m.mu.Lock()
	m.snapshot = nil
	m.mu.Unlock()
	return nil
}

// FileSnapshotStore keeps the snapshot as a JSON file readable by the
// owner only.
type FileSnapshotStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

func (f *FileSnapshotStore) Load() (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &Snapshot{}
	found, err := readJSONFile(f.path, out)
	if err != nil || !found {
		return nil, err
	}
	return out, nil
}

func (f *FileSnapshotStore) Save(s *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSONFile(f.path, s)
}

func (f *FileSnapshotStore) Delete() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return removeFile(f.path)
}

func readJSONFile(path string, out any) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.CategoryInternal, "read state file")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, errors.Wrap(err, errors.CategoryBadInput, "decode state file")
	}
	return true, nil
}

func writeJSONFile(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "encode state file")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "create state dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "create state file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.CategoryInternal, "write state file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.CategoryInternal, "chmod state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "close state file")
	}
	return os.Rename(tmp.Name(), path)
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.CategoryInternal, "remove state file")
	}
	return nil
}
