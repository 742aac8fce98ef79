// Package session keeps short-lived client state for one wizard session,
// most importantly the idempotency token used before a trip id exists.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/gen"
	"github.com/gofrs/flock"
)

// ClientTempIDKey is the key the trip wizard stores its token under.
const ClientTempIDKey = "trip_creation_client_temp_id"

type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// LoadOrCreateClientTempID returns the stored token for key, issuing and
// storing a new one on a miss.
func LoadOrCreateClientTempID(store Store, key string) (string, error) {
	if v, ok, err := store.Get(key); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	} else if ok && v != "" {
		return v, nil
	}

	id := gen.ClientTempID()
	if err := store.Set(key, id); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}
	return id, nil
}

// ClearClientTempID discards the token once its trip is finalized or the
// wizard is reset.
func ClearClientTempID(store Store, key string) error {
	return store.Delete(key)
}

type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// FileStore persists values as a JSON object in one file. Every access
// takes an advisory lock on a sibling ".lock" file so concurrent CLI
// processes of the same session see consistent state.
type FileStore struct {
	path string
	lock *flock.Flock
}

func NewFileStore(dir, name string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}

	path := filepath.Join(dir, name+".json")
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(key string) (string, bool, error) {
	if err := s.lock.RLock(); err != nil {
		return "", false, fmt.Errorf("failed to lock session: %w", err)
	}
	defer s.lock.Unlock()

	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	return s.update(func(values map[string]string) {
		values[key] = value
	})
}

func (s *FileStore) Delete(key string) error {
	return s.update(func(values map[string]string) {
		delete(values, key)
	})
}

func (s *FileStore) update(fn func(map[string]string)) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	defer s.lock.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	fn(values)

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session: %w", err)
	}
	return nil
}

func (s *FileStore) read() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return values, nil
}
