package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/couplepet/internal/domain/petstate"
)

const fileMode = 0o644

// FileStore keeps the pet as one JSON document on disk. Writes go to a temp
// file in the same directory which is then renamed over the target.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store at path, creating its directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Load implements Store.
func (f *FileStore) Load(_ context.Context) (petstate.PetState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return petstate.PetState{}, ErrNotFound
	}
	if err != nil {
		return petstate.PetState{}, fmt.Errorf("read %s: %w", f.path, err)
	}

	var s petstate.PetState
	if err := json.Unmarshal(data, &s); err != nil {
		return petstate.PetState{}, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return s, nil
}

// Save implements Store.
func (f *FileStore) Save(_ context.Context, s petstate.PetState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode pet: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := filepath.Join(filepath.Dir(f.path), "."+filepath.Base(f.path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// Close implements Store.
func (f *FileStore) Close() error { return nil }
