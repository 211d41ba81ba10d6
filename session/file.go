package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore implements Store with a single JSON file. Writes go through a
// temp file and rename so the file is never left half-written.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// fileState is the on-disk shape of a session.
type fileState struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// NewFileStore creates a file-based session store at path. The file is
// created on first Save with owner-only permissions.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the session file. A missing or unreadable file yields
// ErrNoSession.
func (fs *FileStore) Load(ctx context.Context) (State, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, ErrNoSession
		}
		return State{}, &StoreError{Op: "load", Err: err}
	}

	var onDisk fileState
	if err := json.Unmarshal(data, &onDisk); err != nil {
		// Corrupt state means logged out, not broken.
		return State{}, ErrNoSession
	}
	if onDisk.Token == "" {
		return State{}, ErrNoSession
	}

	return State{Token: onDisk.Token, UserJSON: []byte(onDisk.User)}, nil
}

// Save writes both keys in one atomic file replacement.
func (fs *FileStore) Save(ctx context.Context, state State) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.MarshalIndent(fileState{
		Token: state.Token,
		User:  json.RawMessage(state.UserJSON),
	}, "", "  ")
	if err != nil {
		return &StoreError{Op: "save", Err: fmt.Errorf("marshal session: %w", err)}
	}

	if err := writeFileAtomic(fs.path, data); err != nil {
		return &StoreError{Op: "save", Err: err}
	}
	return nil
}

// Clear deletes the session file. A missing file is not an error.
func (fs *FileStore) Clear(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return &StoreError{Op: "clear", Err: err}
	}
	return nil
}

// Close implements Store. A file store holds no open resources.
func (fs *FileStore) Close() error { return nil }

// writeFileAtomic writes data via a temp file in the same directory and
// renames it over the target, syncing before the rename for durability.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vidvault-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
