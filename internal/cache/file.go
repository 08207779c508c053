package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

const (
	entryFilePrefix = "entry_"
	entryFileSuffix = ".json"
)

// FileStore keeps one JSON file per key under a directory.
type FileStore struct {
	dir string
	// MaxEntries caps the number of files; zero means unlimited.
	MaxEntries int

	mu sync.Mutex
}

// DefaultDir returns ~/.cache/ramadan-times.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "ramadan-times"), nil
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
// If dir is empty, it defaults to DefaultDir().
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory %s: %w", dir, err)
	}

	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

// fileName hashes the key so arbitrary keys map to safe file names.
func fileName(key string) string {
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s%x%s", entryFilePrefix, h[:8], entryFileSuffix) // 16 hex chars is plenty for uniqueness
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, fileName(key))
}

func (s *FileStore) Get(_ context.Context, key string) (Entry, bool, error) {
	e, err := readEntry(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	// A hash collision would surface as a different key.
	if e.Key != key {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *FileStore) Set(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(e.Key)
	if s.MaxEntries > 0 {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			n, err := s.count()
			if err != nil {
				return err
			}
			if n >= s.MaxEntries {
				return ErrQuotaExceeded
			}
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return mapFull(fmt.Errorf("failed to create cache file: %w", err))
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return mapFull(fmt.Errorf("failed to write cache file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return mapFull(fmt.Errorf("failed to write cache file: %w", err))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// List skips unreadable or corrupted files.
func (s *FileStore) List(_ context.Context, prefix string) ([]Entry, error) {
	names, err := s.entryFiles()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		e, err := readEntry(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		if strings.HasPrefix(e.Key, prefix) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) count() (int, error) {
	names, err := s.entryFiles()
	return len(names), err
}

func (s *FileStore) entryFiles() ([]string, error) {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}
	var names []string
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, entryFilePrefix) || !strings.HasSuffix(name, entryFileSuffix) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func readEntry(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("corrupted cache file %s: %w", filepath.Base(path), err)
	}
	return e, nil
}

// mapFull turns a full disk into ErrQuotaExceeded so the cache evicts.
func mapFull(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}
