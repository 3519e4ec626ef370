// Package store keeps timestamped JSON artifacts, such as batch reports,
// under the cache directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ibeckermayer/tokpost/internal/config"
)

// ErrNotFound means a kind has no saved output yet.
var ErrNotFound = errors.New("no saved output")

// Kind identifies a family of outputs. Each kind has its own directory.
type Kind string

const (
	Runs   Kind = "runs"
	Logins Kind = "logins"
)

// Store writes outputs below a root directory.
type Store struct {
	root string
	now  func() time.Time
}

// New creates a store rooted at root.
func New(root string) *Store {
	return &Store{root: root, now: time.Now}
}

// Default returns a store in the user's cache directory.
func Default() (*Store, error) {
	dir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}
	return New(dir), nil
}

// Dir returns the directory holding outputs of kind.
func (s *Store) Dir(kind Kind) string {
	return filepath.Join(s.root, string(kind))
}

// Filenames sort chronologically.
func (s *Store) filename(ext string) string {
	return s.now().UTC().Format("2006-01-02T15-04-05.000000") + ext
}

// Save writes data as indented JSON and returns the file's path.
func Save[T any](s *Store, kind Kind, data T) (string, error) {
	dir := s.Dir(kind)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create %s dir: %w", kind, err)
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s output: %w", kind, err)
	}

	path := filepath.Join(dir, s.filename(".json"))
	if err := os.WriteFile(path, jsonData, 0600); err != nil {
		return "", fmt.Errorf("failed to write %s output: %w", kind, err)
	}
	return path, nil
}

// Load reads JSON data from path.
func Load[T any](path string) (T, error) {
	var data T

	jsonData, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return data, nil
}

// LoadLatest loads the most recent output of kind and returns it with the
// path it came from.
func LoadLatest[T any](s *Store, kind Kind) (T, string, error) {
	var zero T

	path, err := s.LatestFile(kind)
	if err != nil {
		return zero, "", err
	}
	data, err := Load[T](path)
	if err != nil {
		return zero, "", err
	}
	return data, path, nil
}

// LatestFile returns the path of the most recent output of kind.
func (s *Store) LatestFile(kind Kind) (string, error) {
	dir := s.Dir(kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w for %s", ErrNotFound, kind)
		}
		return "", err
	}

	// os.ReadDir sorts by name.
	for i := len(entries) - 1; i >= 0; i-- {
		if e := entries[i]; !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w for %s", ErrNotFound, kind)
}
