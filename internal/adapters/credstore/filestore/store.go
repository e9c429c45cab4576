// Package filestore persists credential-group tokens as a small versioned
// JSON document on local disk. Writes go through a temp file and rename so a
// crash mid-write can never leave a partial store behind.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SscSPs/brokerage_sync_app/internal/apperrors"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
)

// document is the on-disk shape. The version counter increments on every
// successful write and backs the optimistic concurrency check.
type document struct {
	Version int64             `json:"version"`
	Tokens  map[string]string `json:"tokens"`
}

// Store is a file-backed CredentialStore.
type Store struct {
	path string
}

// New creates a store at path. The parent directory is created on first write.
func New(path string) *Store {
	return &Store{path: path}
}

var _ clients.CredentialStore = (*Store)(nil)

// Read loads the current token set. A missing file reads as an empty store at
// version zero. A file that exists but does not parse is an error: guessing a
// shape here and later overwriting it would destroy tokens we never saw.
func (s *Store) Read(_ context.Context) (map[string]string, clients.StoreVersion, error) {
	doc, err := s.load()
	if err != nil {
		return nil, 0, err
	}
	if doc.Tokens == nil {
		doc.Tokens = make(map[string]string)
	}
	return doc.Tokens, clients.StoreVersion(doc.Version), nil
}

// Write atomically replaces the store contents, failing with ErrConflict when
// the on-disk version no longer matches the one presented.
func (s *Store) Write(_ context.Context, tokens map[string]string, version clients.StoreVersion) error {
	current, err := s.load()
	if err != nil {
		return err
	}
	if clients.StoreVersion(current.Version) != version {
		return fmt.Errorf("%w: store is at version %d, write expected %d", apperrors.ErrConflict, current.Version, version)
	}

	doc := document{Version: current.Version + 1, Tokens: tokens}
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credential store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating credential store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credstore-*")
	if err != nil {
		return fmt.Errorf("creating temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp credential file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("restricting credential file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp credential file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing credential store: %w", err)
	}
	return nil
}

func (s *Store) load() (document, error) {
	var doc document
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("reading credential store: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing credential store %s: %w", s.path, err)
	}
	return doc, nil
}
