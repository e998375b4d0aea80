// Package file implements flat-file JSON stores. Files are rewritten
// atomically (temp file + rename) and each store serializes its writers.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// positionsFile is the on-disk layout of the position set.
type positionsFile struct {
	Positions  []*domain.Position `json:"positions"`
	LastUpdate time.Time          `json:"lastUpdate"`
}

// PositionStore is a flat-file implementation of storage.PositionStore.
type PositionStore struct {
	path string
	mu   sync.Mutex // one writer at a time
}

// NewPositionStore creates a store backed by the given file path.
func NewPositionStore(path string) *PositionStore {
	return &PositionStore{path: path}
}

// Save atomically rewrites the persisted position set.
func (s *PositionStore) Save(_ context.Context, positions []*domain.Position) error {
	if positions == nil {
		positions = []*domain.Position{}
	}
	for _, p := range positions {
		if p == nil || p.TokenAddress == "" {
			return fmt.Errorf("%w: position without token address", storage.ErrInvalidInput)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := positionsFile{
		Positions:  positions,
		LastUpdate: time.Now().UTC(),
	}
	return writeAtomic(s.path, &doc)
}

// Load returns all persisted positions, empty if the file does not exist.
func (s *PositionStore) Load(_ context.Context) ([]*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.Position{}, nil
		}
		return nil, fmt.Errorf("read positions file: %w", err)
	}

	var doc positionsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse positions file: %w", err)
	}
	if doc.Positions == nil {
		doc.Positions = []*domain.Position{}
	}
	return doc.Positions, nil
}

// writeAtomic marshals v and replaces path in one rename so readers never
// observe a partially written file.
func writeAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Verify interface compliance at compile time.
var _ storage.PositionStore = (*PositionStore)(nil)
