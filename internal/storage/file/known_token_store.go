package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"solana-sniper/internal/storage"
)

// knownTokensFile is the on-disk layout of the discovery known-set.
type knownTokensFile struct {
	Tokens     []string  `json:"tokens"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// KnownTokenStore is a flat-file implementation of storage.KnownTokenStore.
type KnownTokenStore struct {
	path string
	mu   sync.Mutex
}

// NewKnownTokenStore creates a store backed by the given file path.
func NewKnownTokenStore(path string) *KnownTokenStore {
	return &KnownTokenStore{path: path}
}

// Save atomically rewrites the known-token set.
func (s *KnownTokenStore) Save(_ context.Context, tokens []string) error {
	if tokens == nil {
		tokens = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := knownTokensFile{
		Tokens:     tokens,
		LastUpdate: time.Now().UTC(),
	}
	return writeAtomic(s.path, &doc)
}

// Load returns all known token addresses, empty if the file does not exist.
func (s *KnownTokenStore) Load(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read known tokens file: %w", err)
	}

	var doc knownTokensFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse known tokens file: %w", err)
	}
	if doc.Tokens == nil {
		doc.Tokens = []string{}
	}
	return doc.Tokens, nil
}

// Verify interface compliance at compile time.
var _ storage.KnownTokenStore = (*KnownTokenStore)(nil)
