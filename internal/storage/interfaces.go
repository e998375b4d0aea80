package storage

import (
	"context"

	"solana-sniper/internal/domain"
)

// PositionStore persists the full position set.
// Save rewrites the whole set; writes are serialized by the implementation
// so concurrent monitoring tasks never interleave partial files.
type PositionStore interface {
	// Save atomically rewrites the persisted position set.
	Save(ctx context.Context, positions []*domain.Position) error

	// Load returns all persisted positions. A store that has never been
	// written returns an empty slice, not an error.
	Load(ctx context.Context) ([]*domain.Position, error)
}

// KnownTokenStore persists the monotonically growing set of token addresses
// the discovery scanner has already seen. The set is reset only by operator
// action (deleting the file), never by the process.
type KnownTokenStore interface {
	// Save atomically rewrites the known-token set.
	Save(ctx context.Context, tokens []string) error

	// Load returns all known token addresses, empty if never written.
	Load(ctx context.Context) ([]string, error)
}
