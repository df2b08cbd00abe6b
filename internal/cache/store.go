// Package cache memoizes optimization results by request fingerprint.
package cache

import (
	"context"
	"errors"
	"time"

	"tripnav/internal/model"
)

// KeyPrefix namespaces result entries in shared backends.
const KeyPrefix = "itinerary_optimization:"

// DefaultTTL is how long a computed result stays valid.
const DefaultTTL = time.Hour

var (
	// ErrBackend wraps failures of the underlying cache storage.
	ErrBackend = errors.New("cache backend error")
	// ErrNotFound is returned when no live entry exists for a fingerprint.
	ErrNotFound = errors.New("cache entry not found")
)

// Entry is a stored result with its validity window.
type Entry struct {
	Fingerprint string              `json:"fingerprint"`
	Result      *model.SearchResult `json:"result"`
	ComputedAt  time.Time           `json:"computed_at"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

// Store holds at most one live entry per fingerprint.
type Store interface {
	// Get returns the live entry or ErrNotFound.
	Get(ctx context.Context, fingerprint string) (Entry, error)
	// Put replaces any entry for e.Fingerprint.
	Put(ctx context.Context, e Entry) error
	// Delete reports whether a live entry was removed.
	Delete(ctx context.Context, fingerprint string) (bool, error)
	Ping(ctx context.Context) error
}
