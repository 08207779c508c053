package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrQuotaExceeded is returned by a Store that has run out of capacity.
var ErrQuotaExceeded = errors.New("cache store quota exceeded")

// Entry is a cached payload and the time it was written.
type Entry struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Valid reports whether the entry is younger than ttl at now.
func (e Entry) Valid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) < ttl
}

// Store is the persistent tier.
type Store interface {
	// Get returns the entry for key; ok is false when absent.
	Get(ctx context.Context, key string) (e Entry, ok bool, err error)
	// Set writes e, returning ErrQuotaExceeded when the store is full.
	Set(ctx context.Context, e Entry) error
	Delete(ctx context.Context, key string) error
	// List returns every entry whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Entry, error)
	Close() error
}
