// Package kvstore is the port to the shared key-value store that owns all
// tenant and billing state. The service never caches records in memory; every
// operation round-trips through an implementation of Store.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the key does not exist. It is never a transport fault.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrUnavailable means the store could not be reached or refused the
	// operation. Callers may retry with backoff.
	ErrUnavailable = errors.New("kvstore: store unavailable")
)

type Store interface {
	// Get returns the string value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set writes value at key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes value at key only if the key does not exist yet and
	// reports whether the write happened.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// HGetAll returns all fields of the hash at key, or ErrNotFound if the
	// hash does not exist.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HSet writes the given fields into the hash at key.
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HIncrBy atomically adds delta to an integer hash field and returns the
	// resulting value.
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// IncrByFloat atomically adds delta to a numeric value and returns the
	// resulting value.
	IncrByFloat(ctx context.Context, key string, delta float64) (float64, error)
}
