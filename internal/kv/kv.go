// Package kv is a small key-value contract with expiry and an atomic
// set-if-absent, used for view dedup keys, wizard sessions and cached
// results.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for absent or expired keys.
var ErrNotFound = errors.New("kv: key not found")

// Store is implemented by Badger and Mongo. A zero ttl means no expiry.
type Store interface {
	// SetNX stores value only if key is absent or expired and reports
	// whether this call created it.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}
