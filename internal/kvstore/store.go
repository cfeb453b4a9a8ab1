// Package kvstore is the flat key-prefix store behind the remote store API.
// Values are JSON documents.
package kvstore

import (
	"context"
	"time"
)

type Entry struct {
	Key   string
	Value []byte
}

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetNX stores value only when key is absent. A ttl of zero never expires.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	// GetByPrefix returns every live entry under prefix, sorted by key.
	GetByPrefix(ctx context.Context, prefix string) ([]Entry, error)
	Ping(ctx context.Context) error
}
