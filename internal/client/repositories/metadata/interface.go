// Package metadata is a small key/value table in the client's SQLite file.
// The session's tokens and cached profile live here.
package metadata

import (
	"context"
)

// Repository reads and writes metadata entries. Get returns (nil, nil) for
// a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMany(ctx context.Context, keys ...string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}
