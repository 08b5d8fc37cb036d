// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package store implements a key-value store backed in-memory, by a JSON
// file, SQLite or PostgreSQL.
package store

import (
	"context"
	"strings"
)

// Store is a generic interface for a key-value store.
type Store interface {
	// Get retrieves a value for a given key.
	// It must return (nil, nil) if the key is not found.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value for a given key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// ForEach calls fn for each key-value pair in the store. If fn returns an
	// error, iteration stops and the error is returned.
	ForEach(ctx context.Context, fn func(key string, value []byte) error) error
	// Close closes the store and releases any resources.
	Close() error
}

// Open opens a store described by dsn:
//
//   - "mem" (or an empty string) opens an in-memory store;
//   - "postgres://..." or "postgresql://..." connects to PostgreSQL;
//   - a path ending in ".json" opens a JSON file store;
//   - everything else is treated as a SQLite database path.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "mem":
		return NewMemStore(), nil
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(ctx, dsn)
	case strings.HasSuffix(dsn, ".json"):
		return NewJSONFile(dsn)
	default:
		return NewSQLiteStore(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	}
}
