// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"

	"go.astrophena.name/drillbot/internal/util/syncx"
)

// MemStore is an in-memory implementation of the [Store] interface.
type MemStore struct {
	m syncx.Map[string, []byte]
}

// NewMemStore creates a new [MemStore].
func NewMemStore() *MemStore { return &MemStore{} }

// Get retrieves a value for a given key.
func (s *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := s.m.Load(key)
	if !ok {
		return nil, nil
	}
	// Return a copy to prevent the caller from mutating the store.
	return append([]byte(nil), value...), nil
}

// Set stores a value for a given key.
func (s *MemStore) Set(_ context.Context, key string, value []byte) error {
	// Store a copy to prevent the caller from mutating the store.
	s.m.Store(key, append([]byte(nil), value...))
	return nil
}

// Delete removes a key.
func (s *MemStore) Delete(_ context.Context, key string) error {
	s.m.Delete(key)
	return nil
}

// ForEach calls fn for each key-value pair.
func (s *MemStore) ForEach(_ context.Context, fn func(key string, value []byte) error) error {
	var err error
	s.m.Range(func(key string, value []byte) bool {
		err = fn(key, append([]byte(nil), value...))
		return err == nil
	})
	return err
}

// Close is a no-op for MemStore.
func (s *MemStore) Close() error { return nil }
