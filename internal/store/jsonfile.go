// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"errors"
	"io/fs"

	"crawshaw.dev/jsonfile"
)

// JSONFile is a file-backed implementation of the [Store] interface. Every
// update rewrites the whole file atomically.
type JSONFile struct {
	f *jsonfile.JSONFile[jsonStore]
}

type jsonStore struct {
	Data map[string][]byte `json:"data"`
}

// NewJSONFile creates a new [JSONFile] backed by the file at path, creating
// the file if it doesn't exist.
func NewJSONFile(path string) (*JSONFile, error) {
	f, err := jsonfile.Load[jsonStore](path)
	if errors.Is(err, fs.ErrNotExist) {
		f, err = jsonfile.New[jsonStore](path)
		if err == nil {
			err = f.Write(func(js *jsonStore) error {
				js.Data = make(map[string][]byte)
				return nil
			})
		}
	}
	if err != nil {
		return nil, err
	}
	return &JSONFile{f: f}, nil
}

// Get retrieves a value for a given key.
func (s *JSONFile) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte
	s.f.Read(func(js *jsonStore) {
		if v, ok := js.Data[key]; ok {
			val = append([]byte(nil), v...)
		}
	})
	return val, nil
}

// Set stores a value for a given key.
func (s *JSONFile) Set(_ context.Context, key string, val []byte) error {
	return s.f.Write(func(js *jsonStore) error {
		if js.Data == nil {
			js.Data = make(map[string][]byte)
		}
		js.Data[key] = append([]byte(nil), val...)
		return nil
	})
}

// Delete removes a key.
func (s *JSONFile) Delete(_ context.Context, key string) error {
	return s.f.Write(func(js *jsonStore) error {
		delete(js.Data, key)
		return nil
	})
}

// ForEach calls fn for each key-value pair.
func (s *JSONFile) ForEach(_ context.Context, fn func(key string, value []byte) error) error {
	var err error
	s.f.Read(func(js *jsonStore) {
		for key, value := range js.Data {
			if err = fn(key, append([]byte(nil), value...)); err != nil {
				return
			}
		}
	})
	return err
}

// Close closes the file store.
func (s *JSONFile) Close() error { return nil }
