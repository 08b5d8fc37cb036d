// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"go.astrophena.name/drillbot/internal/testutil"
)

func TestMemStore(t *testing.T) {
	t.Parallel()
	testStore(t, NewMemStore())
}

func TestJSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "db.json")
	s, err := NewJSONFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)

	// Reloading an existing file preserves data.
	s2, err := NewJSONFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	v, err := s2.Get(context.Background(), "key1")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(v), "value1")
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, databaseURL)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// Clean up the table before running the test.
	if _, err := s.pool.Exec(ctx, "DELETE FROM kv"); err != nil {
		t.Fatal(err)
	}

	testStore(t, s)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	s, err := Open(ctx, "mem")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemStore); !ok {
		t.Fatalf("want *MemStore, got %T", s)
	}

	s, err = Open(ctx, filepath.Join(t.TempDir(), "db.json"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*JSONFile); !ok {
		t.Fatalf("want *JSONFile, got %T", s)
	}

	s, err = Open(ctx, filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("want *SQLiteStore, got %T", s)
	}
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	// Set and Get.
	if err := s.Set(ctx, "key1", []byte("value1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "key2", []byte("value2")); err != nil {
		t.Fatal(err)
	}

	v, err := s.Get(ctx, "key1")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(v), "value1")

	// Overwrite.
	if err := s.Set(ctx, "key2", []byte("value2b")); err != nil {
		t.Fatal(err)
	}
	v, err = s.Get(ctx, "key2")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(v), "value2b")

	// Get of a non-existent key returns (nil, nil).
	v, err = s.Get(ctx, "key3")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("got %q, want nil", v)
	}

	// ForEach visits everything.
	var keys []string
	if err := s.ForEach(ctx, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	sort.Strings(keys)
	testutil.AssertEqual(t, keys, []string{"key1", "key2"})

	// Delete.
	if err := s.Delete(ctx, "key1"); err != nil {
		t.Fatal(err)
	}
	v, err = s.Get(ctx, "key1")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("got %q after delete, want nil", v)
	}

	// Deleting a missing key is not an error.
	if err := s.Delete(ctx, "key1"); err != nil {
		t.Fatal(err)
	}
}
