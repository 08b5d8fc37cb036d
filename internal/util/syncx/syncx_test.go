// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package syncx

import (
	"sync/atomic"
	"testing"

	"go.astrophena.name/drillbot/internal/testutil"
)

func TestProtected(t *testing.T) {
	t.Parallel()

	p := Protect(map[string]int{})
	p.Access(func(m map[string]int) {
		m["a"] = 1
	})

	var got int
	p.RAccess(func(m map[string]int) {
		got = m["a"]
	})
	testutil.AssertEqual(t, got, 1)
}

func TestLazy(t *testing.T) {
	t.Parallel()

	var calls int
	var l Lazy[int]
	f := func() int {
		calls++
		return 42
	}

	testutil.AssertEqual(t, l.Get(f), 42)
	testutil.AssertEqual(t, l.Get(f), 42)
	testutil.AssertEqual(t, calls, 1)
}

func TestLimitedWaitGroup(t *testing.T) {
	t.Parallel()

	const limit = 3

	lwg := NewLimitedWaitGroup(limit)

	var active, peak atomic.Int64
	for range 20 {
		lwg.Go(func() {
			cur := active.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			active.Add(-1)
		})
	}
	lwg.Wait()

	if peak.Load() > limit {
		t.Fatalf("peak concurrency %d exceeds limit %d", peak.Load(), limit)
	}
}

func TestMap(t *testing.T) {
	t.Parallel()

	var m Map[string, int]
	m.Store("a", 1)
	m.Store("b", 2)

	v, ok := m.Load("a")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, v, 1)

	v, loaded := m.LoadAndDelete("b")
	testutil.AssertEqual(t, loaded, true)
	testutil.AssertEqual(t, v, 2)

	_, ok = m.Load("b")
	testutil.AssertEqual(t, ok, false)

	var keys []string
	m.Range(func(k string, _ int) bool {
		keys = append(keys, k)
		return true
	})
	testutil.AssertEqual(t, keys, []string{"a"})
}
