// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.astrophena.name/drillbot/internal/testutil"
)

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err        error
		wantStatus int
	}{
		"not found": {
			err:        ErrNotFound,
			wantStatus: http.StatusNotFound,
		},
		"wrapped bad request": {
			err:        fmt.Errorf("time %w", ErrBadRequest),
			wantStatus: http.StatusBadRequest,
		},
		"generic error": {
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			RespondJSONError(func(string, ...any) {}, w, tc.err)

			testutil.AssertEqual(t, w.Code, tc.wantStatus)
			testutil.AssertEqual(t, w.Header().Get("Content-Type"), "application/json")

			resp := testutil.UnmarshalJSON[map[string]string](t, w.Body.Bytes())
			testutil.AssertEqual(t, resp["status"], "error")
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	h := Health(mux)

	// Registering twice returns the same handler.
	testutil.AssertEqual(t, Health(mux) == h, true)

	h.RegisterFunc("store", func() (string, bool) { return "ok", true })

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)

	testutil.AssertEqual(t, w.Code, http.StatusOK)
	hr := testutil.UnmarshalJSON[HealthResponse](t, w.Body.Bytes())
	testutil.AssertEqual(t, hr.OK, true)
	testutil.AssertEqual(t, hr.Checks["store"].Status, "ok")

	h.RegisterFunc("telegram", func() (string, bool) { return "unreachable", false })

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	testutil.AssertEqual(t, w.Code, http.StatusInternalServerError)
}

func TestListenAndServe(t *testing.T) {
	t.Parallel()

	ready := make(chan struct{})
	serveReadyHook = func() { close(ready) }
	defer func() { serveReadyHook = nil }()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	go func() {
		errCh <- ListenAndServe(ctx, &ListenAndServeConfig{
			Addr: "localhost:0",
			Mux:  mux,
			Logf: t.Logf,
		})
	}()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("server didn't start")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
}

func TestListenAndServeValidation(t *testing.T) {
	t.Parallel()

	err := ListenAndServe(context.Background(), &ListenAndServeConfig{Mux: http.NewServeMux()})
	if !errors.Is(err, errNoAddr) {
		t.Fatalf("want errNoAddr, got %v", err)
	}

	err = ListenAndServe(context.Background(), &ListenAndServeConfig{Addr: "localhost:0"})
	if !errors.Is(err, errNilMux) {
		t.Fatalf("want errNilMux, got %v", err)
	}
}
