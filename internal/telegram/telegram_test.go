// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.astrophena.name/drillbot/internal/testutil"
)

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   string
		want []string
	}{
		"short":             {in: "hello", want: []string{"hello"}},
		"exact":             {in: strings.Repeat("a", 4096), want: []string{strings.Repeat("a", 4096)}},
		"long (no newline)": {in: strings.Repeat("a", 4100), want: []string{strings.Repeat("a", 4096), "aaaa"}},
		"long (single line with spaces)": {
			in:   strings.Repeat("a", 3000) + " " + strings.Repeat("b", 1500),
			want: []string{strings.Repeat("a", 3000), strings.Repeat("b", 1500)},
		},
		"long (newline split)": {
			in:   strings.Repeat("a", 4000) + "\n" + strings.Repeat("b", 100),
			want: []string{strings.Repeat("a", 4000), strings.Repeat("b", 100)},
		},
		"multi-byte unicode": {
			in:   strings.Repeat("🙂", 4095) + "\n" + "🙂",
			want: []string{strings.Repeat("🙂", 4095), "🙂"},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := splitMessage(tc.in)
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func TestSplitMessageNewlineRich(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("line\n", 900)
	got := splitMessage(in)
	if len(got) < 2 {
		t.Fatalf("want at least 2 chunks, got %d", len(got))
	}
	for i, chunk := range got {
		if strings.TrimSpace(chunk) == "" {
			t.Fatalf("chunk %d is empty or whitespace only", i)
		}
		if utf8.RuneCountInString(chunk) > 4096 {
			t.Fatalf("chunk %d exceeds rune cap: %d", i, utf8.RuneCountInString(chunk))
		}
	}
}

func TestSendRateLimitRetry(t *testing.T) {
	t.Parallel()

	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertEqual(t, r.URL.Path, "/bottoken/sendMessage")
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"parameters":{"retry_after":1}}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer ts.Close()

	c := New(Config{Token: "token", APIURL: ts.URL})
	var waits []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return true
	}

	err := c.Send(context.Background(), 123, "hello")
	testutil.AssertEqual(t, err, nil)
	testutil.AssertEqual(t, calls, 2)
	testutil.AssertEqual(t, waits, []time.Duration{time.Second})
}

func TestSendAPIError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer ts.Close()

	c := New(Config{Token: "token", APIURL: ts.URL})
	err := c.Send(context.Background(), 123, "hello")
	if err == nil {
		t.Fatal("want error")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("error %q doesn't mention the API description", err)
	}
}

func TestGetUpdates(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		testutil.AssertEqual(t, r.URL.Path, "/bottoken/getUpdates")
		w.Write([]byte(`{"ok":true,"result":[{"update_id":10,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"text":"/start"}}]}`))
	}))
	defer ts.Close()

	c := New(Config{Token: "token", APIURL: ts.URL})
	updates, err := c.GetUpdates(context.Background(), 0, 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, len(updates), 1)
	testutil.AssertEqual(t, updates[0].ID, int64(10))
	testutil.AssertEqual(t, updates[0].Message.Chat.ID, int64(42))
	testutil.AssertEqual(t, updates[0].Message.Text, "/start")
}

func TestFileContent(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottoken/getFile":
			w.Write([]byte(`{"ok":true,"result":{"file_id":"abc","file_size":12,"file_path":"documents/sol.py"}}`))
		case "/file/bottoken/documents/sol.py":
			w.Write([]byte("print('hi')"))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	c := New(Config{Token: "token", APIURL: ts.URL})
	b, err := c.FileContent(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(b), "print('hi')")
}

func TestFileContentTooLarge(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":{"file_id":"abc","file_size":10485760,"file_path":"documents/huge.bin"}}`))
	}))
	defer ts.Close()

	c := New(Config{Token: "token", APIURL: ts.URL})
	if _, err := c.FileContent(context.Background(), "abc"); err == nil {
		t.Fatal("want error for oversized file")
	}
}

func TestScrubberMasksToken(t *testing.T) {
	t.Parallel()

	c := New(Config{Token: "secret"})
	testutil.AssertEqual(t, c.Scrubber().Replace("boom: secret leaked"), "boom: [EXPUNGED] leaked")
}
