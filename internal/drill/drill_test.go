// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package drill

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.astrophena.name/drillbot/internal/store"
	"go.astrophena.name/drillbot/internal/testutil"
)

func TestValidTime(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"09:30": true,
		"00:00": true,
		"23:59": true,
		"24:00": false,
		"9:30":  false,
		"09:60": false,
		"09-30": false,
		"soon":  false,
		"":      false,
	}
	for in, want := range cases {
		testutil.AssertEqual(t, ValidTime(in), want)
	}
}

func TestDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	l := &Learner{ChatID: 1, PreferredTime: "09:30"}

	testutil.AssertEqual(t, l.Due(now), true)
	testutil.AssertEqual(t, l.Due(now.Add(time.Minute)), false)

	// At most one question per day.
	l.Issue("question", "python", now)
	testutil.AssertEqual(t, l.Due(now), false)
	l.Assignment.Completed = true
	testutil.AssertEqual(t, l.Due(now), false)
	testutil.AssertEqual(t, l.Due(now.Add(24*time.Hour)), true)

	l.Paused = true
	testutil.AssertEqual(t, l.Due(now.Add(24*time.Hour)), false)
}

func TestAccounting(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	l := &Learner{ChatID: 1, PreferredTime: "09:30"}

	l.Issue("question", "python", now)
	testutil.AssertEqual(t, l.HasOpenAssignment(), true)
	testutil.AssertEqual(t, l.Assignment.Deadline, now.Add(AssignmentTTL))
	testutil.AssertEqual(t, l.Stats.LastIssued, "2026-03-14")

	// Deadline not reached yet.
	testutil.AssertEqual(t, l.Expire(now.Add(time.Hour)), false)

	l.RecordAccepted(8)
	testutil.AssertEqual(t, l.Stats.Streak, 1)
	testutil.AssertEqual(t, l.Stats.LongestStreak, 1)
	testutil.AssertEqual(t, l.Stats.Score, 8)
	testutil.AssertEqual(t, l.Stats.Solved, 1)
	testutil.AssertEqual(t, l.HasOpenAssignment(), false)

	// A completed assignment never expires.
	testutil.AssertEqual(t, l.Expire(now.Add(2*AssignmentTTL)), false)

	// Next day's question is missed.
	next := now.Add(24 * time.Hour)
	l.Issue("another question", "python", next)
	testutil.AssertEqual(t, l.Expire(next.Add(AssignmentTTL)), true)
	testutil.AssertEqual(t, l.Stats.Streak, 0)
	testutil.AssertEqual(t, l.Stats.LongestStreak, 1)
	testutil.AssertEqual(t, l.Stats.Missed, 1)
	if l.Assignment != nil {
		t.Fatal("assignment should be cleared after expiry")
	}
}

func TestDB(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := NewDB(store.NewMemStore())

	if _, err := db.Learner(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	want := &Learner{
		ChatID:        1,
		Name:          "Ada",
		Age:           12,
		Grade:         "7th",
		PreferredTime: "09:30",
		Track:         "python",
		Registered:    time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	if err := db.Save(ctx, want); err != nil {
		t.Fatal(err)
	}

	got, err := db.Learner(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, want)

	if err := db.Save(ctx, &Learner{ChatID: 2, Name: "Grace"}); err != nil {
		t.Fatal(err)
	}
	all, err := db.Learners(ctx)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, len(all), 2)
	testutil.AssertEqual(t, all[0].ChatID, int64(1))
	testutil.AssertEqual(t, all[1].ChatID, int64(2))

	if err := db.Delete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Learner(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in      string
		want    *Verdict
		wantErr error
	}{
		"canonical": {
			in:   "VERDICT: ACCEPT\nSCORE: 8\nFEEDBACK: Nice use of recursion.",
			want: &Verdict{Accepted: true, Score: 8, Feedback: "Nice use of recursion."},
		},
		"reject": {
			in:   "VERDICT: REJECT\nSCORE: 2\nFEEDBACK: The loop never terminates.",
			want: &Verdict{Accepted: false, Score: 2, Feedback: "The loop never terminates."},
		},
		"lowercase keys": {
			in:   "verdict: accept\nscore: 7\nfeedback: Good.",
			want: &Verdict{Accepted: true, Score: 7, Feedback: "Good."},
		},
		"accepted past tense": {
			in:   "VERDICT: Accepted\nSCORE: 10\nFEEDBACK: Perfect.",
			want: &Verdict{Accepted: true, Score: 10, Feedback: "Perfect."},
		},
		"markdown and prose": {
			in: "Sure! Here is my grading:\n\n**VERDICT:** ACCEPT\n**SCORE:** 9/10\n**FEEDBACK:** Well done.\n\nKeep it up!",
			// "Keep it up!" is outside the FEEDBACK line and dropped.
			want: &Verdict{Accepted: true, Score: 9, Feedback: "Well done."},
		},
		"score out of range": {
			in:   "VERDICT: ACCEPT\nSCORE: 15\nFEEDBACK: ok",
			want: &Verdict{Accepted: true, Score: 10, Feedback: "ok"},
		},
		"score with words": {
			in:   "VERDICT: REJECT\nSCORE: 3 out of 10\nFEEDBACK: Partially correct.",
			want: &Verdict{Accepted: false, Score: 3, Feedback: "Partially correct."},
		},
		"fenced": {
			in:   "```\nVERDICT: ACCEPT\nSCORE: 6\nFEEDBACK: Works but slow.\n```",
			want: &Verdict{Accepted: true, Score: 6, Feedback: "Works but slow."},
		},
		"no verdict": {
			in:      "The solution looks good to me, great job!",
			wantErr: ErrNoVerdict,
		},
		"empty": {
			in:      "",
			wantErr: ErrNoVerdict,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := parseVerdict(tc.in)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func mustContain(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("%q doesn't contain %q", s, substr)
	}
}

type completerFunc func(ctx context.Context, system, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

func TestGenerateQuestion(t *testing.T) {
	t.Parallel()

	l := &Learner{Grade: "7th", Age: 12, Track: "python"}

	c := completerFunc(func(_ context.Context, system, prompt string) (string, error) {
		mustContain(t, prompt, "python")
		mustContain(t, prompt, "7th-grade")
		return "  Write a function that reverses a string.  ", nil
	})
	got, err := GenerateQuestion(context.Background(), c, l, "Stick to the standard library.")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, "Write a function that reverses a string.")

	c = completerFunc(func(context.Context, string, string) (string, error) {
		return "   ", nil
	})
	if _, err := GenerateQuestion(context.Background(), c, l, ""); !errors.Is(err, errEmptyQuestion) {
		t.Fatalf("want errEmptyQuestion, got %v", err)
	}

	c = completerFunc(func(context.Context, string, string) (string, error) {
		return strings.Repeat("a", 5000), nil
	})
	got, err = GenerateQuestion(context.Background(), c, l, "")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, len([]rune(got)), maxQuestionLen)
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	c := completerFunc(func(_ context.Context, system, prompt string) (string, error) {
		mustContain(t, prompt, "reverse a string")
		mustContain(t, prompt, "def rev(s)")
		return "VERDICT: ACCEPT\nSCORE: 8\nFEEDBACK: Good.", nil
	})
	got, err := Evaluate(context.Background(), c, "Write a function to reverse a string.", "def rev(s): return s[::-1]")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, &Verdict{Accepted: true, Score: 8, Feedback: "Good."})
}
