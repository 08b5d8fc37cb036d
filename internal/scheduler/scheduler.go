// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package scheduler delivers daily questions. It scans all learners on a
// fixed tick, issues questions whose preferred time matches the current
// minute and expires assignments whose deadline has passed.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.astrophena.name/drillbot/internal/drill"
	"go.astrophena.name/drillbot/internal/drill/curriculum"
	"go.astrophena.name/drillbot/internal/util/syncx"
)

const (
	errorThreshold       = 12 // failing continuously for N deliveries will pause learner and complain loudly
	concurrentDeliveries = 10
)

// Sender delivers a text message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Scheduler issues daily questions and sweeps expired assignments.
type Scheduler struct {
	DB         *drill.DB
	Telegram   Sender
	Completer  drill.Completer
	Curriculum *curriculum.Curriculum
	Logger     *slog.Logger
	// AdminChatID, if set, receives a message when a learner is paused after
	// too many delivery failures.
	AdminChatID int64
	// Interval between ticks. Defaults to a minute; preferred times have
	// minute precision, so shorter intervals buy nothing.
	Interval time.Duration
	// Now is the clock. Defaults to time.Now; tests override it.
	Now func() time.Time
}

func (s *Scheduler) slog() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run ticks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval == 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick processes all learners once. Deliveries fan out over a bounded
// group of goroutines; learner records are disjoint, so they don't race.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	learners, err := s.DB.Learners(ctx)
	if err != nil {
		s.slog().Error("listing learners", "error", err)
		return
	}

	wg := syncx.NewLimitedWaitGroup(concurrentDeliveries)
	for _, l := range learners {
		wg.Go(func() {
			s.process(ctx, l, now)
		})
	}
	wg.Wait()
}

func (s *Scheduler) process(ctx context.Context, l *drill.Learner, now time.Time) {
	if l.Expire(now) {
		if err := s.DB.Save(ctx, l); err != nil {
			s.slog().Error("saving expired assignment", "chat_id", l.ChatID, "error", err)
			return
		}
		s.slog().Info("assignment expired", "chat_id", l.ChatID, "streak_reset", true)
		if err := s.Telegram.Send(ctx, l.ChatID, "⌛ Time's up for your question, and your streak is reset. A new question arrives at "+l.PreferredTime+"."); err != nil {
			s.slog().Error("notifying about expiry", "chat_id", l.ChatID, "error", err)
		}
	}

	if !l.Due(now) {
		return
	}

	tr, ok := s.Curriculum.Track(l.Track)
	if !ok {
		// The curriculum changed under the learner; fall back to the first
		// track instead of going silent.
		name := s.Curriculum.Names()[0]
		s.slog().Warn("unknown track, falling back", "chat_id", l.ChatID, "track", l.Track, "fallback", name)
		tr, _ = s.Curriculum.Track(name)
		l.Track = name
	}

	q, err := drill.GenerateQuestion(ctx, s.Completer, l, tr.Prompt)
	if err != nil {
		// The day is not consumed, so the next matching tick can retry.
		s.slog().Error("generating question", "chat_id", l.ChatID, "error", err)
		return
	}

	prevIssued := l.Stats.LastIssued
	l.Issue(q, l.Track, now)
	if err := s.Telegram.Send(ctx, l.ChatID, "🎯 Daily practice question:\n\n"+q); err != nil {
		l.Assignment = nil
		l.Stats.LastIssued = prevIssued
		l.ErrorCount++
		l.LastError = err.Error()
		s.slog().Error("delivering question", "chat_id", l.ChatID, "error", err, "error_count", l.ErrorCount)
		if l.ErrorCount >= errorThreshold {
			l.Paused = true
			s.notifyAdmin(ctx, fmt.Sprintf("Paused learner %d (%s) after %d consecutive delivery failures. Last error: %v", l.ChatID, l.Name, l.ErrorCount, err))
		}
		if err := s.DB.Save(ctx, l); err != nil {
			s.slog().Error("saving delivery failure", "chat_id", l.ChatID, "error", err)
		}
		return
	}

	l.ErrorCount = 0
	l.LastError = ""
	if err := s.DB.Save(ctx, l); err != nil {
		s.slog().Error("saving issued assignment", "chat_id", l.ChatID, "error", err)
		return
	}
	s.slog().Info("question issued", "chat_id", l.ChatID, "track", l.Track)
}

func (s *Scheduler) notifyAdmin(ctx context.Context, text string) {
	if s.AdminChatID == 0 {
		return
	}
	if err := s.Telegram.Send(ctx, s.AdminChatID, text); err != nil {
		s.slog().Error("notifying admin", "error", err)
	}
}
