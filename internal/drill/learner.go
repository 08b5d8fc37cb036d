// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package drill holds the domain model of the coding-practice bot: learners,
// their assignments and the accounting rules that tie submissions, deadlines
// and streaks together.
package drill

import (
	"time"
)

// AssignmentTTL is how long a learner has to solve an issued question.
const AssignmentTTL = 24 * time.Hour

const (
	// TimeFormat is the wall-clock format of Learner.PreferredTime.
	TimeFormat = "15:04"
	// DateFormat is the format of Stats.LastIssued.
	DateFormat = "2006-01-02"
)

// Learner is a registered user of the bot. It serializes to JSON in the
// store under key "learner/<chat id>".
type Learner struct {
	ChatID        int64       `json:"chat_id"`
	Name          string      `json:"name"`
	Age           int         `json:"age"`
	Grade         string      `json:"grade"`
	PreferredTime string      `json:"preferred_time"` // "HH:MM", 24-hour
	Track         string      `json:"track"`
	Paused        bool        `json:"paused,omitempty"`
	Registered    time.Time   `json:"registered"`
	Assignment    *Assignment `json:"assignment,omitempty"`
	Stats         Stats       `json:"stats"`

	// ErrorCount counts consecutive delivery failures; LastError keeps the
	// most recent one. Both reset on a successful delivery.
	ErrorCount int    `json:"error_count,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// Assignment is a question issued to a learner.
type Assignment struct {
	Question  string    `json:"question"`
	Track     string    `json:"track"`
	IssuedAt  time.Time `json:"issued_at"`
	Deadline  time.Time `json:"deadline"`
	Completed bool      `json:"completed,omitempty"`
}

// Stats is the per-learner progress accounting.
type Stats struct {
	Streak        int    `json:"streak"`
	LongestStreak int    `json:"longest_streak"`
	Score         int    `json:"score"`
	Solved        int    `json:"solved"`
	Missed        int    `json:"missed"`
	LastIssued    string `json:"last_issued,omitempty"` // YYYY-MM-DD
}

// ValidTime reports whether s is a valid "HH:MM" 24-hour wall-clock time.
func ValidTime(s string) bool {
	t, err := time.Parse(TimeFormat, s)
	return err == nil && t.Format(TimeFormat) == s
}

// Due reports whether a question should be issued to the learner at now:
// the learner is active, has no open assignment, now matches the preferred
// time minute and no question was issued today yet.
func (l *Learner) Due(now time.Time) bool {
	if l.Paused || l.HasOpenAssignment() {
		return false
	}
	if l.PreferredTime != now.Format(TimeFormat) {
		return false
	}
	return l.Stats.LastIssued != now.Format(DateFormat)
}

// HasOpenAssignment reports whether the learner has an issued, not yet
// completed assignment.
func (l *Learner) HasOpenAssignment() bool {
	return l.Assignment != nil && !l.Assignment.Completed
}

// Issue records a freshly generated question as the learner's current
// assignment and marks today as consumed.
func (l *Learner) Issue(question, track string, now time.Time) {
	l.Assignment = &Assignment{
		Question: question,
		Track:    track,
		IssuedAt: now,
		Deadline: now.Add(AssignmentTTL),
	}
	l.Stats.LastIssued = now.Format(DateFormat)
}

// RecordAccepted applies an accepted submission: the streak and solved
// counters grow and the verdict score is added to the total.
func (l *Learner) RecordAccepted(score int) {
	l.Stats.Streak++
	l.Stats.LongestStreak = max(l.Stats.LongestStreak, l.Stats.Streak)
	l.Stats.Score += score
	l.Stats.Solved++
	if l.Assignment != nil {
		l.Assignment.Completed = true
	}
}

// Expire clears the assignment and resets the streak if the deadline has
// passed without an accepted submission. It reports whether it did so.
func (l *Learner) Expire(now time.Time) bool {
	if l.Paused || !l.HasOpenAssignment() || now.Before(l.Assignment.Deadline) {
		return false
	}
	l.Assignment = nil
	l.Stats.Streak = 0
	l.Stats.Missed++
	return true
}
