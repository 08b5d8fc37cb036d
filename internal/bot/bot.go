// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package bot routes Telegram updates: it runs the registration
// conversation, handles commands and turns plain messages into submissions
// that get graded.
package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.astrophena.name/drillbot/internal/atomicio"
	"go.astrophena.name/drillbot/internal/drill"
	"go.astrophena.name/drillbot/internal/drill/curriculum"
	"go.astrophena.name/drillbot/internal/logger"
	"go.astrophena.name/drillbot/internal/telegram"
	"go.astrophena.name/drillbot/internal/util/syncx"
)

// convTTL is how long an unfinished conversation survives between messages.
const convTTL = 15 * time.Minute

// Messenger is the part of the Telegram client the bot needs.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
	FileContent(ctx context.Context, fileID string) ([]byte, error)
}

// Bot handles incoming updates for registered and registering learners.
type Bot struct {
	DB         *drill.DB
	Telegram   Messenger
	Completer  drill.Completer
	Curriculum *curriculum.Curriculum
	// SpoolDir, if set, receives a copy of every submission before grading.
	SpoolDir string
	Logf     logger.Logf
	// Now is the clock. Defaults to time.Now; tests override it.
	Now func() time.Time

	convs syncx.Map[int64, *conversation]
}

type stage int

const (
	stageName stage = iota
	stageAge
	stageGrade
	stageTime
	stageSetTime
	stageSetTrack
)

type conversation struct {
	stage      stage
	draft      *drill.Learner
	lastActive time.Time
}

func (b *Bot) logf(format string, args ...any) {
	if b.Logf != nil {
		b.Logf(format, args...)
	}
}

func (b *Bot) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// conv returns the active conversation for a chat, expiring stale ones.
func (b *Bot) conv(chatID int64) (*conversation, bool) {
	c, ok := b.convs.Load(chatID)
	if !ok {
		return nil, false
	}
	if b.now().Sub(c.lastActive) > convTTL {
		b.convs.Delete(chatID)
		return nil, false
	}
	c.lastActive = b.now()
	return c, true
}

// HandleUpdate processes a single update. Errors are reported to the caller
// for logging; the learner always gets some reply.
func (b *Bot) HandleUpdate(ctx context.Context, upd telegram.Update) error {
	msg := upd.Message
	if msg == nil || msg.Chat.Type != "private" {
		return nil
	}
	chatID := msg.Chat.ID

	if cmd, ok := parseCommand(msg.Text); ok {
		return b.handleCommand(ctx, chatID, cmd)
	}
	if c, ok := b.conv(chatID); ok {
		return b.handleConversation(ctx, chatID, c, msg.Text)
	}
	return b.handleSubmission(ctx, chatID, msg)
}

// parseCommand extracts the command name from a message like "/start" or
// "/start@somebot", without the leading slash.
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd, _, _ := strings.Cut(text[1:], " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), cmd != ""
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, cmd string) error {
	l, err := b.DB.Learner(ctx, chatID)
	if err != nil && !errors.Is(err, drill.ErrNotFound) {
		return err
	}
	registered := err == nil

	switch cmd {
	case "start":
		if registered {
			return b.send(ctx, chatID, "You are already registered, "+l.Name+"! Use /stats to see your progress or /help for all commands.")
		}
		b.convs.Store(chatID, &conversation{
			stage:      stageName,
			draft:      &drill.Learner{ChatID: chatID},
			lastActive: b.now(),
		})
		return b.send(ctx, chatID, "Welcome! Let's get you set up. What's your name?")
	case "cancel":
		if _, ok := b.convs.LoadAndDelete(chatID); ok {
			return b.send(ctx, chatID, "Cancelled.")
		}
		return b.send(ctx, chatID, "Nothing to cancel.")
	case "stats":
		if !registered {
			return b.sendNotRegistered(ctx, chatID)
		}
		return b.send(ctx, chatID, formatStats(l, b.now()))
	case "time":
		if !registered {
			return b.sendNotRegistered(ctx, chatID)
		}
		b.convs.Store(chatID, &conversation{stage: stageSetTime, lastActive: b.now()})
		return b.send(ctx, chatID, "At what time would you like to receive your daily question? (HH:MM, 24-hour format)")
	case "track":
		if !registered {
			return b.sendNotRegistered(ctx, chatID)
		}
		b.convs.Store(chatID, &conversation{stage: stageSetTrack, lastActive: b.now()})
		return b.send(ctx, chatID, "Pick a track: "+strings.Join(b.Curriculum.Names(), ", ")+".")
	case "pause":
		if !registered {
			return b.sendNotRegistered(ctx, chatID)
		}
		l.Paused = true
		if err := b.DB.Save(ctx, l); err != nil {
			return err
		}
		return b.send(ctx, chatID, "Paused. You won't receive questions until you /resume.")
	case "resume":
		if !registered {
			return b.sendNotRegistered(ctx, chatID)
		}
		l.Paused = false
		l.ErrorCount = 0
		l.LastError = ""
		if err := b.DB.Save(ctx, l); err != nil {
			return err
		}
		return b.send(ctx, chatID, "Resumed. Your daily questions are back on at "+l.PreferredTime+".")
	case "stop":
		if !registered {
			return b.sendNotRegistered(ctx, chatID)
		}
		b.convs.Delete(chatID)
		if err := b.DB.Delete(ctx, chatID); err != nil {
			return err
		}
		return b.send(ctx, chatID, "Your data is deleted. Send /start to register again.")
	case "help":
		return b.send(ctx, chatID, helpText)
	default:
		return b.send(ctx, chatID, "Unknown command.\n\n"+helpText)
	}
}

const helpText = `Commands:

/start — register
/stats — your streak and score
/time — change your daily question time
/track — change your question track
/pause — stop receiving questions
/resume — start receiving questions again
/stop — delete your data
/cancel — abort the current dialog

Send your solution as a message or a file to get it graded.`

func formatStats(l *drill.Learner, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, %s grade, %s track.\n", l.Name, l.Grade, l.Track)
	fmt.Fprintf(&sb, "Daily question at %s.\n\n", l.PreferredTime)
	fmt.Fprintf(&sb, "🔥 Streak: %d (longest %d)\n", l.Stats.Streak, l.Stats.LongestStreak)
	fmt.Fprintf(&sb, "⭐ Score: %d\n", l.Stats.Score)
	fmt.Fprintf(&sb, "Solved: %d, missed: %d", l.Stats.Solved, l.Stats.Missed)
	if l.Paused {
		sb.WriteString("\n\nYou are paused. Send /resume to continue.")
	}
	if l.HasOpenAssignment() {
		left := l.Assignment.Deadline.Sub(now).Round(time.Minute)
		fmt.Fprintf(&sb, "\n\nYou have an open question, %s left to solve it.", left)
	}
	return sb.String()
}

func (b *Bot) handleConversation(ctx context.Context, chatID int64, c *conversation, text string) error {
	text = strings.TrimSpace(text)

	switch c.stage {
	case stageName:
		if text == "" {
			return b.send(ctx, chatID, "Please tell me your name.")
		}
		c.draft.Name = text
		c.stage = stageAge
		return b.send(ctx, chatID, "How old are you?")
	case stageAge:
		age, err := strconv.Atoi(text)
		if err != nil || age < 5 || age > 99 {
			return b.send(ctx, chatID, "Please send your age as a number.")
		}
		c.draft.Age = age
		c.stage = stageGrade
		return b.send(ctx, chatID, "What grade are you in?")
	case stageGrade:
		if text == "" {
			return b.send(ctx, chatID, "Please tell me your grade.")
		}
		c.draft.Grade = text
		c.stage = stageTime
		return b.send(ctx, chatID, "At what time would you like to receive your daily question? (HH:MM, 24-hour format)")
	case stageTime:
		if !drill.ValidTime(text) {
			return b.send(ctx, chatID, "That doesn't look like a valid time. Please use HH:MM, for example 16:30.")
		}
		c.draft.PreferredTime = text
		c.draft.Track = b.Curriculum.Names()[0]
		c.draft.Registered = b.now()
		b.convs.Delete(chatID)
		if err := b.DB.Save(ctx, c.draft); err != nil {
			return err
		}
		if err := b.send(ctx, chatID, fmt.Sprintf("✅ Registration complete, %s! You will receive a coding question daily at %s.", c.draft.Name, c.draft.PreferredTime)); err != nil {
			return err
		}
		return b.issueFirstQuestion(ctx, c.draft)
	case stageSetTime:
		if !drill.ValidTime(text) {
			return b.send(ctx, chatID, "That doesn't look like a valid time. Please use HH:MM, for example 16:30.")
		}
		l, err := b.DB.Learner(ctx, chatID)
		if err != nil {
			return err
		}
		l.PreferredTime = text
		b.convs.Delete(chatID)
		if err := b.DB.Save(ctx, l); err != nil {
			return err
		}
		return b.send(ctx, chatID, "Got it, your daily question now arrives at "+text+".")
	case stageSetTrack:
		name := strings.ToLower(text)
		if _, ok := b.Curriculum.Track(name); !ok {
			return b.send(ctx, chatID, "I don't know that track. Pick one of: "+strings.Join(b.Curriculum.Names(), ", ")+".")
		}
		l, err := b.DB.Learner(ctx, chatID)
		if err != nil {
			return err
		}
		l.Track = name
		b.convs.Delete(chatID)
		if err := b.DB.Save(ctx, l); err != nil {
			return err
		}
		return b.send(ctx, chatID, "Switched to the "+name+" track. It applies starting with your next question.")
	}
	return nil
}

// issueFirstQuestion generates and delivers the first question right after
// registration.
func (b *Bot) issueFirstQuestion(ctx context.Context, l *drill.Learner) error {
	tr, ok := b.Curriculum.Track(l.Track)
	if !ok {
		return fmt.Errorf("unknown track %q", l.Track)
	}
	q, err := drill.GenerateQuestion(ctx, b.Completer, l, tr.Prompt)
	if err != nil {
		b.logf("bot: generating first question for %d: %v", l.ChatID, err)
		return b.send(ctx, l.ChatID, "I couldn't come up with a question right now, your first one will arrive at "+l.PreferredTime+".")
	}
	l.Issue(q, l.Track, b.now())
	if err := b.DB.Save(ctx, l); err != nil {
		return err
	}
	return b.send(ctx, l.ChatID, "📌 Here's your first practice question:\n\n"+q)
}

func (b *Bot) handleSubmission(ctx context.Context, chatID int64, msg *telegram.Message) error {
	l, err := b.DB.Learner(ctx, chatID)
	if errors.Is(err, drill.ErrNotFound) {
		return b.sendNotRegistered(ctx, chatID)
	}
	if err != nil {
		return err
	}

	now := b.now()
	if l.Expire(now) {
		if err := b.DB.Save(ctx, l); err != nil {
			return err
		}
		return b.send(ctx, chatID, "⌛ The deadline for your question has passed, so this one doesn't count. A new question arrives at "+l.PreferredTime+".")
	}
	if !l.HasOpenAssignment() {
		return b.send(ctx, chatID, "You have no open question right now. The next one arrives at "+l.PreferredTime+".")
	}

	solution, err := b.solutionText(ctx, msg)
	if err != nil {
		b.logf("bot: reading submission from %d: %v", chatID, err)
		return b.send(ctx, chatID, "I couldn't read that file. Please send your solution as text or a small plain-text file.")
	}
	if solution == "" {
		return b.send(ctx, chatID, "That message is empty. Send your solution as text or a file.")
	}

	b.spool(chatID, msg.ID, solution)

	verdict, err := drill.Evaluate(ctx, b.Completer, l.Assignment.Question, solution)
	if errors.Is(err, drill.ErrNoVerdict) {
		return b.send(ctx, chatID, "I couldn't grade that one, sorry. Please send your solution again.")
	}
	if err != nil {
		b.logf("bot: evaluating submission from %d: %v", chatID, err)
		return b.send(ctx, chatID, "Grading is unavailable right now. Please try again in a few minutes.")
	}

	if !verdict.Accepted {
		reply := "❌ Not quite."
		if verdict.Feedback != "" {
			reply += " " + verdict.Feedback
		}
		left := l.Assignment.Deadline.Sub(now).Round(time.Minute)
		reply += fmt.Sprintf("\n\nYou can try again, %s left.", left)
		return b.send(ctx, chatID, reply)
	}

	l.RecordAccepted(verdict.Score)
	if err := b.DB.Save(ctx, l); err != nil {
		return err
	}
	reply := fmt.Sprintf("✅ Accepted! +%d points, streak %d.", verdict.Score, l.Stats.Streak)
	if verdict.Feedback != "" {
		reply += "\n\n" + verdict.Feedback
	}
	return b.send(ctx, chatID, reply)
}

// solutionText extracts the submission body: message text, or the content of
// an attached document.
func (b *Bot) solutionText(ctx context.Context, msg *telegram.Message) (string, error) {
	if msg.Document == nil {
		return strings.TrimSpace(msg.Text), nil
	}
	content, err := b.Telegram.FileContent(ctx, msg.Document.FileID)
	if err != nil {
		return "", err
	}
	solution := strings.TrimSpace(string(content))
	if caption := strings.TrimSpace(msg.Caption); caption != "" {
		solution = caption + "\n\n" + solution
	}
	return solution, nil
}

// spool keeps a copy of the submission on disk. Failures are logged and
// otherwise ignored: grading must not depend on the spool.
func (b *Bot) spool(chatID, msgID int64, solution string) {
	if b.SpoolDir == "" {
		return
	}
	name := filepath.Join(b.SpoolDir, fmt.Sprintf("%d-%d.txt", chatID, msgID))
	if err := atomicio.WriteFile(name, []byte(solution), 0o644); err != nil {
		b.logf("bot: spooling submission from %d: %v", chatID, err)
	}
}

func (b *Bot) sendNotRegistered(ctx context.Context, chatID int64) error {
	return b.send(ctx, chatID, "You are not registered yet. Send /start to begin.")
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) error {
	return b.Telegram.Send(ctx, chatID, text)
}
