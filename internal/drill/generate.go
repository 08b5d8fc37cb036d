// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package drill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Completer generates a model reply to a prompt. It is implemented by the
// groq and gemini API clients.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// maxQuestionLen caps generated questions so they always fit into a single
// Telegram message.
const maxQuestionLen = 3500

var errEmptyQuestion = errors.New("model returned an empty question")

// GenerateQuestion asks the model for a fresh exercise for the learner.
// trackPrompt is the curriculum track's generation guidance.
func GenerateQuestion(ctx context.Context, c Completer, l *Learner, trackPrompt string) (string, error) {
	prompt := fmt.Sprintf(questionPrompt, l.Track, l.Grade, l.Age, trackPrompt)
	reply, err := c.Complete(ctx, questionSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("generating question: %w", err)
	}
	q := strings.TrimSpace(reply)
	if q == "" {
		return "", errEmptyQuestion
	}
	if utf8.RuneCountInString(q) > maxQuestionLen {
		runes := []rune(q)
		q = strings.TrimSpace(string(runes[:maxQuestionLen]))
	}
	return q, nil
}
