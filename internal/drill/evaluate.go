// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package drill

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Verdict is the parsed result of grading a submission.
type Verdict struct {
	Accepted bool
	Score    int // 0 to 10
	Feedback string
}

// ErrNoVerdict is returned when the model reply has no parsable VERDICT
// line. The submission is then neither accepted nor rejected.
var ErrNoVerdict = errors.New("no verdict in model reply")

// Evaluate grades a learner's solution against the assignment question.
func Evaluate(ctx context.Context, c Completer, question, solution string) (*Verdict, error) {
	reply, err := c.Complete(ctx, evalSystemPrompt, fmt.Sprintf(evalPrompt, question, solution))
	if err != nil {
		return nil, fmt.Errorf("evaluating submission: %w", err)
	}
	return parseVerdict(reply)
}

// parseVerdict extracts the VERDICT/SCORE/FEEDBACK lines from a model reply.
// Models wrap the format in prose and markdown more often than not, so
// parsing is lenient: keys are case-insensitive, leading markup is stripped
// and the score is clamped to 0..10.
func parseVerdict(reply string) (*Verdict, error) {
	var (
		v        Verdict
		seen     bool
		feedback []string
	)
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "`*_# ")
		if line == "" {
			continue
		}

		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(strings.Trim(strings.TrimSpace(val), "`*_"))

		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "VERDICT":
			switch {
			case strings.Contains(strings.ToUpper(val), "REJECT"):
				v.Accepted = false
				seen = true
			case strings.Contains(strings.ToUpper(val), "ACCEPT"):
				v.Accepted = true
				seen = true
			}
		case "SCORE":
			v.Score = parseScore(val)
		case "FEEDBACK":
			if val != "" {
				feedback = append(feedback, val)
			}
		}
	}
	if !seen {
		return nil, ErrNoVerdict
	}
	v.Feedback = strings.Join(feedback, " ")
	return &v, nil
}

// parseScore pulls the first integer out of val and clamps it to 0..10.
// Replies like "8/10" or "Score: 8 out of 10" are common.
func parseScore(val string) int {
	isDigit := func(b byte) bool { return b >= '0' && b <= '9' }
	i := strings.IndexFunc(val, func(r rune) bool { return r >= '0' && r <= '9' })
	if i == -1 {
		return 0
	}
	j := i
	for j < len(val) && isDigit(val[j]) {
		j++
	}
	n, err := strconv.Atoi(val[i:j])
	if err != nil {
		return 0
	}
	return min(max(n, 0), 10)
}
