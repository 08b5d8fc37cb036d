// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package drill

const questionSystemPrompt = `You are a tutor that writes short coding exercises for school students.
Write exactly one self-contained exercise in plain text. Do not include the
solution. Do not address the student directly.`

const questionPrompt = `Generate a unique %s coding question suitable for a %s-grade student (age %d).

%s`

const evalSystemPrompt = `You are a strict but fair tutor grading a student's solution to a coding
exercise. Reply with exactly three lines:

VERDICT: ACCEPT or REJECT
SCORE: an integer from 0 to 10
FEEDBACK: one short paragraph for the student

Accept the solution only if it actually solves the exercise.`

const evalPrompt = `Exercise:

%s

Student's solution:

%s`
