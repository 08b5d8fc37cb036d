// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Drillbot is a Telegram bot that drills coding practice: it registers learners
through a short conversation, sends each of them an AI-generated coding
question daily at their preferred time, grades submitted solutions and keeps
streaks and scores.

# Usage

	$ drillbot [flags...] <command> [args...]

Available commands:

  - run: start the bot, the scheduler and the debug web server.
  - learners: list registered learners.
  - reset <chat id>: clear a learner's current assignment.

# Environment Variables

The drillbot program relies on the following environment variables:

  - TELEGRAM_TOKEN: Telegram bot token for accessing the Telegram Bot API.
  - GROQ_API_KEY: Groq API key. If set, questions are generated and graded
    with Groq.
  - GEMINI_API_KEY: Gemini API key, used when GROQ_API_KEY is not set.
  - DB: where to keep learner records. Either "mem", a path to a JSON file,
    a path to a SQLite database or a postgres:// URL. Defaults to db.json in
    the state directory.
  - CURRICULUM: path to a Starlark curriculum file. A built-in curriculum
    with python, algorithms and web tracks is used when unset.
  - ADMIN_ADDR: address of the debug web server. Defaults to localhost:3000.
  - ADMIN_CHAT_ID: Telegram chat ID that receives error notifications.
  - SPOOL_DIR: directory that receives a copy of every submission.
  - STATE_DIRECTORY: directory for the run lock and default database.

# Configuration

A curriculum file is written in Starlark and defines a list of tracks, for
example:

	tracks = [
	    track(
	        name = "python",
	        summary = "General Python practice",
	        prompt = "The question must be solvable in Python using only the standard library.",
	    ),
	]

The track prompt guides question generation. Learners switch tracks with the
/track command.

# Debug Interface

While running, drillbot serves a debug interface on ADMIN_ADDR with health
checks at /health and streamed logs at /debug/log.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/drillbot/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
