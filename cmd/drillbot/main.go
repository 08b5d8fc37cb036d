// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"go.astrophena.name/drillbot/internal/api/gemini"
	"go.astrophena.name/drillbot/internal/api/groq"
	"go.astrophena.name/drillbot/internal/bot"
	"go.astrophena.name/drillbot/internal/cli"
	"go.astrophena.name/drillbot/internal/drill"
	"go.astrophena.name/drillbot/internal/drill/curriculum"
	"go.astrophena.name/drillbot/internal/filelock"
	"go.astrophena.name/drillbot/internal/logger"
	"go.astrophena.name/drillbot/internal/request"
	"go.astrophena.name/drillbot/internal/scheduler"
	"go.astrophena.name/drillbot/internal/store"
	"go.astrophena.name/drillbot/internal/telegram"
	"go.astrophena.name/drillbot/internal/web"
)

const (
	pollTimeout    = 30 * time.Second
	pollRetryDelay = 5 * time.Second
	logStreamSize  = 300
)

var (
	errNoToken     = errors.New("TELEGRAM_TOKEN is not set")
	errNoCompleter = errors.New("neither GROQ_API_KEY nor GEMINI_API_KEY is set")
)

func main() { cli.Main(new(engine)) }

func (e *engine) Flags(fs *flag.FlagSet) {
	fs.BoolVar(&e.jsonOutput, "json", false, "Output in JSON format (honored in supported commands).")
	fs.BoolVar(&e.verbose, "verbose", false, "Enable debug logging.")
}

func (e *engine) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	// Load configuration from environment variables.
	e.adminAddr = cmp.Or(e.adminAddr, env.Getenv("ADMIN_ADDR"), "localhost:3000")
	e.adminChatID = cmp.Or(e.adminChatID, parseInt(env.Getenv("ADMIN_CHAT_ID")))
	e.curriculumPath = cmp.Or(e.curriculumPath, env.Getenv("CURRICULUM"))
	e.geminiKey = cmp.Or(e.geminiKey, env.Getenv("GEMINI_API_KEY"))
	e.groqKey = cmp.Or(e.groqKey, env.Getenv("GROQ_API_KEY"))
	e.spoolDir = cmp.Or(e.spoolDir, env.Getenv("SPOOL_DIR"))
	e.stateDir = cmp.Or(e.stateDir, env.Getenv("STATE_DIRECTORY"))
	e.tgToken = cmp.Or(e.tgToken, env.Getenv("TELEGRAM_TOKEN"))
	if e.stateDir == "" {
		xdgStateHome := env.Getenv("XDG_STATE_HOME")
		if xdgStateHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			xdgStateHome = filepath.Join(home, ".local", "state")
		}
		e.stateDir = filepath.Join(xdgStateHome, "drillbot")
		if err := os.MkdirAll(e.stateDir, 0o700); err != nil {
			return err
		}
	}
	e.dbDSN = cmp.Or(e.dbDSN, env.Getenv("DB"), filepath.Join(e.stateDir, "db.json"))

	var initErr error
	e.init.Do(func() {
		initErr = e.doInit(ctx)
	})
	if initErr != nil {
		return initErr
	}

	if e.verbose {
		e.slogLevel.Set(slog.LevelDebug)
	}

	if len(env.Args) == 0 {
		return fmt.Errorf("%w: command is required, see -help for usage", cli.ErrInvalidArgs)
	}
	command := env.Args[0]

	switch command {
	case "run":
		if err := e.runService(ctx); err != nil {
			return e.errNotify(ctx, err)
		}
		return nil
	case "learners":
		return e.listLearners(ctx, env.Stdout)
	case "reset":
		if len(env.Args) != 2 {
			return fmt.Errorf("%w: reset command expects a chat ID", cli.ErrInvalidArgs)
		}
		return e.reset(ctx, env.Args[1], env.Stdout)
	default:
		return fmt.Errorf("%w: no such command %q", cli.ErrInvalidArgs, command)
	}
}

func parseInt(s string) int64 {
	i, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return i
	}
	return 0
}

type engine struct {
	init sync.Once

	// configuration
	adminAddr      string
	adminChatID    int64
	curriculumPath string
	dbDSN          string
	geminiKey      string
	groqKey        string
	jsonOutput     bool
	spoolDir       string
	stateDir       string
	tgToken        string
	verbose        bool
	// now acts as time.Now, but can be mocked for testing.
	now func() time.Time

	// initialized by doInit
	httpc     *http.Client
	logf      logger.Logf
	scrubber  *strings.Replacer
	slog      *slog.Logger
	slogLevel *slog.LevelVar
	stream    logger.Streamer
	tg        *telegram.Client
	completer drill.Completer
	cur       *curriculum.Curriculum
}

func (e *engine) doInit(ctx context.Context) error {
	env := cli.GetEnv(ctx)
	e.logf = log.New(env.Stderr, "", 0).Printf
	if e.now == nil {
		e.now = time.Now
	}
	if e.httpc == nil {
		e.httpc = request.DefaultClient
	}

	var secrets []string
	for _, s := range []string{e.tgToken, e.groqKey, e.geminiKey} {
		if s != "" {
			secrets = append(secrets, s, "[EXPUNGED]")
		}
	}
	if len(secrets) > 0 {
		e.scrubber = strings.NewReplacer(secrets...)
	}

	e.stream = logger.NewStreamer(logStreamSize)
	e.slogLevel = new(slog.LevelVar)
	e.slog = slog.New(slog.NewTextHandler(io.MultiWriter(e.logf, e.stream), &slog.HandlerOptions{
		Level: e.slogLevel,
	}))

	e.tg = telegram.New(telegram.Config{
		Token:      e.tgToken,
		HTTPClient: e.httpc,
		Scrubber:   e.scrubber,
		Logger:     e.slog,
	})

	switch {
	case e.groqKey != "":
		e.completer = &groq.Client{
			APIKey:     e.groqKey,
			Model:      groq.DefaultModel,
			HTTPClient: e.httpc,
			Scrubber:   e.scrubber,
		}
	case e.geminiKey != "":
		e.completer = &gemini.Client{
			APIKey:     e.geminiKey,
			Model:      "gemini-2.0-flash",
			HTTPClient: e.httpc,
			Scrubber:   e.scrubber,
		}
	}

	if e.curriculumPath != "" {
		b, err := os.ReadFile(e.curriculumPath)
		if err != nil {
			return fmt.Errorf("reading curriculum: %w", err)
		}
		cur, err := curriculum.Parse(filepath.Base(e.curriculumPath), string(b), e.logf)
		if err != nil {
			return fmt.Errorf("parsing curriculum: %w", err)
		}
		e.cur = cur
	} else {
		e.cur = curriculum.Default()
	}

	return nil
}

func (e *engine) openDB(ctx context.Context) (*drill.DB, store.Store, error) {
	st, err := store.Open(ctx, e.dbDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store %q: %w", e.dbDSN, err)
	}
	return drill.NewDB(st), st, nil
}

func (e *engine) runService(ctx context.Context) error {
	if e.tgToken == "" {
		return errNoToken
	}
	if e.completer == nil {
		return errNoCompleter
	}

	lock, err := filelock.Acquire(filepath.Join(e.stateDir, "run.lock"), strconv.Itoa(os.Getpid()))
	if err != nil {
		if errors.Is(err, filelock.ErrAlreadyLocked) {
			return fmt.Errorf("%w: is another drillbot running?", err)
		}
		return err
	}
	defer lock.Release()

	db, st, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	b := &bot.Bot{
		DB:         db,
		Telegram:   e.tg,
		Completer:  e.completer,
		Curriculum: e.cur,
		SpoolDir:   e.spoolDir,
		Logf:       e.logf,
		Now:        e.now,
	}
	sched := &scheduler.Scheduler{
		DB:          db,
		Telegram:    e.tg,
		Completer:   e.completer,
		Curriculum:  e.cur,
		Logger:      e.slog,
		AdminChatID: e.adminChatID,
		Now:         e.now,
	}

	mux := http.NewServeMux()
	web.Health(mux)
	mux.Handle("/debug/log", e.stream)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.slog.Info("starting", "admin_addr", e.adminAddr, "db", e.dbDSN, "tracks", e.cur.Names())

	errc := make(chan error, 3)
	go func() {
		errc <- web.ListenAndServe(ctx, &web.ListenAndServeConfig{
			Addr: e.adminAddr,
			Mux:  mux,
			Logf: e.logf,
		})
	}()
	go func() { errc <- sched.Run(ctx) }()
	go func() { errc <- e.poll(ctx, b) }()

	err = <-errc
	cancel()
	// Let the remaining goroutines finish; their errors after cancellation
	// are expected.
	<-errc
	<-errc
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// poll runs the long-polling loop, feeding every update to the bot.
func (e *engine) poll(ctx context.Context, b *bot.Bot) error {
	var offset int64
	for {
		updates, err := e.tg.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.slog.Error("getting updates", "error", err)
			if !sleep(ctx, pollRetryDelay) {
				return ctx.Err()
			}
			continue
		}
		for _, upd := range updates {
			offset = max(offset, upd.ID+1)
			if err := b.HandleUpdate(ctx, upd); err != nil {
				e.slog.Error("handling update", "update_id", upd.ID, "error", err)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// errNotify reports an error to the admin chat, returning it unchanged.
func (e *engine) errNotify(ctx context.Context, err error) error {
	if e.adminChatID == 0 || e.tgToken == "" {
		return err
	}
	// The notification is best-effort; the original error matters more.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if sendErr := e.tg.Send(sendCtx, e.adminChatID, "❌ drillbot: "+err.Error()); sendErr != nil {
		e.slog.Error("reporting error to admin chat", "error", sendErr)
	}
	return err
}

func (e *engine) listLearners(ctx context.Context, w io.Writer) error {
	db, st, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	learners, err := db.Learners(ctx)
	if err != nil {
		return err
	}

	if e.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(learners)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHAT ID\tNAME\tTRACK\tTIME\tSTREAK\tSCORE\tSOLVED\tMISSED\tSTATUS")
	for _, l := range learners {
		status := "active"
		switch {
		case l.Paused:
			status = "paused"
		case l.HasOpenAssignment():
			status = "question open"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			l.ChatID, l.Name, l.Track, l.PreferredTime,
			l.Stats.Streak, l.Stats.Score, l.Stats.Solved, l.Stats.Missed, status)
	}
	return tw.Flush()
}

func (e *engine) reset(ctx context.Context, arg string, w io.Writer) error {
	chatID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid chat ID %q", cli.ErrInvalidArgs, arg)
	}

	db, st, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	l, err := db.Learner(ctx, chatID)
	if err != nil {
		return err
	}
	l.Assignment = nil
	l.Stats.LastIssued = ""
	l.ErrorCount = 0
	l.LastError = ""
	if err := db.Save(ctx, l); err != nil {
		return err
	}
	fmt.Fprintf(w, "Cleared the current assignment of %s (%d); a new question will be issued at %s.\n", l.Name, chatID, l.PreferredTime)
	return nil
}
