package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/roach88/replcheck/internal/assertion"
	"github.com/roach88/replcheck/internal/command"
	"github.com/roach88/replcheck/internal/config"
	"github.com/roach88/replcheck/internal/scenario"
	"github.com/roach88/replcheck/internal/session"
)

// Options configure a Context.
type Options struct {
	Config config.Config

	// Out receives human-readable diagnostics. Nil means stdout.
	Out io.Writer

	// LogOut receives the structured log. Nil means stderr.
	LogOut io.Writer

	// Verbose forces debug logging.
	Verbose bool

	// IDs names the session's scratch collection. Nil means UUIDv7.
	IDs session.IDGenerator
}

// Context owns everything a test run shares: the log sink, the diagnostic
// writer, and the runner and asserter built on them.
type Context struct {
	Config   config.Config
	Logger   *slog.Logger
	Out      io.Writer
	Runner   *command.Runner
	Asserter *assertion.Asserter

	ids     session.IDGenerator
	closers []io.Closer
}

// New builds a Context from opts.
func New(opts Options) (*Context, error) {
	level, err := opts.Config.Log.SlogLevel()
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	logOut := opts.LogOut
	if logOut == nil {
		logOut = os.Stderr
	}

	c := &Context{Config: opts.Config, Out: out, ids: opts.IDs}

	if file := opts.Config.Log.File; file != "" {
		rotating := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    opts.Config.Log.MaxSizeMB,
			MaxBackups: opts.Config.Log.MaxBackups,
		}
		c.closers = append(c.closers, rotating)
		logOut = io.MultiWriter(logOut, rotating)
	}

	c.Logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	c.Runner = command.NewRunner(c.Logger)
	c.Asserter = assertion.New(c.Runner, out, c.Logger)
	return c, nil
}

// OpenSession opens a client session with the configured backend.
func (c *Context) OpenSession(ctx context.Context) (*session.Client, error) {
	return session.Open(ctx, c.Config.Session, c.Asserter, c.ids, c.Logger)
}

// Engine returns a scenario engine bound to s.
func (c *Context) Engine(s scenario.Session) *scenario.Engine {
	return scenario.NewEngine(s, c.Asserter, c.Logger, c.Out)
}

// Close flushes and closes the log file, if any.
func (c *Context) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	c.closers = nil
	return errors.Join(errs...)
}
