package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// DefaultKillGrace is how long a timed-out process group gets between the
// terminate signal and the kill. RunWithTimeout returns within the timeout
// plus this grace.
const DefaultKillGrace = 250 * time.Millisecond

// DefaultShell runs Options.Shell command lines.
const DefaultShell = "/bin/sh"

// Runner spawns processes and waits for them.
// A Runner holds no per-call state; each call gets its own Handle.
type Runner struct {
	logger    *slog.Logger
	shell     string
	killGrace time.Duration
}

// NewRunner creates a runner that logs every invocation to logger.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		logger:    logger,
		shell:     DefaultShell,
		killGrace: DefaultKillGrace,
	}
}

// WithKillGrace sets the delay between terminate and kill on timeout.
func (r *Runner) WithKillGrace(d time.Duration) *Runner {
	r.killGrace = d
	return r
}

// Handle is a started process.
type Handle struct {
	cmd     Command
	opts    Options
	proc    *exec.Cmd
	stdin   io.WriteCloser
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	started time.Time
}

// Pid returns the process id.
func (h *Handle) Pid() int {
	return h.proc.Process.Pid
}

// Spawn starts the command. Stdin is always a pipe so Communicate can feed
// it; stdout and stderr are captured unless Options supplies writers.
func (r *Runner) Spawn(cmd Command, opts Options) (*Handle, error) {
	if cmd.IsZero() {
		return nil, &LaunchError{Program: "", Command: cmd.String(), Err: errors.New("empty command")}
	}

	var argv []string
	if opts.Shell {
		line := cmd.Line
		if line == "" {
			line = cmd.String()
		}
		argv = []string{r.shell, "-c", line}
	} else {
		tokens, err := cmd.Tokens()
		if err != nil {
			return nil, &LaunchError{Program: cmd.Line, Command: cmd.String(), Err: err}
		}
		argv = tokens
	}

	h := &Handle{cmd: cmd, opts: opts}
	h.proc = exec.Command(argv[0], argv[1:]...)
	h.proc.Dir = opts.Dir
	h.proc.Env = opts.environ(os.Environ())
	h.proc.WaitDelay = r.killGrace
	setProcessGroup(h.proc)

	if opts.Stdout != nil {
		h.proc.Stdout = opts.Stdout
	} else {
		h.proc.Stdout = &h.stdout
	}
	if opts.Stderr != nil {
		h.proc.Stderr = opts.Stderr
	} else {
		h.proc.Stderr = &h.stderr
	}

	stdin, err := h.proc.StdinPipe()
	if err != nil {
		return nil, &LaunchError{Program: argv[0], Command: cmd.String(), Err: err}
	}
	h.stdin = stdin

	r.logger.Debug("calling command",
		"command", cmd.String(),
		"options", opts.Redacted(),
	)

	if err := h.proc.Start(); err != nil {
		return nil, &LaunchError{Program: argv[0], Command: cmd.String(), Err: err}
	}
	h.started = time.Now()
	return h, nil
}

// Communicate writes input to stdin, closes it and blocks until the process
// exits. A non-zero exit code is reported in the Result, not as an error.
func (r *Runner) Communicate(h *Handle, input string) (Result, error) {
	waitErr := h.wait(input)
	return r.finish(h, input, waitErr)
}

// wait feeds stdin and reaps the process. A child that exits without reading
// its input makes the write fail; that is not an error of the call.
func (h *Handle) wait(input string) error {
	if input != "" {
		_, _ = io.WriteString(h.stdin, input)
	}
	_ = h.stdin.Close()
	return h.proc.Wait()
}

func (r *Runner) finish(h *Handle, input string, waitErr error) (Result, error) {
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
	case errors.Is(waitErr, exec.ErrWaitDelay):
		r.logger.Warn("command output pipes held open after exit",
			"command", h.cmd.String(),
		)
	default:
		return Result{}, waitErr
	}

	res := Result{
		Stdout:   decode(h.stdout.Bytes()),
		Stderr:   decode(h.stderr.Bytes()),
		ExitCode: h.proc.ProcessState.ExitCode(),
	}

	attrs := []any{
		"command", h.cmd.String(),
		"exit_code", res.ExitCode,
		"duration", time.Since(h.started),
	}
	if len(h.opts.Env) > 0 {
		attrs = append(attrs, "env", hidden)
	}
	if input != "" {
		attrs = append(attrs, "stdin_bytes", len(input))
	}
	if res.Stdout != "" {
		attrs = append(attrs, "stdout", Indent("", res.Stdout))
	}
	if res.Stderr != "" {
		attrs = append(attrs, "stderr", Indent("", res.Stderr))
	}
	r.logger.Debug("command returned", attrs...)

	return res, nil
}

// Run executes the command and returns whatever it produced, whatever its
// exit code. Options.Timeout > 0 selects the timeout path.
func (r *Runner) Run(ctx context.Context, cmd Command, opts Options) (Result, error) {
	if opts.Timeout > 0 {
		return r.RunWithTimeout(ctx, cmd, opts)
	}
	h, err := r.Spawn(cmd, opts)
	if err != nil {
		return Result{}, err
	}
	return r.Communicate(h, opts.Input)
}

// RunWithTimeout runs the command with a hard deadline of opts.Timeout.
//
// The wait is a single select over process exit and a timer. When the timer
// fires first the process group is sent SIGTERM and, after the kill grace,
// SIGKILL. A process that exits in between is not an error. Output produced
// before the kill is discarded.
func (r *Runner) RunWithTimeout(ctx context.Context, cmd Command, opts Options) (Result, error) {
	if opts.Timeout <= 0 {
		return r.Run(ctx, cmd, opts)
	}
	h, err := r.Spawn(cmd, opts)
	if err != nil {
		return Result{}, err
	}

	done := make(chan error, 1)
	go func() {
		done <- h.wait(opts.Input)
	}()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	select {
	case waitErr := <-done:
		return r.finish(h, opts.Input, waitErr)
	case <-timer.C:
	case <-ctx.Done():
	}

	r.stop(h, done)

	if err := ctx.Err(); err != nil {
		return Result{ExitCode: ExitTimedOut, TimedOut: true}, err
	}
	r.logger.Warn("command timed out",
		"command", cmd.String(),
		"timeout", opts.Timeout,
	)
	return Result{ExitCode: ExitTimedOut, TimedOut: true}, &TimeoutError{Command: cmd.String(), Timeout: opts.Timeout}
}

// stop escalates terminate -> kill and always reaps the process.
func (r *Runner) stop(h *Handle, done <-chan error) {
	if err := terminate(h.proc); err != nil && !processGone(err) {
		r.logger.Debug("terminate failed", "command", h.cmd.String(), "error", err)
	}
	grace := time.NewTimer(r.killGrace)
	defer grace.Stop()
	select {
	case <-done:
		return
	case <-grace.C:
	}
	if err := kill(h.proc); err != nil && !processGone(err) {
		r.logger.Debug("kill failed", "command", h.cmd.String(), "error", err)
	}
	<-done
}

// RunChecked runs the command to completion and fails on a non-zero exit.
// opts.Timeout is ignored: the command always runs to completion.
func (r *Runner) RunChecked(ctx context.Context, cmd Command, opts Options) (string, string, error) {
	opts.Timeout = 0
	res, err := r.Run(ctx, cmd, opts)
	if err != nil {
		return "", "", err
	}
	if res.ExitCode != 0 {
		return res.Stdout, res.Stderr, &NonZeroExitError{
			Command:  cmd.String(),
			Options:  opts.Redacted(),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	return res.Stdout, res.Stderr, nil
}

// decode turns captured bytes into text; invalid UTF-8 becomes U+FFFD.
func decode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func processGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || isNoSuchProcess(err)
}
