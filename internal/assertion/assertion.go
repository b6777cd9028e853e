// Package assertion runs a command and checks its output and exit code in
// one call.
package assertion

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/replcheck/internal/command"
	"github.com/roach88/replcheck/internal/match"
)

// Banner is written to the diagnostic writer before a failed check returns.
const Banner = "FAILED TESTING ASSERTION"

// Call is one "run this and expect that" request.
type Call struct {
	Command command.Command
	Expect  match.Expectation

	// ExitCode, when set, must equal the actual exit code.
	ExitCode *int

	Options command.Options
}

// Code returns a pointer for Call.ExitCode.
func Code(n int) *int {
	return &n
}

// Outcome is the raw result of a call. It is returned whether or not the
// check held so callers can make further assertions.
type Outcome struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Asserter composes a command.Runner and a match.Matcher.
type Asserter struct {
	runner  *command.Runner
	matcher *match.Matcher
	out     io.Writer
	logger  *slog.Logger
}

// New creates an asserter. Diagnostics go to out; nil discards them.
func New(runner *command.Runner, out io.Writer, logger *slog.Logger) *Asserter {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Asserter{
		runner:  runner,
		matcher: match.New(out),
		out:     out,
		logger:  logger,
	}
}

// Run executes the command without checking anything.
func (a *Asserter) Run(ctx context.Context, cmd command.Command, opts command.Options) (Outcome, error) {
	res, err := a.runner.Run(ctx, cmd, opts)
	out := Outcome{
		Command:  cmd.String(),
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	return out, err
}

// Check runs call and evaluates it. With shouldFail the check holds when the
// expectation does not match. A set ExitCode is checked independently of the
// output. A check that does not hold returns a *MismatchError.
func (a *Asserter) Check(ctx context.Context, call Call, shouldFail bool) (Outcome, error) {
	if err := call.Expect.Validate(); err != nil {
		return Outcome{Command: call.Command.String()}, fmt.Errorf("assert %s: %w", call.Command, err)
	}

	out, err := a.Run(ctx, call.Command, call.Options)
	if err != nil {
		return out, err
	}

	failWord := ""
	if shouldFail {
		failWord = " FAIL"
	}
	fmt.Fprintf(a.out, "Assert%s Command: %s\n", failWord, out.Command)

	matched, err := a.matcher.Match(out.Stdout, out.Stderr, call.Expect)
	if err != nil {
		return out, err
	}
	outputOK := shouldFail != matched

	codeOK := true
	if call.ExitCode != nil {
		fmt.Fprintf(a.out, "Checking return code: actual [%d] desired [%d]\n", out.ExitCode, *call.ExitCode)
		if out.ExitCode != *call.ExitCode {
			fmt.Fprintln(a.out, "RETURN CODE CHECK FAILED")
			codeOK = false
		}
	}

	if outputOK && codeOK {
		return out, nil
	}

	fmt.Fprintf(a.out, "%s\n\n\n", Banner)
	a.logger.Info("assertion failed",
		"command", out.Command,
		"check", call.Expect.Check.String(),
		"exit_code", out.ExitCode,
	)
	return out, &MismatchError{
		Command:      out.Command,
		Expect:       call.Expect,
		ShouldFail:   shouldFail,
		WantExitCode: call.ExitCode,
		OutputOK:     outputOK,
		Outcome:      out,
	}
}
