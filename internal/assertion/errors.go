package assertion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/replcheck/internal/command"
	"github.com/roach88/replcheck/internal/match"
)

// MismatchError reports a check that did not hold. Outcome carries what the
// command actually produced.
type MismatchError struct {
	Command      string
	Expect       match.Expectation
	ShouldFail   bool
	WantExitCode *int

	// OutputOK is false when the output half of the check failed.
	OutputOK bool

	Outcome Outcome
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed for %s\n", e.Command)
	if !e.OutputOK {
		verb := "expected"
		if e.ShouldFail {
			verb = "expected no match for"
		}
		fmt.Fprintf(&buf, "  %s %s\n", verb, e.Expect)
	}
	if e.WantExitCode != nil && *e.WantExitCode != e.Outcome.ExitCode {
		fmt.Fprintf(&buf, "  exit code: got %d, want %d\n", e.Outcome.ExitCode, *e.WantExitCode)
	}
	buf.WriteString("  stdout:\n" + command.Indent(match.LinePrefix, e.Outcome.Stdout) + "\n")
	buf.WriteString("  stderr:\n" + command.Indent(match.LinePrefix, e.Outcome.Stderr))
	return buf.String()
}

// IsMismatch reports whether err is or wraps a MismatchError.
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}
