package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// LaunchError is returned when the program could not be started.
type LaunchError struct {
	// Program is the executable that was attempted.
	Program string

	// Command is the full invocation, for reporting.
	Command string

	// Err is the raw OS error.
	Err error
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("call to open process with %s failed:\n%s", e.Command,
		Indent("", fmt.Sprintf("could not start %q; ensure it is installed and in the path: %v", e.Program, e.Err)))
}

// Unwrap returns the OS error.
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when a call did not finish before its deadline.
// Output captured before the kill is not part of the error.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("the call %s did not complete within %s", e.Command, e.Timeout)
}

// NonZeroExitError is returned by RunChecked when the process exits with a
// non-zero code. Options holds the redacted view of the call options.
type NonZeroExitError struct {
	Command  string
	Options  map[string]string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Error implements the error interface.
func (e *NonZeroExitError) Error() string {
	keys := make([]string, 0, len(e.Options))
	for k := range e.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	opts := make([]string, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, fmt.Sprintf("%s: %s", k, e.Options[k]))
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "call to open process with %s returned an error:\n", e.Command)
	buf.WriteString(Indent("", "options:"))
	if len(opts) > 0 {
		buf.WriteString("\n" + Indent("    ", strings.Join(opts, "\n")))
	}
	fmt.Fprintf(&buf, "\n  exit code: %d", e.ExitCode)
	buf.WriteString("\n  stdout:\n" + Indent("    ", e.Stdout))
	buf.WriteString("\n  stderr:\n" + Indent("    ", e.Stderr))
	return buf.String()
}

// IsLaunchError reports whether err is or wraps a LaunchError.
func IsLaunchError(err error) bool {
	var le *LaunchError
	return errors.As(err, &le)
}

// IsTimeout reports whether err is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// ExitCodeOf returns the exit code carried by a NonZeroExitError.
func ExitCodeOf(err error) (int, bool) {
	var ne *NonZeroExitError
	if errors.As(err, &ne) {
		return ne.ExitCode, true
	}
	return 0, false
}
