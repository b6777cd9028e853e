package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // at least one scenario failed
	ExitCommandError = 2 // bad arguments, config or matrix; session setup failed
	ExitClientError  = 3 // simcat refused the operation, as the icommands exit
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and context to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to an exit code. Errors without an ExitError in
// their chain come from argument parsing and map to ExitCommandError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter writes command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format string

	// Writer receives results.
	Writer io.Writer

	// ErrWriter receives diagnostics in JSON mode so Writer stays parseable.
	ErrWriter io.Writer
}

// CLIResponse is the JSON envelope.
type CLIResponse struct {
	Status string `json:"status"` // "ok"
	Data   any    `json:"data,omitempty"`
}

// Success writes data, enveloped in JSON mode.
func (f *OutputFormatter) Success(data any) error {
	if f.Format != "json" {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(CLIResponse{Status: "ok", Data: data})
}

// DiagnosticWriter is where matcher dumps and banners go.
func (f *OutputFormatter) DiagnosticWriter() io.Writer {
	if f.Format == "json" && f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
