package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/replcheck/internal/config"
	"github.com/roach88/replcheck/internal/harness"
	"github.com/roach88/replcheck/internal/scenario"
	"github.com/roach88/replcheck/internal/session"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter string // regular expression over scenario labels

	// IDs overrides the scratch collection naming (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs session.IDGenerator
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name       string   `json:"name"`
	Start      string   `json:"start"`
	Pass       bool     `json:"pass"`
	Errors     []string `json:"errors,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// RunResult holds the overall result of one matrix.
type RunResult struct {
	Matrix    string           `json:"matrix"`
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <matrix>",
		Short: "Run a scenario matrix",
		Long: `Run every scenario of a matrix file (YAML or CUE) against the configured
storage clients, one fresh collection per scenario.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (bad matrix, bad config, session setup failed, etc.)

Examples:
  replcheck run --config replcheck.yaml matrices/irepl.yaml
  replcheck run -c replcheck.yaml matrices/irepl.cue --filter 'stale'
  replcheck run -c replcheck.yaml matrices/irepl.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatrix(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenarios whose label matches this regular expression")

	return cmd
}

func runMatrix(ctx context.Context, opts *RunOptions, matrixPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}

	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}

	matrix, err := scenario.LoadMatrix(matrixPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load matrix", err)
	}
	if matrix, err = matrix.Filter(opts.Filter); err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	hc, err := harness.New(harness.Options{
		Config:  cfg,
		Out:     formatter.DiagnosticWriter(),
		LogOut:  cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
		IDs:     opts.IDs,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up harness", err)
	}
	defer hc.Close()

	sess, err := hc.OpenSession(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open session", err)
	}
	report := hc.Engine(sess).RunMatrix(ctx, matrix)
	if err := sess.Close(context.WithoutCancel(ctx)); err != nil {
		hc.Logger.Warn("session cleanup failed", "error", err)
	}

	result := summarize(report)
	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		writeRunText(formatter.Writer, result)
	}

	if err := ctx.Err(); err != nil {
		return WrapExitError(ExitCommandError, "run interrupted", err)
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

func summarize(report *scenario.Report) RunResult {
	result := RunResult{
		Matrix:    report.Matrix,
		Scenarios: make([]ScenarioResult, 0, len(report.Results)),
		Total:     len(report.Results),
	}
	for _, r := range report.Results {
		sr := ScenarioResult{
			Name:       r.Label,
			Start:      r.Scenario.Start.String(),
			Pass:       r.Passed(),
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			sr.Errors = strings.Split(r.Err.Error(), "\n")
		}
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}
	return result
}

func writeRunText(w io.Writer, result RunResult) {
	fmt.Fprintf(w, "\nmatrix %s\n", result.Matrix)
	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s %s\n", s.Name, s.Start)
			continue
		}
		fmt.Fprintf(w, "✗ %s %s\n", s.Name, s.Start)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
