package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/roach88/replcheck/internal/assertion"
	"github.com/roach88/replcheck/internal/command"
	"github.com/roach88/replcheck/internal/match"
	"github.com/roach88/replcheck/internal/replica"
)

// Engine runs scenarios against a Session. It is not safe for concurrent
// use; scenarios run one after another.
type Engine struct {
	session  Session
	asserter *assertion.Asserter
	logger   *slog.Logger
	out      io.Writer
}

// NewEngine creates an engine. Progress and failure reports go to out.
func NewEngine(session Session, asserter *assertion.Asserter, logger *slog.Logger, out io.Writer) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if out == nil {
		out = io.Discard
	}
	return &Engine{
		session:  session,
		asserter: asserter,
		logger:   logger,
		out:      out,
	}
}

// Result is the outcome of one scenario.
type Result struct {
	Index    int
	Label    string
	Scenario Scenario

	// Collection and Path are the names the scenario ran under.
	Collection string
	Path       string

	// Outcome is the raw result of the operation under test.
	Outcome assertion.Outcome

	// Observed is the layout read back after the operation.
	Observed replica.Layout

	// Err is the first failure of setup, execute or verification.
	Err error

	// TeardownErr is reported separately and never replaces Err.
	TeardownErr error

	// Removed reports that the collection was gone after teardown.
	Removed bool

	Duration time.Duration
}

// Passed reports whether the scenario held. A teardown failure alone does
// not fail the scenario.
func (r *Result) Passed() bool {
	return r.Err == nil
}

// Run drives scenario index of m through setup, execute, verification and
// teardown.
func (e *Engine) Run(ctx context.Context, index int, m *Matrix, sc Scenario) *Result {
	start := time.Now()
	collection := path.Join(e.session.ScratchCollection(), fmt.Sprintf("%s_%d", m.Name, index))
	res := &Result{
		Index:      index,
		Label:      m.Label(index),
		Scenario:   sc,
		Collection: collection,
		Path:       path.Join(collection, m.ObjectName()),
	}

	fmt.Fprintf(e.out, "============= (%s): [%d] =============\n%s\n", m.Name, index, sc)
	e.logger.Debug("scenario starting", "label", res.Label, "start", sc.Start.String())

	res.Err = e.execute(ctx, m, sc, res)

	e.teardown(ctx, res)
	res.Duration = time.Since(start)

	if res.Err != nil {
		fmt.Fprintf(e.out, "scenario %s FAILED\n%s\n", res.Label, command.Indent("", res.Err.Error()))
		e.logger.Info("scenario failed", "label", res.Label, "error", res.Err)
	} else {
		e.logger.Debug("scenario passed", "label", res.Label, "duration", res.Duration)
	}
	return res
}

func (e *Engine) execute(ctx context.Context, m *Matrix, sc Scenario, res *Result) error {
	if err := e.setup(ctx, sc, res); err != nil {
		return fmt.Errorf("%s: setup: %w", res.Label, err)
	}

	locations, err := e.locations(sc)
	if err != nil {
		return fmt.Errorf("%s: %w", res.Label, err)
	}

	tmpl, err := m.operationTemplate(e.session.Resource)
	if err != nil {
		return fmt.Errorf("%s: %w", res.Label, err)
	}
	cmd, err := tmpl.Expand(OperationData{
		Path:       res.Path,
		Collection: res.Collection,
		Object:     m.ObjectName(),
		Locations:  locations,
	})
	if err != nil {
		return fmt.Errorf("%s: operation: %w", res.Label, err)
	}

	res.Outcome, err = e.asserter.Run(ctx, cmd, e.session.Options())
	if err != nil {
		return fmt.Errorf("%s: execute: %w", res.Label, err)
	}
	fmt.Fprintf(e.out, "%s\n  stdout:\n%s\n  stderr:\n%s\n  rc: %d\n",
		res.Outcome.Command, match.Dump(res.Outcome.Stdout), match.Dump(res.Outcome.Stderr), res.Outcome.ExitCode)

	outputErr := verifyOutput(res.Label, sc, res.Outcome)

	replicas, err := e.session.Replicas(ctx, res.Path)
	if err != nil {
		if outputErr != nil {
			return outputErr
		}
		return fmt.Errorf("%s: list replicas: %w", res.Label, err)
	}
	res.Observed = replica.Observe(replicas, subset(locations, sc.End))
	stateErr := verifyState(res.Label, sc, res.Observed)

	switch {
	case outputErr != nil && stateErr != nil:
		return fmt.Errorf("%w\n%w", outputErr, stateErr)
	case outputErr != nil:
		return outputErr
	default:
		return stateErr
	}
}

// setup puts the object at the first present location in key order,
// replicates it to the other present locations and then forces every
// present location's status.
func (e *Engine) setup(ctx context.Context, sc Scenario, res *Result) error {
	if err := e.session.MakeCollection(ctx, res.Collection); err != nil {
		return err
	}

	var present []string
	for _, key := range sc.Start.Keys() {
		if sc.Start[key].Present() {
			present = append(present, key)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := e.session.Put(ctx, res.Path, present[0]); err != nil {
		return fmt.Errorf("put at %s: %w", present[0], err)
	}
	for _, key := range present[1:] {
		if err := e.session.Replicate(ctx, res.Path, key); err != nil {
			return fmt.Errorf("replicate to %s: %w", key, err)
		}
	}
	for _, key := range present {
		if err := e.session.SetStatus(ctx, res.Path, key, sc.Start[key]); err != nil {
			return fmt.Errorf("set status at %s: %w", key, err)
		}
	}
	return nil
}

// teardown always runs. Its errors are logged and kept apart from res.Err.
func (e *Engine) teardown(ctx context.Context, res *Result) {
	ctx = context.WithoutCancel(ctx)
	if err := e.session.Remove(ctx, res.Collection); err != nil {
		res.TeardownErr = err
		e.logger.Warn("teardown failed", "label", res.Label, "collection", res.Collection, "error", err)
		return
	}
	exists, err := e.session.Exists(ctx, res.Collection)
	if err != nil {
		res.TeardownErr = err
		e.logger.Warn("teardown check failed", "label", res.Label, "collection", res.Collection, "error", err)
		return
	}
	res.Removed = !exists
	if exists {
		e.logger.Warn("collection still present after teardown", "label", res.Label, "collection", res.Collection)
	}
}

func (e *Engine) locations(sc Scenario) (map[string]string, error) {
	locations := make(map[string]string)
	for _, layout := range []replica.Layout{sc.Start, sc.End} {
		for key := range layout {
			if _, done := locations[key]; done {
				continue
			}
			name, err := e.session.Resource(key)
			if err != nil {
				return nil, err
			}
			locations[key] = name
		}
	}
	return locations, nil
}

func subset(locations map[string]string, layout replica.Layout) map[string]string {
	out := make(map[string]string, len(layout))
	for key := range layout {
		out[key] = locations[key]
	}
	return out
}

func verifyOutput(label string, sc Scenario, out assertion.Outcome) error {
	var divergences []Divergence

	check := func(channel string, want *string, got string) {
		switch {
		case want == nil && got != "":
			divergences = append(divergences, Divergence{Channel: channel, Want: "None", Got: got})
		case want != nil && !strings.Contains(got, *want):
			divergences = append(divergences, Divergence{Channel: channel, Want: fmt.Sprintf("[%s]", *want), Got: got})
		}
	}
	check("stdout", sc.Output.Out, out.Stdout)
	check("stderr", sc.Output.Err, out.Stderr)

	wantRC := 0
	if sc.Output.RC != nil {
		wantRC = *sc.Output.RC
	}
	if out.ExitCode != wantRC {
		want := "None"
		if sc.Output.RC != nil {
			want = fmt.Sprintf("[%d]", wantRC)
		}
		divergences = append(divergences, Divergence{Channel: "rc", Want: want, Got: fmt.Sprintf("%d", out.ExitCode)})
	}

	if len(divergences) == 0 {
		return nil
	}
	return &OutputMismatchError{Label: label, Start: sc.Start, Divergences: divergences}
}

func verifyState(label string, sc Scenario, observed replica.Layout) error {
	for _, key := range sc.End.Keys() {
		if observed[key] != sc.End[key] {
			return &StateMismatchError{Label: label, Start: sc.Start, Want: sc.End, Got: observed}
		}
	}
	return nil
}
