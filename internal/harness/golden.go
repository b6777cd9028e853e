package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/replcheck/internal/scenario"
)

// ReportSnapshot is the stable part of a scenario report: no timings, paths
// or raw output, which vary between runs.
type ReportSnapshot struct {
	Matrix    string             `json:"matrix"`
	Scenarios []ScenarioSnapshot `json:"scenarios"`
}

// ScenarioSnapshot is the stable part of one scenario result.
type ScenarioSnapshot struct {
	Label    string `json:"label"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Observed string `json:"observed,omitempty"`
	ExitCode int    `json:"exit_code"`
	Passed   bool   `json:"passed"`
	Removed  bool   `json:"removed"`
}

// Snapshot reduces report to its stable part.
func Snapshot(report *scenario.Report) ReportSnapshot {
	snap := ReportSnapshot{
		Matrix:    report.Matrix,
		Scenarios: make([]ScenarioSnapshot, 0, len(report.Results)),
	}
	for _, r := range report.Results {
		s := ScenarioSnapshot{
			Label:    r.Label,
			Start:    r.Scenario.Start.String(),
			End:      r.Scenario.End.String(),
			ExitCode: r.Outcome.ExitCode,
			Passed:   r.Passed(),
			Removed:  r.Removed,
		}
		if r.Observed != nil {
			s.Observed = r.Observed.String()
		}
		snap.Scenarios = append(snap.Scenarios, s)
	}
	return snap
}

// AssertReportGolden compares the report's snapshot against
// testdata/golden/<name>.golden.
func AssertReportGolden(t *testing.T, name string, report *scenario.Report) {
	t.Helper()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Snapshot(report)); err != nil {
		t.Fatalf("failed to marshal report snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())
}
