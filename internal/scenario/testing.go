package scenario

import (
	"context"
	"testing"
)

// RunMatrixT runs each scenario of m as its own sub-test so one failing row
// does not hide the others.
func RunMatrixT(t *testing.T, e *Engine, m *Matrix) *Report {
	t.Helper()
	report := &Report{Matrix: m.Name}
	for i, sc := range m.Scenarios {
		t.Run(m.Label(i), func(t *testing.T) {
			res := e.Run(context.Background(), i, m, sc)
			report.Results = append(report.Results, res)
			if res.TeardownErr != nil {
				t.Logf("teardown: %v", res.TeardownErr)
			}
			if res.Err != nil {
				t.Error(res.Err)
			}
		})
	}
	return report
}
