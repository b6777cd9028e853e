package scenario

import (
	"context"
	"time"
)

// Report collects the results of one matrix run.
type Report struct {
	Matrix   string
	Results  []*Result
	Duration time.Duration
}

// Passed reports whether every scenario passed.
func (r *Report) Passed() bool {
	return r.FailedCount() == 0
}

// FailedCount is the number of failed scenarios.
func (r *Report) FailedCount() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed() {
			n++
		}
	}
	return n
}

// Failures returns the failed results in run order.
func (r *Report) Failures() []*Result {
	var failed []*Result
	for _, res := range r.Results {
		if !res.Passed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// RunMatrix runs every scenario of m in order and keeps going after
// failures. Only a cancelled context stops it early.
func (e *Engine) RunMatrix(ctx context.Context, m *Matrix) *Report {
	start := time.Now()
	report := &Report{Matrix: m.Name}
	for i, sc := range m.Scenarios {
		if ctx.Err() != nil {
			e.logger.Warn("matrix run cancelled", "matrix", m.Name, "remaining", len(m.Scenarios)-i)
			break
		}
		report.Results = append(report.Results, e.Run(ctx, i, m, sc))
	}
	report.Duration = time.Since(start)
	return report
}
