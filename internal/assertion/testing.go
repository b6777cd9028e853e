package assertion

import (
	"context"

	"github.com/stretchr/testify/require"
)

// TestingT is the part of *testing.T the assertion helpers need.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

// Succeeds runs call and fails t unless the expectation matches and the exit
// code, if given, is right.
func (a *Asserter) Succeeds(t TestingT, call Call) Outcome {
	t.Helper()
	return a.assert(t, call, false)
}

// Fails runs call and fails t if the expectation matches. A set exit code
// must still be equal.
func (a *Asserter) Fails(t TestingT, call Call) Outcome {
	t.Helper()
	return a.assert(t, call, true)
}

func (a *Asserter) assert(t TestingT, call Call, shouldFail bool) Outcome {
	t.Helper()
	out, err := a.Check(context.Background(), call, shouldFail)
	if err != nil {
		require.Fail(t, err.Error())
	}
	return out
}
