package assertion

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/replcheck/internal/command"
	"github.com/roach88/replcheck/internal/match"
)

// recordingT captures failures instead of stopping the test.
type recordingT struct {
	errors []string
	failed bool
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingT) FailNow() {
	r.failed = true
}

func newAsserter(t *testing.T) (*Asserter, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return New(command.NewRunner(nil), &out, nil), &out
}

func shell(line string) command.Command {
	return command.Argv("sh", "-c", line)
}

func TestCheck_Success(t *testing.T) {
	a, out := newAsserter(t)

	got, err := a.Check(context.Background(), Call{
		Command: command.Argv("echo", "hello world"),
		Expect:  match.Expect(match.StdoutSingleLine, "hello", "world"),
	}, false)
	require.NoError(t, err)

	assert.Equal(t, 0, got.ExitCode)
	assert.Equal(t, "hello world\n", got.Stdout)
	assert.Contains(t, out.String(), `Assert Command: echo "hello world"`)
	assert.Contains(t, out.String(), "Output found")
	assert.NotContains(t, out.String(), Banner)
}

func TestCheck_Mismatch(t *testing.T) {
	a, out := newAsserter(t)

	got, err := a.Check(context.Background(), Call{
		Command: command.Argv("echo", "hello"),
		Expect:  match.Expect(match.Stdout, "goodbye"),
	}, false)
	require.Error(t, err)
	assert.True(t, IsMismatch(err))

	assert.Equal(t, "hello\n", got.Stdout, "raw outcome is returned on failure")
	assert.Contains(t, out.String(), Banner)

	var me *MismatchError
	require.ErrorAs(t, err, &me)
	assert.False(t, me.OutputOK)
	assert.Contains(t, err.Error(), `expected STDOUT: ["goodbye"]`)
	assert.Contains(t, err.Error(), "    | hello")
}

func TestCheck_ShouldFailInvertsMatch(t *testing.T) {
	a, out := newAsserter(t)
	call := Call{
		Command: shell("echo 'ERROR: SYS_NO_GOOD_REPLICA' >&2; exit 3"),
		Expect:  match.Expect(match.Stdout, "anything"),
	}

	_, err := a.Check(context.Background(), call, true)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Assert FAIL Command:")

	call.Expect = match.Expect(match.Stderr, "SYS_NO_GOOD_REPLICA")
	_, err = a.Check(context.Background(), call, true)
	require.Error(t, err)

	var me *MismatchError
	require.ErrorAs(t, err, &me)
	assert.True(t, me.ShouldFail)
	assert.Contains(t, err.Error(), "expected no match for")
}

func TestCheck_ExitCodeIsIndependent(t *testing.T) {
	a, out := newAsserter(t)
	call := Call{
		Command: shell("echo done; exit 2"),
		Expect:  match.Expect(match.Stdout, "done"),
	}

	t.Run("omitted passes", func(t *testing.T) {
		got, err := a.Check(context.Background(), call, false)
		require.NoError(t, err)
		assert.Equal(t, 2, got.ExitCode)
	})

	t.Run("wrong code fails", func(t *testing.T) {
		c := call
		c.ExitCode = Code(0)
		got, err := a.Check(context.Background(), c, false)
		require.Error(t, err)
		assert.Equal(t, 2, got.ExitCode)
		assert.Contains(t, out.String(), "Checking return code: actual [2] desired [0]")
		assert.Contains(t, out.String(), "RETURN CODE CHECK FAILED")

		var me *MismatchError
		require.ErrorAs(t, err, &me)
		assert.True(t, me.OutputOK)
		assert.Contains(t, err.Error(), "exit code: got 2, want 0")
	})

	t.Run("right code passes", func(t *testing.T) {
		c := call
		c.ExitCode = Code(2)
		_, err := a.Check(context.Background(), c, false)
		require.NoError(t, err)
	})

	t.Run("should fail still checks code", func(t *testing.T) {
		c := call
		c.Expect = match.Expect(match.Stdout, "absent")
		c.ExitCode = Code(0)
		_, err := a.Check(context.Background(), c, true)
		require.Error(t, err)
	})
}

func TestCheck_InvalidExpectation(t *testing.T) {
	a, out := newAsserter(t)

	_, err := a.Check(context.Background(), Call{
		Command: command.Argv("echo"),
		Expect:  match.Expectation{Check: match.Stdout},
	}, false)
	require.ErrorIs(t, err, match.ErrNoPatterns)
	assert.False(t, IsMismatch(err))
	assert.Empty(t, out.String(), "nothing runs for an invalid expectation")
}

func TestCheck_LaunchErrorPropagates(t *testing.T) {
	a, _ := newAsserter(t)

	_, err := a.Check(context.Background(), Call{
		Command: command.Argv("replcheck-no-such-program"),
		Expect:  match.ExpectEmpty(),
	}, false)
	assert.True(t, command.IsLaunchError(err))
}

func TestRun_NeverChecks(t *testing.T) {
	a, out := newAsserter(t)

	got, err := a.Run(context.Background(), shell("echo oops >&2; exit 9"), command.Options{})
	require.NoError(t, err)
	assert.Equal(t, 9, got.ExitCode)
	assert.Equal(t, "oops\n", got.Stderr)
	assert.Empty(t, out.String())
}

func TestSucceeds(t *testing.T) {
	a, _ := newAsserter(t)

	rt := &recordingT{}
	got := a.Succeeds(rt, Call{Command: command.Argv("true"), Expect: match.ExpectEmpty(), ExitCode: Code(0)})
	assert.False(t, rt.failed)
	assert.Equal(t, 0, got.ExitCode)

	rt = &recordingT{}
	got = a.Succeeds(rt, Call{Command: command.Argv("echo", "x"), Expect: match.ExpectEmpty()})
	assert.True(t, rt.failed)
	require.Len(t, rt.errors, 1)
	assert.Contains(t, rt.errors[0], "assertion failed for echo x")
	assert.Equal(t, "x\n", got.Stdout)
}

func TestFails(t *testing.T) {
	a, _ := newAsserter(t)

	rt := &recordingT{}
	a.Fails(rt, Call{Command: command.Argv("echo", "x"), Expect: match.ExpectEmpty()})
	assert.False(t, rt.failed)

	rt = &recordingT{}
	a.Fails(rt, Call{Command: command.Argv("true"), Expect: match.ExpectEmpty()})
	assert.True(t, rt.failed)
}
