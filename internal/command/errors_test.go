package command

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunchError_Message(t *testing.T) {
	err := &LaunchError{Program: "imissing", Command: "imissing -l", Err: os.ErrNotExist}

	msg := err.Error()
	assert.Contains(t, msg, "imissing -l")
	assert.Contains(t, msg, `could not start "imissing"`)
	assert.Contains(t, msg, os.ErrNotExist.Error())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTimeoutError_Message(t *testing.T) {
	err := &TimeoutError{Command: "sleep 10", Timeout: 2 * time.Second}
	assert.Equal(t, "the call sleep 10 did not complete within 2s", err.Error())
}

func TestNonZeroExitError_Message(t *testing.T) {
	err := &NonZeroExitError{
		Command:  "irepl -R b f",
		Options:  map[string]string{"env": "HIDDEN", "dir": "/tmp"},
		ExitCode: 3,
		Stdout:   "",
		Stderr:   "remote error\nSYS_NO_GOOD_REPLICA\n",
	}

	want := "call to open process with irepl -R b f returned an error:\n" +
		"  options:\n" +
		"    dir: /tmp\n" +
		"    env: HIDDEN\n" +
		"  exit code: 3\n" +
		"  stdout:\n" +
		"    \n" +
		"  stderr:\n" +
		"    remote error\n" +
		"    SYS_NO_GOOD_REPLICA"
	assert.Equal(t, want, err.Error())
}

func TestErrorHelpers(t *testing.T) {
	launch := fmt.Errorf("setup: %w", &LaunchError{Program: "x", Err: os.ErrPermission})
	timeout := fmt.Errorf("setup: %w", &TimeoutError{Command: "x", Timeout: time.Second})
	exit := fmt.Errorf("setup: %w", &NonZeroExitError{Command: "x", ExitCode: 4})

	assert.True(t, IsLaunchError(launch))
	assert.False(t, IsLaunchError(timeout))
	assert.True(t, IsTimeout(timeout))
	assert.False(t, IsTimeout(exit))

	code, ok := ExitCodeOf(exit)
	require.True(t, ok)
	assert.Equal(t, 4, code)

	_, ok = ExitCodeOf(launch)
	assert.False(t, ok)
}
