// Package command spawns the client programs under test and captures what
// they print.
//
// A Command is either a pre-tokenized argument list or a single line that is
// split with shell-word rules. Options carries everything else a call needs:
// working directory, an environment overlay, raw shell mode, stdin text and an
// optional timeout. The overlay is applied on top of the harness environment
// for one invocation only and is never written to the log.
//
// # Failure Modes
//
//   - LaunchError: the program could not be started (missing, not executable).
//   - TimeoutError: the deadline passed; the process group was terminated and
//     then killed, and whatever it printed is discarded.
//   - NonZeroExitError: RunChecked saw a non-zero exit code.
//
// None of these are retried. Callers that want another attempt call again.
package command
