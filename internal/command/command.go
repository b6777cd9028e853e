package command

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

// Command is one invocation of an external program.
// Exactly one of Args or Line is set.
type Command struct {
	// Args is a pre-tokenized argument list. It is never re-split.
	Args []string

	// Line is a single command string. It is split with shell-word rules
	// unless Options.Shell is set, in which case it goes to the shell verbatim.
	Line string
}

// Argv returns a pre-tokenized command.
func Argv(args ...string) Command {
	return Command{Args: append([]string(nil), args...)}
}

// Line returns a single-string command.
func Line(line string) Command {
	return Command{Line: line}
}

// IsZero reports whether the command carries nothing to run.
func (c Command) IsZero() bool {
	return len(c.Args) == 0 && strings.TrimSpace(c.Line) == ""
}

// Tokens returns the argument vector for a non-shell invocation.
// Quoting follows conventional shell-word splitting; shell operators such as
// ';' or '|' outside quotes are rejected because they need a real shell.
func (c Command) Tokens() ([]string, error) {
	if len(c.Args) > 0 {
		return append([]string(nil), c.Args...), nil
	}
	p := shellwords.NewParser()
	args, err := p.Parse(c.Line)
	if err != nil {
		return nil, fmt.Errorf("split command %q: %w", c.Line, err)
	}
	if p.Position != -1 {
		return nil, fmt.Errorf("split command %q: shell operator at offset %d requires shell mode", c.Line, p.Position)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("split command %q: no program name", c.Line)
	}
	return args, nil
}

// String renders the command the way it is logged and reported. Arguments
// are quoted for sh, so the result of an Argv command is also what Shell
// mode executes.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Line
	}
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = shellQuote(a)
	}
	return strings.Join(parts, " ")
}

// Program returns the first token, or the raw line if it cannot be split.
func (c Command) Program() string {
	args, err := c.Tokens()
	if err != nil || len(args) == 0 {
		return c.Line
	}
	return args[0]
}

// shellQuote wraps a in single quotes when sh would otherwise split,
// expand or redirect it.
func shellQuote(a string) string {
	if a == "" {
		return "''"
	}
	if !strings.ContainsAny(a, " \t\n'\"\\;&|<>$`*?[]{}()~#!") {
		return a
	}
	return "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
}

// Options configures a single invocation.
type Options struct {
	// Dir is the working directory. Empty means the harness's own.
	Dir string

	// Env is applied on top of the harness environment for this call only.
	// It is never logged; logs show a HIDDEN marker instead.
	Env map[string]string

	// Shell passes the command line to /bin/sh -c without tokenizing it.
	Shell bool

	// Input is written to stdin in full before waiting for exit.
	Input string

	// Timeout bounds the call. Zero means wait for exit.
	Timeout time.Duration

	// Stdout and Stderr, when set, receive the stream instead of the capture
	// buffer; the corresponding Result field is then empty.
	Stdout io.Writer
	Stderr io.Writer
}

// hidden replaces secret values in logs and error reports.
const hidden = "HIDDEN"

// Redacted is the non-secret view of the options used in logs and errors.
func (o Options) Redacted() map[string]string {
	view := make(map[string]string)
	if o.Dir != "" {
		view["dir"] = o.Dir
	}
	if len(o.Env) > 0 {
		view["env"] = hidden
	}
	if o.Shell {
		view["shell"] = "true"
	}
	if o.Input != "" {
		view["input"] = fmt.Sprintf("%d bytes", len(o.Input))
	}
	if o.Timeout > 0 {
		view["timeout"] = o.Timeout.String()
	}
	return view
}

// environ returns base with the overlay applied, overlay keys winning.
func (o Options) environ(base []string) []string {
	if len(o.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(o.Env))
	for k := range o.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(keys))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, overridden := o.Env[name]; overridden {
			continue
		}
		env = append(env, kv)
	}
	for _, k := range keys {
		env = append(env, k+"="+o.Env[k])
	}
	return env
}

// ExitTimedOut is the exit code recorded for a call that hit its deadline.
const ExitTimedOut = -1

// Result is what one invocation produced.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Indent prefixes every line of each text with the indentation, two spaces
// by default, joining the texts with newlines.
func Indent(indentation string, text ...string) string {
	if indentation == "" {
		indentation = "  "
	}
	blocks := make([]string, len(text))
	for i, t := range text {
		lines := strings.Split(strings.TrimRight(t, "\n"), "\n")
		blocks[i] = indentation + strings.Join(lines, "\n"+indentation)
	}
	return strings.Join(blocks, "\n")
}
