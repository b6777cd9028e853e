package match

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Verdict lines written after each evaluation.
const (
	verdictFound            = "Output found"
	verdictNotFound         = "Output not found"
	verdictStderrUnexpected = "Unexpected output on stderr"
	verdictStdoutUnexpected = "Unexpected output on stdout"
	verdictStopped          = "    --> stopping search - expected result not found"
)

// LinePrefix starts every dumped output line.
const LinePrefix = "    | "

// Matcher evaluates expectations and writes diagnostics to Out.
// A nil Out discards them.
type Matcher struct {
	Out io.Writer
}

// New returns a matcher writing diagnostics to out.
func New(out io.Writer) *Matcher {
	return &Matcher{Out: out}
}

// Match reports whether stdout and stderr satisfy exp. An invalid expectation
// is an error and never matches.
func (m *Matcher) Match(stdout, stderr string, exp Expectation) (bool, error) {
	patterns, err := exp.compile()
	if err != nil {
		return false, err
	}

	stdout = norm.NFC.String(stdout)
	stderr = norm.NFC.String(stderr)

	m.printf("Expecting %s\n", exp)
	m.printf("  stdout:\n%s\n", Dump(stdout))
	m.printf("  stderr:\n%s\n", Dump(stderr))

	if !exp.Check.TargetsStderr() && stderr != "" {
		return m.verdict(false, verdictStderrUnexpected), nil
	}

	switch {
	case exp.Check == Empty:
		if stdout != "" {
			return m.verdict(false, verdictStdoutUnexpected), nil
		}
		return m.verdict(true, verdictFound), nil

	case exp.Check == StderrEmptyStdout:
		if stdout != "" {
			return m.verdict(false, verdictStdoutUnexpected), nil
		}
		return m.verdict(allFound(stderr, patterns), ""), nil

	case exp.Check.multiLine():
		lines := splitLines(channel(exp.Check, stdout, stderr))
		for _, re := range patterns {
			if !anyLine(lines, re) {
				m.printf("%s\n", verdictStopped)
				return m.verdict(false, verdictNotFound), nil
			}
		}
		return m.verdict(true, verdictFound), nil

	case exp.Check.lineMode():
		lines := splitLines(channel(exp.Check, stdout, stderr))
		for _, line := range lines {
			if allFound(line, patterns) {
				return m.verdict(true, verdictFound), nil
			}
		}
		return m.verdict(false, verdictNotFound), nil

	default:
		return m.verdict(allFound(channel(exp.Check, stdout, stderr), patterns), ""), nil
	}
}

// Matches is Match for callers holding a known-valid expectation.
func (m *Matcher) Matches(stdout, stderr string, exp Expectation) bool {
	ok, err := m.Match(stdout, stderr, exp)
	return err == nil && ok
}

func (m *Matcher) verdict(ok bool, msg string) bool {
	if msg == "" {
		msg = verdictNotFound
		if ok {
			msg = verdictFound
		}
	}
	m.printf("%s\n\n", msg)
	return ok
}

func (m *Matcher) printf(format string, args ...any) {
	if m == nil || m.Out == nil {
		return
	}
	fmt.Fprintf(m.Out, format, args...)
}

func channel(c CheckType, stdout, stderr string) string {
	if c.TargetsStderr() {
		return stderr
	}
	return stdout
}

func allFound(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if !re.MatchString(text) {
			return false
		}
	}
	return true
}

func anyLine(lines []string, re *regexp.Regexp) bool {
	for _, line := range lines {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// splitLines drops the line terminators and nothing else.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Dump renders text with LinePrefix in front of every line.
func Dump(text string) string {
	lines := splitLines(text)
	if len(lines) == 0 {
		return LinePrefix
	}
	return LinePrefix + strings.Join(lines, "\n"+LinePrefix)
}
