package match

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CheckType selects the channel and the way patterns are applied to it.
type CheckType int

const (
	// Empty requires stdout and stderr to be empty.
	Empty CheckType = iota

	// Stdout searches the whole stdout text for every pattern.
	Stdout

	// Stderr searches the whole stderr text for every pattern.
	Stderr

	// StdoutSingleLine requires one stdout line that matches every pattern.
	StdoutSingleLine

	// StderrSingleLine requires one stderr line that matches every pattern.
	StderrSingleLine

	// StdoutMultiLine requires each pattern to match some stdout line.
	StdoutMultiLine

	// StderrMultiLine requires each pattern to match some stderr line.
	StderrMultiLine

	// StderrEmptyStdout searches the whole stderr text and requires stdout
	// to be empty.
	StderrEmptyStdout
)

var checkTypeNames = map[CheckType]string{
	Empty:             "EMPTY",
	Stdout:            "STDOUT",
	Stderr:            "STDERR",
	StdoutSingleLine:  "STDOUT_SINGLELINE",
	StderrSingleLine:  "STDERR_SINGLELINE",
	StdoutMultiLine:   "STDOUT_MULTILINE",
	StderrMultiLine:   "STDERR_MULTILINE",
	StderrEmptyStdout: "STDERR_EMPTY_STDOUT",
}

// String returns the upper-case name used in diagnostics and scenario files.
func (c CheckType) String() string {
	if name, ok := checkTypeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CheckType(%d)", int(c))
}

// ParseCheckType accepts the names returned by String, case-insensitively.
func ParseCheckType(s string) (CheckType, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for c, name := range checkTypeNames {
		if name == want {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown check type %q", s)
}

// UnmarshalText lets check types appear as strings in YAML and JSON.
func (c *CheckType) UnmarshalText(text []byte) error {
	parsed, err := ParseCheckType(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText renders the check type name.
func (c CheckType) MarshalText() ([]byte, error) {
	if _, ok := checkTypeNames[c]; !ok {
		return nil, fmt.Errorf("unknown check type %d", int(c))
	}
	return []byte(c.String()), nil
}

// TargetsStderr reports whether stderr is the channel under test.
func (c CheckType) TargetsStderr() bool {
	switch c {
	case Stderr, StderrSingleLine, StderrMultiLine, StderrEmptyStdout:
		return true
	}
	return false
}

func (c CheckType) lineMode() bool {
	switch c {
	case StdoutSingleLine, StderrSingleLine, StdoutMultiLine, StderrMultiLine:
		return true
	}
	return false
}

func (c CheckType) multiLine() bool {
	return c == StdoutMultiLine || c == StderrMultiLine
}

// Expectation describes what a command's output must look like.
type Expectation struct {
	Check CheckType `yaml:"check" json:"check"`

	// Patterns are literal substrings unless Regex is set.
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// Regex treats Patterns as regular expressions.
	Regex bool `yaml:"regex,omitempty" json:"regex,omitempty"`
}

// ExpectEmpty expects no output on either channel.
func ExpectEmpty() Expectation {
	return Expectation{Check: Empty}
}

// Expect builds a literal expectation.
func Expect(check CheckType, patterns ...string) Expectation {
	return Expectation{Check: check, Patterns: patterns}
}

// ExpectRegex builds a regular-expression expectation.
func ExpectRegex(check CheckType, patterns ...string) Expectation {
	return Expectation{Check: check, Patterns: patterns, Regex: true}
}

// ErrNoPatterns is returned for a non-EMPTY expectation without patterns.
var ErrNoPatterns = errors.New("expectation needs at least one pattern")

// Validate rejects expectations that cannot be evaluated.
func (e Expectation) Validate() error {
	_, err := e.compile()
	return err
}

func (e Expectation) compile() ([]*regexp.Regexp, error) {
	if _, ok := checkTypeNames[e.Check]; !ok {
		return nil, fmt.Errorf("unknown check type %d", int(e.Check))
	}
	if e.Check == Empty {
		return nil, nil
	}
	if len(e.Patterns) == 0 {
		return nil, fmt.Errorf("%s: %w", e.Check, ErrNoPatterns)
	}
	compiled := make([]*regexp.Regexp, len(e.Patterns))
	for i, p := range e.Patterns {
		if !e.Regex {
			p = regexp.QuoteMeta(norm.NFC.String(p))
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: pattern %d: %w", e.Check, i, err)
		}
		compiled[i] = re
	}
	return compiled, nil
}

// String is the expectation line of the diagnostic dump.
func (e Expectation) String() string {
	kind := ""
	if e.Regex {
		kind = "regex "
	}
	quoted := make([]string, len(e.Patterns))
	for i, p := range e.Patterns {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return fmt.Sprintf("%s: %s[%s]", e.Check, kind, strings.Join(quoted, ", "))
}
