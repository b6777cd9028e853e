package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/replcheck/internal/command"
	"github.com/roach88/replcheck/internal/replica"
)

// Divergence is one output channel that did not meet its expectation.
type Divergence struct {
	// Channel is "stdout", "stderr" or "rc".
	Channel string
	Want    string
	Got     string
}

func (d Divergence) String() string {
	return fmt.Sprintf("found %s:[%s], expected %s", d.Channel, strings.TrimRight(d.Got, "\n"), d.Want)
}

// OutputMismatchError reports output that differs from the scenario's
// declared output.
type OutputMismatchError struct {
	Label       string
	Start       replica.Layout
	Divergences []Divergence
}

// Error implements the error interface.
func (e *OutputMismatchError) Error() string {
	var buf strings.Builder
	channels := make([]string, len(e.Divergences))
	for i, d := range e.Divergences {
		channels[i] = d.Channel
	}
	fmt.Fprintf(&buf, "%s: output mismatch on %s for scenario %s",
		e.Label, strings.Join(channels, ", "), e.Start)
	for _, d := range e.Divergences {
		buf.WriteString("\n" + command.Indent("", d.String()))
	}
	return buf.String()
}

// StateMismatchError reports a final replica layout that differs from the
// scenario's end layout.
type StateMismatchError struct {
	Label string
	Start replica.Layout
	Want  replica.Layout
	Got   replica.Layout
}

// Error implements the error interface.
func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("%s: replica state mismatch for scenario %s\n  want: %s\n  got:  %s\n  diff (-want +got):\n%s",
		e.Label, e.Start, e.Want, e.Got, command.Indent("    ", e.Diff()))
}

// Diff renders the layouts as symbol maps and diffs them.
func (e *StateMismatchError) Diff() string {
	return cmp.Diff(symbols(e.Want), symbols(e.Got))
}

// Locations returns the keys whose status differs, sorted.
func (e *StateMismatchError) Locations() []string {
	var keys []string
	for _, k := range e.Want.Keys() {
		if e.Got[k] != e.Want[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

func symbols(l replica.Layout) map[string]string {
	out := make(map[string]string, len(l))
	for k, st := range l {
		out[k] = st.Symbol()
	}
	return out
}

// IsOutputMismatch reports whether err is or wraps an OutputMismatchError.
func IsOutputMismatch(err error) bool {
	var oe *OutputMismatchError
	return errors.As(err, &oe)
}

// IsStateMismatch reports whether err is or wraps a StateMismatchError.
func IsStateMismatch(err error) bool {
	var se *StateMismatchError
	return errors.As(err, &se)
}
