package scenario

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/replcheck/internal/command"
	"github.com/roach88/replcheck/internal/replica"
)

// DefaultObjectName names the object created for each scenario.
const DefaultObjectName = "foo"

// Output is the expected result of the operation. A nil field means the
// channel must be empty (or the exit code zero); a set field means the
// channel must contain the text (or the exit code must be equal).
type Output struct {
	Out *string `yaml:"out" json:"out"`
	Err *string `yaml:"err" json:"err"`
	RC  *int    `yaml:"rc" json:"rc"`
}

// Scenario is one row of a matrix.
type Scenario struct {
	// Name is optional; Label falls back to the matrix name and index.
	Name   string         `yaml:"name,omitempty" json:"name,omitempty"`
	Start  replica.Layout `yaml:"start" json:"start"`
	End    replica.Layout `yaml:"end" json:"end"`
	Output Output         `yaml:"output" json:"output"`
}

// String renders the scenario the way failure reports show it.
func (s Scenario) String() string {
	out := func(p *string) string {
		if p == nil {
			return "None"
		}
		return fmt.Sprintf("%q", *p)
	}
	rc := "None"
	if s.Output.RC != nil {
		rc = fmt.Sprintf("%d", *s.Output.RC)
	}
	return fmt.Sprintf("start: %s, end: %s, output: {out: %s, err: %s, rc: %s}",
		s.Start, s.End, out(s.Output.Out), out(s.Output.Err), rc)
}

// Matrix is an ordered set of scenarios sharing one operation.
type Matrix struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Object names the data object. Empty means DefaultObjectName.
	Object string `yaml:"object,omitempty" json:"object,omitempty"`

	// Operation is the command under test; each argument is a template
	// over OperationData.
	Operation []string `yaml:"operation" json:"operation"`

	Scenarios []Scenario `yaml:"scenarios" json:"scenarios"`
}

// OperationData is what operation templates can reference.
type OperationData struct {
	// Path is the data object's logical path.
	Path string

	// Collection is the scenario's scratch collection.
	Collection string

	// Object is the data object's name.
	Object string

	// Locations maps location keys to resource names.
	Locations map[string]string
}

var matrixNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ObjectName returns the data object name.
func (m *Matrix) ObjectName() string {
	if m.Object == "" {
		return DefaultObjectName
	}
	return m.Object
}

// Label identifies the scenario at index in reports and sub-test names.
func (m *Matrix) Label(index int) string {
	if index >= 0 && index < len(m.Scenarios) && m.Scenarios[index].Name != "" {
		return m.Scenarios[index].Name
	}
	return fmt.Sprintf("%s_%d", m.Name, index)
}

// Validate checks the matrix before anything is run.
func (m *Matrix) Validate() error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("missing required field: name"))
	} else if !matrixNamePattern.MatchString(m.Name) {
		errs = append(errs, fmt.Errorf("name %q may only contain letters, digits, '_', '.' and '-'", m.Name))
	}
	if strings.Contains(m.Object, "/") {
		errs = append(errs, fmt.Errorf("object %q must not contain '/'", m.Object))
	}
	if len(m.Operation) == 0 {
		errs = append(errs, errors.New("missing required field: operation"))
	} else if _, err := m.operationTemplate(nil); err != nil {
		errs = append(errs, err)
	}
	if len(m.Scenarios) == 0 {
		errs = append(errs, errors.New("matrix has no scenarios"))
	}
	for i, sc := range m.Scenarios {
		if err := sc.validate(); err != nil {
			errs = append(errs, fmt.Errorf("scenario %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (s Scenario) validate() error {
	if len(s.Start) == 0 {
		return errors.New("start layout is empty")
	}
	if len(s.End) == 0 {
		return errors.New("end layout is empty")
	}
	for _, layout := range []replica.Layout{s.Start, s.End} {
		for _, key := range layout.Keys() {
			if layout[key] == replica.Unknown {
				return fmt.Errorf("location %q has no status", key)
			}
		}
	}
	return nil
}

func (m *Matrix) operationTemplate(resource func(string) (string, error)) (*command.Template, error) {
	funcs := map[string]any{
		"resource": func(key string) (string, error) {
			if resource == nil {
				return key, nil
			}
			return resource(key)
		},
	}
	return command.ParseTemplate(m.Name, m.Operation, funcs)
}

// Filter keeps the scenarios whose label matches pattern. An empty pattern
// keeps everything. Indices in the result are renumbered, so labels of
// unnamed scenarios are fixed first.
func (m *Matrix) Filter(pattern string) (*Matrix, error) {
	if pattern == "" {
		return m, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	filtered := *m
	filtered.Scenarios = nil
	for i, sc := range m.Scenarios {
		label := m.Label(i)
		if !re.MatchString(label) {
			continue
		}
		sc.Name = label
		filtered.Scenarios = append(filtered.Scenarios, sc)
	}
	return &filtered, nil
}
