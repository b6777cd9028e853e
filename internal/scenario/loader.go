package scenario

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/replcheck/internal/replica"
)

//go:embed schema.cue
var schemaCUE string

// LoadMatrix reads a matrix from a .yaml, .yml or .cue file and validates it.
func LoadMatrix(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix file: %w", err)
	}

	var m *Matrix
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		m, err = ParseYAML(data)
	case ".cue":
		m, err = ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported matrix file %s: want .yaml, .yml or .cue", path)
	}
	if err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matrix: %w", err)
	}
	return m, nil
}

// ParseYAML decodes a matrix, rejecting unknown fields.
func ParseYAML(data []byte) (*Matrix, error) {
	var m Matrix
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &m, nil
}

// ParseCUE unifies the file with the #Matrix schema, requires a concrete
// result and reads the matrix out of it.
func ParseCUE(data []byte, filename string) (*Matrix, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("building matrix schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Matrix")).Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("matrix does not satisfy schema: %w", err)
	}
	return decodeMatrix(v)
}

func decodeMatrix(v cue.Value) (*Matrix, error) {
	m := &Matrix{}
	var err error

	if m.Name, err = lookupString(v, "name"); err != nil {
		return nil, err
	}
	if m.Description, err = lookupString(v, "description"); err != nil {
		return nil, err
	}
	if m.Object, err = lookupString(v, "object"); err != nil {
		return nil, err
	}

	ops, err := v.LookupPath(cue.ParsePath("operation")).List()
	if err != nil {
		return nil, fmt.Errorf("operation: %w", err)
	}
	for ops.Next() {
		arg, err := ops.Value().String()
		if err != nil {
			return nil, fmt.Errorf("operation: %w", err)
		}
		m.Operation = append(m.Operation, arg)
	}

	scenarios, err := v.LookupPath(cue.ParsePath("scenarios")).List()
	if err != nil {
		return nil, fmt.Errorf("scenarios: %w", err)
	}
	for i := 0; scenarios.Next(); i++ {
		sc, err := decodeScenario(scenarios.Value())
		if err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i, err)
		}
		m.Scenarios = append(m.Scenarios, sc)
	}
	return m, nil
}

func decodeScenario(v cue.Value) (Scenario, error) {
	var sc Scenario
	var err error

	if sc.Name, err = lookupString(v, "name"); err != nil {
		return sc, err
	}
	if sc.Start, err = decodeLayout(v.LookupPath(cue.ParsePath("start"))); err != nil {
		return sc, fmt.Errorf("start: %w", err)
	}
	if sc.End, err = decodeLayout(v.LookupPath(cue.ParsePath("end"))); err != nil {
		return sc, fmt.Errorf("end: %w", err)
	}

	if sc.Output.Out, err = lookupNullableString(v, "output.out"); err != nil {
		return sc, err
	}
	if sc.Output.Err, err = lookupNullableString(v, "output.err"); err != nil {
		return sc, err
	}
	rc := resolve(v.LookupPath(cue.ParsePath("output.rc")))
	if rc.Exists() && rc.Kind() != cue.NullKind {
		n, err := rc.Int64()
		if err != nil {
			return sc, fmt.Errorf("output.rc: %w", err)
		}
		code := int(n)
		sc.Output.RC = &code
	}
	return sc, nil
}

func decodeLayout(v cue.Value) (replica.Layout, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, err
	}
	layout := make(replica.Layout)
	for iter.Next() {
		symbol, err := iter.Value().String()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", iter.Label(), err)
		}
		status, err := replica.ParseSymbol(symbol)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", iter.Label(), err)
		}
		layout[iter.Label()] = status
	}
	return layout, nil
}

func resolve(v cue.Value) cue.Value {
	if d, ok := v.Default(); ok {
		return d
	}
	return v
}

func lookupString(v cue.Value, path string) (string, error) {
	f := resolve(v.LookupPath(cue.ParsePath(path)))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func lookupNullableString(v cue.Value, path string) (*string, error) {
	f := resolve(v.LookupPath(cue.ParsePath(path)))
	if !f.Exists() || f.Kind() == cue.NullKind {
		return nil, nil
	}
	s, err := f.String()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}
