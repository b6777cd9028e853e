package command

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template is a pre-tokenized command whose arguments are text/template
// strings. Each argument expands to exactly one argument.
type Template struct {
	name string
	args []*template.Template
}

// ParseTemplate parses every argument of argv.
func ParseTemplate(name string, argv []string, funcs template.FuncMap) (*Template, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("template %s: empty command", name)
	}
	t := &Template{name: name, args: make([]*template.Template, len(argv))}
	for i, arg := range argv {
		tmpl, err := template.New(fmt.Sprintf("%s[%d]", name, i)).
			Funcs(funcs).
			Option("missingkey=error").
			Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template: %w", err)
		}
		t.args[i] = tmpl
	}
	return t, nil
}

// Expand executes the argument templates against data.
func (t *Template) Expand(data any) (Command, error) {
	args := make([]string, len(t.args))
	for i, tmpl := range t.args {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return Command{}, fmt.Errorf("failed to execute template: %w", err)
		}
		args[i] = buf.String()
	}
	if args[0] == "" {
		return Command{}, fmt.Errorf("template %s: program expands to nothing", t.name)
	}
	return Argv(args...), nil
}

// Name returns the template name given to ParseTemplate.
func (t *Template) Name() string {
	return t.name
}
