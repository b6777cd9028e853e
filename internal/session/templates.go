package session

import (
	"errors"
	"fmt"

	"github.com/roach88/replcheck/internal/command"
)

// DefaultListPattern matches one replica line of a long listing:
//
//	rods              0 demoResc           42 2026-03-14.09:26 & foo
const DefaultListPattern = `^\s*\S+\s+(?P<number>\d+)\s+(?P<resource>\S+)\s+\d+\s+\S+\s+(?P<status>\S)\s+\S+$`

// Templates are the argv templates the session runs for each action. Every
// argument is a text/template over Action.
type Templates struct {
	MakeCollection []string `yaml:"mkdir"`
	Put            []string `yaml:"put"`
	Replicate      []string `yaml:"replicate"`
	SetStatus      []string `yaml:"set_status"`
	List           []string `yaml:"list"`
	Stat           []string `yaml:"stat"`
	Remove         []string `yaml:"remove"`
}

// Action is the data a template expands against.
type Action struct {
	// Path is the logical path acted on.
	Path string

	// Resource is the target resource, when the action has one.
	Resource string

	// Local is the local file uploaded by Put.
	Local string

	// Code is the catalog status code for SetStatus.
	Code int
}

// IcommandsTemplates drive the iRODS icommands.
func IcommandsTemplates() Templates {
	return Templates{
		MakeCollection: []string{"imkdir", "-p", "{{.Path}}"},
		Put:            []string{"iput", "-R", "{{.Resource}}", "{{.Local}}", "{{.Path}}"},
		Replicate:      []string{"irepl", "-R", "{{.Resource}}", "{{.Path}}"},
		SetStatus: []string{
			"iadmin", "modrepl",
			"logical_path", "{{.Path}}",
			"resource_hierarchy", "{{.Resource}}",
			"DATA_REPL_STATUS", "{{.Code}}",
		},
		List:   []string{"ils", "-l", "{{.Path}}"},
		Stat:   []string{"ils", "{{.Path}}"},
		Remove: []string{"irm", "-rf", "{{.Path}}"},
	}
}

// SimcatTemplates drive the testbed catalog through "<program...> simcat".
func SimcatTemplates(program ...string) Templates {
	if len(program) == 0 {
		program = []string{"replcheck"}
	}
	sim := func(args ...string) []string {
		argv := append([]string(nil), program...)
		argv = append(argv, "simcat")
		return append(argv, args...)
	}
	return Templates{
		MakeCollection: sim("mkdir", "-p", "{{.Path}}"),
		Put:            sim("put", "-R", "{{.Resource}}", "{{.Local}}", "{{.Path}}"),
		Replicate:      sim("repl", "-R", "{{.Resource}}", "{{.Path}}"),
		SetStatus:      sim("modrepl", "-R", "{{.Resource}}", "{{.Path}}", "{{.Code}}"),
		List:           sim("ls", "-l", "{{.Path}}"),
		Stat:           sim("ls", "{{.Path}}"),
		Remove:         sim("rm", "-r", "{{.Path}}"),
	}
}

// Merge returns t with every template set in override replacing its own.
func (t Templates) Merge(override Templates) Templates {
	pick := func(base, o []string) []string {
		if len(o) > 0 {
			return o
		}
		return base
	}
	return Templates{
		MakeCollection: pick(t.MakeCollection, override.MakeCollection),
		Put:            pick(t.Put, override.Put),
		Replicate:      pick(t.Replicate, override.Replicate),
		SetStatus:      pick(t.SetStatus, override.SetStatus),
		List:           pick(t.List, override.List),
		Stat:           pick(t.Stat, override.Stat),
		Remove:         pick(t.Remove, override.Remove),
	}
}

type compiled struct {
	mkdir, put, replicate, setStatus, list, stat, remove *command.Template
}

func (t Templates) compile() (*compiled, error) {
	var errs []error
	parse := func(name string, argv []string) *command.Template {
		tmpl, err := command.ParseTemplate(name, argv, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return tmpl
	}
	c := &compiled{
		mkdir:     parse("mkdir", t.MakeCollection),
		put:       parse("put", t.Put),
		replicate: parse("replicate", t.Replicate),
		setStatus: parse("set_status", t.SetStatus),
		list:      parse("list", t.List),
		stat:      parse("stat", t.Stat),
		remove:    parse("remove", t.Remove),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}
