package session

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/roach88/replcheck/internal/replica"
)

// Backend selects the default template set.
type Backend string

const (
	BackendIcommands Backend = "icommands"
	BackendSimcat    Backend = "simcat"
)

// DefaultPayloadSize is the size of the file uploaded by Put.
const DefaultPayloadSize = 1024

// Config describes how to reach the storage system.
type Config struct {
	Backend Backend `yaml:"backend"`

	// ScratchRoot is the collection the per-session scratch collection is
	// made in.
	ScratchRoot string `yaml:"scratch_root"`

	// Locations maps scenario location keys to resource names.
	Locations map[string]string `yaml:"locations"`

	// Environment, when set, is written as the client environment JSON file
	// and passed via IRODS_ENVIRONMENT_FILE.
	Environment map[string]any `yaml:"environment"`

	// Env is added to every client call's environment.
	Env map[string]string `yaml:"env"`

	// Program is the argv prefix of the simcat backend.
	Program []string `yaml:"program"`

	// SimcatDB is the testbed catalog file, passed as SIMCAT_DB.
	SimcatDB string `yaml:"simcat_db"`

	// Templates override individual actions of the backend's set.
	Templates Templates `yaml:"templates"`

	ListPattern string        `yaml:"list_pattern"`
	PayloadSize int           `yaml:"payload_size"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Default returns the icommands configuration.
func Default() Config {
	return Config{
		Backend:     BackendIcommands,
		ScratchRoot: "/tempZone/home/rods",
		ListPattern: DefaultListPattern,
		PayloadSize: DefaultPayloadSize,
	}
}

// WithDefaults fills unset fields from Default.
func (c Config) WithDefaults() Config {
	d := Default()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.ScratchRoot == "" {
		c.ScratchRoot = d.ScratchRoot
	}
	if c.ListPattern == "" {
		c.ListPattern = d.ListPattern
	}
	if c.PayloadSize == 0 {
		c.PayloadSize = d.PayloadSize
	}
	return c
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendIcommands:
	case BackendSimcat:
		if c.SimcatDB == "" {
			errs = append(errs, errors.New("simcat backend needs simcat_db"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q: must be %q or %q", c.Backend, BackendIcommands, BackendSimcat))
	}
	if !strings.HasPrefix(c.ScratchRoot, "/") || path.Clean(c.ScratchRoot) == "/" {
		errs = append(errs, fmt.Errorf("scratch_root %q must be an absolute collection below the root", c.ScratchRoot))
	}
	if len(c.Locations) == 0 {
		errs = append(errs, errors.New("no locations configured"))
	}
	for key, resc := range c.Locations {
		if key == "" || resc == "" {
			errs = append(errs, fmt.Errorf("location %q: key and resource must be non-empty", key))
		}
	}
	if _, err := replica.NewListing(c.ListPattern); err != nil {
		errs = append(errs, err)
	}
	if c.PayloadSize < 0 {
		errs = append(errs, fmt.Errorf("payload_size %d is negative", c.PayloadSize))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s is negative", c.Timeout))
	}
	return errors.Join(errs...)
}

// templates returns the backend's set with overrides applied.
func (c Config) templates() Templates {
	base := IcommandsTemplates()
	if c.Backend == BackendSimcat {
		base = SimcatTemplates(c.Program...)
	}
	return base.Merge(c.Templates)
}
