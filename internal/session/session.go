package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"

	"github.com/roach88/replcheck/internal/assertion"
	"github.com/roach88/replcheck/internal/command"
	"github.com/roach88/replcheck/internal/match"
	"github.com/roach88/replcheck/internal/replica"
)

// Environment variables set on every client call.
const (
	EnvironmentFileVar    = "IRODS_ENVIRONMENT_FILE"
	AuthenticationFileVar = "IRODS_AUTHENTICATION_FILE"
	SimcatDBVar           = "SIMCAT_DB"
)

const (
	environmentFile    = "irods_environment.json"
	authenticationFile = ".irodsA"
	payloadFile        = "payload"
	scratchPrefix      = "replcheck_"
)

// Client drives the storage system's command-line clients. It owns a private
// scratch collection and a temporary directory holding the client
// environment and the upload payload.
type Client struct {
	cfg       Config
	asserter  *assertion.Asserter
	logger    *slog.Logger
	templates *compiled
	listing   *replica.Listing

	dir     string
	payload string
	scratch string
	env     map[string]string
}

// Open prepares the client environment and creates the scratch collection.
func Open(ctx context.Context, cfg Config, asserter *assertion.Asserter, ids IDGenerator, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	templates, err := cfg.templates().compile()
	if err != nil {
		return nil, fmt.Errorf("invalid client templates: %w", err)
	}
	listing, err := replica.NewListing(cfg.ListPattern)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		asserter:  asserter,
		logger:    logger,
		templates: templates,
		listing:   listing,
		env:       maps.Clone(cfg.Env),
	}
	if c.env == nil {
		c.env = make(map[string]string)
	}

	if c.dir, err = os.MkdirTemp("", "replcheck-"); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	if err := c.prepare(); err != nil {
		os.RemoveAll(c.dir)
		return nil, err
	}

	c.scratch = path.Join(cfg.ScratchRoot, scratchPrefix+ids.Generate())
	if err := c.MakeCollection(ctx, c.scratch); err != nil {
		os.RemoveAll(c.dir)
		return nil, fmt.Errorf("create scratch collection: %w", err)
	}

	logger.Info("session opened",
		"backend", string(cfg.Backend),
		"scratch", c.scratch,
		"locations", len(cfg.Locations),
	)
	return c, nil
}

func (c *Client) prepare() error {
	if c.cfg.SimcatDB != "" {
		db, err := filepath.Abs(c.cfg.SimcatDB)
		if err != nil {
			return fmt.Errorf("resolve simcat_db: %w", err)
		}
		c.env[SimcatDBVar] = db
	}

	if len(c.cfg.Environment) > 0 {
		data, err := json.MarshalIndent(c.cfg.Environment, "", "    ")
		if err != nil {
			return fmt.Errorf("encode client environment: %w", err)
		}
		envFile := filepath.Join(c.dir, environmentFile)
		if err := os.WriteFile(envFile, data, 0o600); err != nil {
			return fmt.Errorf("write client environment: %w", err)
		}
		c.env[EnvironmentFileVar] = envFile
		c.env[AuthenticationFileVar] = filepath.Join(c.dir, authenticationFile)
	}

	c.payload = filepath.Join(c.dir, payloadFile)
	content := bytes.Repeat([]byte("replcheck\n"), c.cfg.PayloadSize/10+1)[:c.cfg.PayloadSize]
	if err := os.WriteFile(c.payload, content, 0o600); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// Close removes the scratch collection and the session directory.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if c.scratch != "" {
		if err := c.Remove(ctx, c.scratch); err != nil {
			c.logger.Warn("failed to remove scratch collection", "scratch", c.scratch, "error", err)
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(c.dir); err != nil {
		errs = append(errs, fmt.Errorf("remove session directory: %w", err))
	}
	return errors.Join(errs...)
}

// Dir is the session's private local directory.
func (c *Client) Dir() string {
	return c.dir
}

// ScratchCollection implements scenario.Session.
func (c *Client) ScratchCollection() string {
	return c.scratch
}

// Resource implements scenario.Session.
func (c *Client) Resource(key string) (string, error) {
	resc, ok := c.cfg.Locations[key]
	if !ok {
		return "", fmt.Errorf("unknown location key %q", key)
	}
	return resc, nil
}

// Options implements scenario.Session. Every call made by the session uses
// them too.
func (c *Client) Options() command.Options {
	return command.Options{
		Env:     maps.Clone(c.env),
		Timeout: c.cfg.Timeout,
	}
}

// MakeCollection creates p and any missing parents.
func (c *Client) MakeCollection(ctx context.Context, p string) error {
	return c.check(ctx, c.templates.mkdir, Action{Path: p})
}

// Put uploads the payload to p with its first replica at key.
func (c *Client) Put(ctx context.Context, p, key string) error {
	resc, err := c.Resource(key)
	if err != nil {
		return err
	}
	return c.check(ctx, c.templates.put, Action{Path: p, Resource: resc, Local: c.payload})
}

// Replicate adds a replica of p at key.
func (c *Client) Replicate(ctx context.Context, p, key string) error {
	resc, err := c.Resource(key)
	if err != nil {
		return err
	}
	return c.check(ctx, c.templates.replicate, Action{Path: p, Resource: resc})
}

// SetStatus forces the catalog status of the replica of p at key.
func (c *Client) SetStatus(ctx context.Context, p, key string, status replica.Status) error {
	code, ok := status.Code()
	if !ok {
		return fmt.Errorf("replica status %s cannot be set", status)
	}
	resc, err := c.Resource(key)
	if err != nil {
		return err
	}
	return c.check(ctx, c.templates.setStatus, Action{Path: p, Resource: resc, Code: code})
}

// Replicas lists the replicas of p. A missing object has none.
func (c *Client) Replicas(ctx context.Context, p string) ([]replica.Replica, error) {
	exists, err := c.Exists(ctx, p)
	if err != nil || !exists {
		return nil, err
	}
	out, err := c.run(ctx, c.templates.list, Action{Path: p})
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("list %s: exit code %d: %s", p, out.ExitCode, out.Stderr)
	}
	return c.listing.Parse(out.Stdout), nil
}

// Exists reports whether p names an object or collection.
func (c *Client) Exists(ctx context.Context, p string) (bool, error) {
	out, err := c.run(ctx, c.templates.stat, Action{Path: p})
	if err != nil {
		return false, err
	}
	return out.ExitCode == 0, nil
}

// Remove deletes p and everything under it.
func (c *Client) Remove(ctx context.Context, p string) error {
	return c.check(ctx, c.templates.remove, Action{Path: p})
}

func (c *Client) run(ctx context.Context, tmpl *command.Template, action Action) (assertion.Outcome, error) {
	cmd, err := tmpl.Expand(action)
	if err != nil {
		return assertion.Outcome{}, fmt.Errorf("%s: %w", tmpl.Name(), err)
	}
	return c.asserter.Run(ctx, cmd, c.Options())
}

// check runs a setup action that must succeed silently.
func (c *Client) check(ctx context.Context, tmpl *command.Template, action Action) error {
	cmd, err := tmpl.Expand(action)
	if err != nil {
		return fmt.Errorf("%s: %w", tmpl.Name(), err)
	}
	_, err = c.asserter.Check(ctx, assertion.Call{
		Command:  cmd,
		Expect:   match.ExpectEmpty(),
		ExitCode: assertion.Code(0),
		Options:  c.Options(),
	}, false)
	if err != nil {
		return fmt.Errorf("%s %s: %w", tmpl.Name(), action.Path, err)
	}
	return nil
}
