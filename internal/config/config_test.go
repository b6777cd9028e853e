package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/replcheck/internal/session"
)

const simcatConfig = `
log:
  level: debug
  file: /tmp/replcheck.log
timeout: 30s
session:
  backend: simcat
  simcat_db: testbed.db
  scratch_root: /tempZone/home/alice
  locations:
    a: ufs0
    b: ufs1
  templates:
    stat: [replcheck, simcat, ls, "{{.Path}}"]
`

func TestParse_Simcat(t *testing.T) {
	cfg, err := Parse([]byte(simcatConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB, "defaults survive partial sections")
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Session.Timeout, "session inherits the global timeout")

	s := cfg.Session
	assert.Equal(t, session.BackendSimcat, s.Backend)
	assert.Equal(t, "/tempZone/home/alice", s.ScratchRoot)
	assert.Equal(t, map[string]string{"a": "ufs0", "b": "ufs1"}, s.Locations)
	assert.Equal(t, session.DefaultListPattern, s.ListPattern)
	assert.Equal(t, session.DefaultPayloadSize, s.PayloadSize)
	assert.Equal(t, []string{"replcheck", "simcat", "ls", "{{.Path}}"}, s.Templates.Stat)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestParse_Environment(t *testing.T) {
	cfg, err := Parse([]byte(`
session:
  locations: {a: demoResc}
  environment:
    irods_host: localhost
    irods_port: 1247
    irods_zone_name: tempZone
`))
	require.NoError(t, err)
	assert.Equal(t, session.BackendIcommands, cfg.Session.Backend)
	assert.Equal(t, "localhost", cfg.Session.Environment["irods_host"])
	assert.Equal(t, 1247, cfg.Session.Environment["irods_port"])
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
session:
  locations: {a: demoResc}
  scrach_root: /tempZone/home/rods
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "scrach_root")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no locations",
			yaml: "log: {level: info}\n",
			want: "no locations configured",
		},
		{
			name: "bad level",
			yaml: "log: {level: loud}\nsession: {locations: {a: r}}\n",
			want: `unknown log level "loud"`,
		},
		{
			name: "simcat without database",
			yaml: "session: {backend: simcat, locations: {a: r}}\n",
			want: "simcat backend needs simcat_db",
		},
		{
			name: "unknown backend",
			yaml: "session: {backend: ftp, locations: {a: r}}\n",
			want: `unknown backend "ftp"`,
		},
		{
			name: "relative scratch root",
			yaml: "session: {scratch_root: home, locations: {a: r}}\n",
			want: "scratch_root",
		},
		{
			name: "list pattern without groups",
			yaml: "session: {list_pattern: '^(\\S+)$', locations: {a: r}}\n",
			want: "needs named groups",
		},
		{
			name: "negative timeout",
			yaml: "timeout: -1s\nsession: {locations: {a: r}}\n",
			want: "negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(simcatConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "testbed.db", cfg.Session.SimcatDB)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
