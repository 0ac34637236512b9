package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "congress.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8282", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout.Std())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.Database.Path)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  address: "0.0.0.0:9090"
  shutdown_timeout: 5s
database:
  path: /var/lib/congress/congress.db
policies:
  paths:
    - /etc/congress/policies
  watch: true
datasources:
  - name: nova
    driver: http
    config:
      url: https://nova.example.com/facts
      token: s3cret
    poll_interval: 1m
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Std())
	// Unset fields keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout.Std())
	assert.True(t, cfg.Policies.Watch)
	assert.Equal(t, "debug", cfg.Logging.Level)

	require.Len(t, cfg.Datasources, 1)
	spec := cfg.Datasources[0].Spec()
	assert.Equal(t, "nova", spec.Name)
	assert.Equal(t, time.Minute, spec.PollInterval)
	assert.Equal(t, "s3cret", spec.Config["token"])
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "does not exist")

	_, err = Load(writeConfig(t, `server: {address: "not an address"}`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `surprise: true`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `
datasources:
  - name: nova
    driver: file
  - name: nova
    driver: http
`))
	assert.ErrorContains(t, err, "duplicate datasource")

	_, err = Load(writeConfig(t, `server: {read_timeout: soon}`))
	assert.Error(t, err)
}
