package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/radekpospisil/congress/pkg/datasource"
	"github.com/radekpospisil/congress/pkg/telemetry"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server      ServerConfig            `yaml:"server"`
	Database    DatabaseConfig          `yaml:"database"`
	Policies    PoliciesConfig          `yaml:"policies"`
	Datasources []DatasourceConfig      `yaml:"datasources" validate:"dive"`
	Logging     telemetry.LoggingConfig `yaml:"logging"`
	Metrics     telemetry.MetricsConfig `yaml:"metrics"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Address is the listen address, host:port.
	Address string `yaml:"address" validate:"required,hostname_port"`

	// ReadTimeout bounds reading a request.
	ReadTimeout Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a response.
	WriteTimeout Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the SQLite store. An empty path disables
// persistence.
type DatabaseConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns" validate:"min=0"`
	MaxIdleConns int    `yaml:"max_idle_conns" validate:"min=0"`
}

// PoliciesConfig configures loading of Datalog policy files.
type PoliciesConfig struct {
	// Paths are files or directories of .dlog files loaded at startup.
	Paths []string `yaml:"paths"`

	// Watch reloads policies when the files change.
	Watch bool `yaml:"watch"`
}

// DatasourceConfig declares a datasource in the config file.
type DatasourceConfig struct {
	Name         string            `yaml:"name" validate:"required"`
	Driver       string            `yaml:"driver" validate:"required"`
	Description  string            `yaml:"description"`
	Config       map[string]string `yaml:"config"`
	PollInterval Duration          `yaml:"poll_interval"`
}

// Spec converts the declaration to a datasource spec.
func (d DatasourceConfig) Spec() datasource.Spec {
	return datasource.Spec{
		Name:         d.Name,
		Driver:       d.Driver,
		Description:  d.Description,
		Config:       d.Config,
		PollInterval: d.PollInterval.Std(),
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         "127.0.0.1:8282",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: telemetry.DefaultLoggingConfig(),
		Metrics: telemetry.DefaultMetricsConfig(),
	}
}

// Load reads the configuration file at path on top of the defaults. A
// missing file is fine when the path is empty; a named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration using struct tags.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Datasources))
	for _, ds := range c.Datasources {
		if _, dup := seen[ds.Name]; dup {
			return fmt.Errorf("duplicate datasource %q", ds.Name)
		}
		seen[ds.Name] = struct{}{}
	}
	return nil
}
