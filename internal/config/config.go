package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/voltron/internal/installer"
	"github.com/danieljhkim/voltron/internal/retrieve"
)

// Config is the contents of config.yaml. Command-line flags override it.
type Config struct {
	// Depot is the depot location: a directory, file://, http(s):// or
	// s3://bucket/prefix
	Depot string `yaml:"depot"`

	// InstallRoot is where packages are installed
	InstallRoot string `yaml:"install_root"`

	// Layout is "per-package" or "flat"
	Layout string `yaml:"layout"`

	MaxDepth int `yaml:"max_depth"`

	// OnRefetchFailure is "error" or "abort"
	OnRefetchFailure string `yaml:"on_refetch_failure"`

	LogLevel string `yaml:"log_level"`

	Fetch FetchConfig `yaml:"fetch"`
	S3    S3Config    `yaml:"s3"`

	Server ServerConfig `yaml:"server"`
}

// FetchConfig controls retrieval from remote depots.
type FetchConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// Timeout bounds the wait for an HTTP depot's response headers. Body
	// transfers are not bounded. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// S3Config configures s3:// depots.
type S3Config struct {
	Region string `yaml:"region"`

	// Endpoint selects an S3-compatible service instead of AWS
	Endpoint string `yaml:"endpoint,omitempty"`
}

// ServerConfig configures "depot serve".
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when config.yaml is absent.
func Default(paths *Paths) Config {
	return Config{
		Depot:            paths.Depot,
		InstallRoot:      paths.Install,
		Layout:           installer.LayoutPerPackage,
		MaxDepth:         installer.DefaultMaxDepth,
		OnRefetchFailure: installer.FatalAsError.String(),
		LogLevel:         logrus.InfoLevel.String(),
		Fetch: FetchConfig{
			Attempts:   retrieve.DefaultAttempts,
			Backoff:    retrieve.DefaultBackoff,
			MaxBackoff: retrieve.DefaultMaxBackoff,
			Timeout:    60 * time.Second,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads path over the defaults. Only the default config file
// (paths.Config) may be absent, in which case the defaults are returned;
// any other missing path is an error.
func Load(path string, paths *Paths) (Config, error) {
	cfg := Default(paths)

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == paths.Config {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c Config) Validate() error {
	if _, err := installer.ParseLayout(c.Layout); err != nil {
		return err
	}
	if _, err := installer.ParseFatalPolicy(c.OnRefetchFailure); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.Fetch.Attempts < 0 {
		return fmt.Errorf("fetch.attempts must not be negative, got %d", c.Fetch.Attempts)
	}
	if c.Fetch.Backoff < 0 || c.Fetch.MaxBackoff < 0 || c.Fetch.Timeout < 0 {
		return errors.New("fetch durations must not be negative")
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
