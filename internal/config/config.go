// Package config loads the docsynth CLI profile. Values come from a YAML file
// and may be overridden from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/docsynth/internal/gcp"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the profile looked up in the user's home directory.
	FileName = ".docsynth.yaml"

	DefaultBackendURL = "http://localhost:3000"
)

// Config is the CLI profile.
type Config struct {
	BackendURL string `yaml:"backend_url"`
	UserID     string `yaml:"user_id"`
	// HTTPTimeout of zero leaves backend and upload calls without a deadline.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	DownloadDir string        `yaml:"download_dir"`

	// ProjectID enables the Firestore submission journal when set.
	ProjectID         string `yaml:"project_id,omitempty"`
	JournalCollection string `yaml:"journal_collection,omitempty"`
}

// Default returns the profile used when no file exists.
func Default() Config {
	return Config{
		BackendURL:        DefaultBackendURL,
		DownloadDir:       ".",
		JournalCollection: "generationRequests",
	}
}

// DefaultPath returns ~/.docsynth.yaml, or FileName if the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, FileName)
}

// Load reads the profile at path. An empty path means DefaultPath, which may be
// absent; an explicit path must exist. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg.BackendURL = gcp.GetEnv("DOCSYNTH_BACKEND_URL", cfg.BackendURL)
	cfg.UserID = gcp.GetEnv("DOCSYNTH_USER_ID", cfg.UserID)
	cfg.ProjectID = gcp.GetEnv("DOCSYNTH_PROJECT_ID", cfg.ProjectID)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadFile returns the defaults overlaid with the profile at path, without
// environment overrides or validation. Path rules are those of Load.
func ReadFile(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return cfg, nil
}

// Keys lists the profile keys accepted by Set, in file order.
var Keys = []string{"backend_url", "user_id", "http_timeout", "download_dir", "project_id", "journal_collection"}

// Set assigns one profile key from its text form.
func (c *Config) Set(key, value string) error {
	switch key {
	case "backend_url":
		c.BackendURL = value
	case "user_id":
		c.UserID = value
	case "http_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("http_timeout: %w", err)
		}
		c.HTTPTimeout = d
	case "download_dir":
		c.DownloadDir = value
	case "project_id":
		c.ProjectID = value
	case "journal_collection":
		c.JournalCollection = value
	default:
		return fmt.Errorf("unknown key %q (known: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

// Validate checks the fields every command relies on.
func (c Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("backend_url must be set")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend_url %q is not an absolute URL", c.BackendURL)
	}
	if c.HTTPTimeout < 0 {
		return errors.New("http_timeout must not be negative")
	}
	return nil
}

// Save writes the profile to path. An empty path means DefaultPath.
func Save(path string, cfg Config) error {
	if path == "" {
		path = DefaultPath()
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
