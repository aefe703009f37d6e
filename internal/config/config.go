// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/purecloudlabs/purecloud-cli/internal/hostutil"
	"github.com/purecloudlabs/purecloud-cli/internal/session"
)

const (
	// DefaultTimeout is the per-request timeout applied by the API client.
	DefaultTimeout = 2000 * time.Millisecond

	// DefaultRedirectURL is where the identity provider sends the browser
	// after login. It must be registered on the OAuth client.
	DefaultRedirectURL = "http://localhost:8085/oauth2/callback"
)

// Config holds the resolved configuration.
type Config struct {
	// Environment selects the API and login hosts (e.g. mypurecloud.ie).
	Environment string `json:"environment"`

	// OAuth implicit-grant client settings
	ClientID    string `json:"client_id"`
	RedirectURL string `json:"redirect_url"`

	// TimeoutMS is the per-request timeout in milliseconds.
	TimeoutMS int `json:"timeout_ms"`

	// Output settings
	Format  string `json:"format"`
	Verbose *int   `json:"verbose,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	Environment string
	ClientID    string
	RedirectURL string
	Timeout     time.Duration
	Format      string
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Environment: session.DefaultEnvironment,
		RedirectURL: DefaultRedirectURL,
		TimeoutMS:   int(DefaultTimeout / time.Millisecond),
		Format:      "auto",
		Sources:     make(map[string]string),
	}
}

// Timeout returns TimeoutMS as a duration, falling back to DefaultTimeout.
func (cfg *Config) Timeout() time.Duration {
	if cfg.TimeoutMS <= 0 {
		return DefaultTimeout
	}
	return time.Duration(cfg.TimeoutMS) * time.Millisecond
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > local > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, systemConfigPath(), SourceSystem)
	loadFromFile(cfg, globalConfigPath(), SourceGlobal)
	if path := localConfigPath(); path != "" {
		loadFromFile(cfg, path, SourceLocal)
	}

	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	return cfg, nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	// Authority keys decide where tokens are sent and where the browser lands
	// after login. A config dropped into the working directory must not set them.
	untrusted := source == SourceLocal

	if v, ok := fileCfg["environment"].(string); ok && v != "" {
		if untrusted {
			fmt.Fprintf(os.Stderr, "warning: ignoring environment %q from %s config at %s (authority keys are not trusted from local config)\n", v, source, path)
		} else {
			cfg.Environment = v
			cfg.Sources["environment"] = string(source)
		}
	}
	if v, ok := fileCfg["redirect_url"].(string); ok && v != "" {
		if untrusted {
			fmt.Fprintf(os.Stderr, "warning: ignoring redirect_url %q from %s config at %s (authority keys are not trusted from local config)\n", v, source, path)
		} else {
			cfg.RedirectURL = v
			cfg.Sources["redirect_url"] = string(source)
		}
	}
	if v, ok := fileCfg["client_id"].(string); ok && v != "" {
		cfg.ClientID = v
		cfg.Sources["client_id"] = string(source)
	}
	if v, ok := fileCfg["timeout_ms"].(float64); ok && v > 0 {
		cfg.TimeoutMS = int(v)
		cfg.Sources["timeout_ms"] = string(source)
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(source)
	}
	if v, ok := fileCfg["verbose"].(float64); ok {
		iv := int(v)
		if iv >= 0 && iv <= 2 && v == float64(iv) {
			cfg.Verbose = &iv
			cfg.Sources["verbose"] = string(source)
		}
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("PURECLOUD_ENVIRONMENT"); v != "" {
		cfg.Environment = v
		cfg.Sources["environment"] = string(SourceEnv)
	}
	if v := os.Getenv("PURECLOUD_CLIENT_ID"); v != "" {
		cfg.ClientID = v
		cfg.Sources["client_id"] = string(SourceEnv)
	}
	if v := os.Getenv("PURECLOUD_REDIRECT_URL"); v != "" {
		cfg.RedirectURL = v
		cfg.Sources["redirect_url"] = string(SourceEnv)
	}
	if v := os.Getenv("PURECLOUD_TIMEOUT"); v != "" {
		if ms, ok := parseTimeoutMS(v); ok {
			cfg.TimeoutMS = ms
			cfg.Sources["timeout_ms"] = string(SourceEnv)
		}
	}
}

// parseTimeoutMS accepts a bare millisecond count ("2500") or a Go duration ("3s").
func parseTimeoutMS(v string) (int, bool) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, n > 0
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return int(d / time.Millisecond), true
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.Environment != "" {
		cfg.Environment = o.Environment
		cfg.Sources["environment"] = string(SourceFlag)
	}
	if o.ClientID != "" {
		cfg.ClientID = o.ClientID
		cfg.Sources["client_id"] = string(SourceFlag)
	}
	if o.RedirectURL != "" {
		cfg.RedirectURL = o.RedirectURL
		cfg.Sources["redirect_url"] = string(SourceFlag)
	}
	if o.Timeout > 0 {
		cfg.TimeoutMS = int(o.Timeout / time.Millisecond)
		cfg.Sources["timeout_ms"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
}

// Path helpers

func systemConfigPath() string {
	return "/etc/purecloud/config.json"
}

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// localConfigPath returns .purecloud/config.json in the working directory, if present.
func localConfigPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, ".purecloud", "config.json")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "purecloud")
}

// Save writes the persistable fields of cfg to the global config file.
func Save(cfg *Config) error {
	dir := GlobalConfigDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), append(data, '\n'), 0600)
}

// IsLoopbackRedirect reports whether a redirect URL points at this machine,
// which is required for the CLI to receive the login callback.
func IsLoopbackRedirect(redirectURL string) bool {
	u, err := url.Parse(redirectURL)
	if err != nil || u.Scheme != "http" {
		return false
	}
	return hostutil.IsLocalhost(u.Host)
}
