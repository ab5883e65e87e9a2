// Package config provides configuration management for apiaccess.
// It loads a TOML file and merges it with CLI flags using the priority
// CLI > profile > defaults > built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// AppConfig represents the complete application configuration loaded from TOML.
type AppConfig struct {
	Defaults      Defaults             `toml:"defaults"`
	Profiles      map[string]Profile   `toml:"profiles"`
	AccessMethods []AccessMethodConfig `toml:"access-methods"`
}

// Defaults holds values that apply when a profile does not set them.
type Defaults struct {
	APIAddress     string        `toml:"api-address"`
	Timeout        Duration      `toml:"timeout"`
	MaxAttempts    int           `toml:"max-attempts"`
	InitialBackoff Duration      `toml:"initial-backoff"`
	MaxBackoff     Duration      `toml:"max-backoff"`
	Bridge         *BridgeConfig `toml:"bridge"`
}

// Profile is a named API environment, e.g. production or staging.
type Profile struct {
	APIAddress     string        `toml:"api-address"`
	Timeout        Duration      `toml:"timeout"`
	MaxAttempts    int           `toml:"max-attempts"`
	InitialBackoff Duration      `toml:"initial-backoff"`
	MaxBackoff     Duration      `toml:"max-backoff"`
	Bridge         *BridgeConfig `toml:"bridge"`

	// AccessMethods replaces the top-level list when non-empty.
	AccessMethods []AccessMethodConfig `toml:"access-methods"`
}

// BridgeConfig configures where dynamic bridge parameters come from.
type BridgeConfig struct {
	SourceURL              string   `toml:"source-url"`
	CacheFile              string   `toml:"cache-file"`
	TTL                    Duration `toml:"ttl"`
	URIs                   []string `toml:"uris"`
	// ReloadFailureThreshold of 0 disables escalation; unset keeps the default.
	ReloadFailureThreshold *int     `toml:"reload-failure-threshold"`
}

// AccessMethodConfig is one [[access-methods]] entry.
type AccessMethodConfig struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Enabled  *bool  `toml:"enabled"`
	Type     string `toml:"type"`
	Server   string `toml:"server"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
	Cipher   string `toml:"cipher"`
	Username string `toml:"username"`
}

// IsEnabled treats a missing enabled key as true.
func (c AccessMethodConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Duration is a time.Duration written as a Go duration string ("30s") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoadConfig loads configuration from the specified path.
// If the file does not exist, returns an empty config without error.
// If the file exists but is invalid TOML, returns an error.
func LoadConfig(path string) (*AppConfig, error) {
	path = ExpandTilde(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &AppConfig{
				Profiles: make(map[string]Profile),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes TOML configuration. Unknown keys are rejected so typos
// in access method entries do not silently produce a direct connection.
func ParseConfig(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("failed to parse config file: unknown key %q", undecoded[0].String())
	}

	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}

	return &cfg, nil
}

// GetProfile returns the profile with the given name, if it exists.
func (c *AppConfig) GetProfile(name string) (Profile, bool) {
	profile, exists := c.Profiles[name]
	return profile, exists
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "apiaccess", "config.toml")
}

// ExpandTilde expands ~ at the start of a path to the user's home directory.
func ExpandTilde(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
