// Package testutil provides utilities for integration testing
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
)

// TestConfig holds integration test configuration
type TestConfig struct {
	// APIAddress is the host:port probed by live tests.
	APIAddress string
	// SettingsFile is an optional access-method settings file to test with.
	SettingsFile string
	// Socks5Proxy is an optional host:port of a reachable SOCKS5 proxy.
	Socks5Proxy string
}

// LoadTestConfig loads test configuration from environment variables.
// Falls back to .env.test file if present.
func LoadTestConfig(t *testing.T) *TestConfig {
	t.Helper()

	// Try to load .env.test file from various locations
	// (tests may run from different directories)
	envFiles := []string{
		".env.test",
		"../../.env.test",
		"../../../.env.test",
		"../../../../.env.test",
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err == nil {
			break
		}
	}

	cfg := &TestConfig{
		APIAddress:   getEnvOrSkip(t, "TEST_API_ADDRESS"),
		SettingsFile: expandPath(os.Getenv("TEST_SETTINGS_FILE")),
		Socks5Proxy:  os.Getenv("TEST_SOCKS5_PROXY"),
	}

	return cfg
}

func getEnvOrSkip(t *testing.T, key string) string {
	t.Helper()
	val := os.Getenv(key)
	if val == "" {
		t.Skipf("skipping: %s not set", key)
	}
	return val
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
