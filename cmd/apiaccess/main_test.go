package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadahiro/apiaccess/internal/accessmethod"
	"github.com/wadahiro/apiaccess/internal/attempt"
	"github.com/wadahiro/apiaccess/internal/config"
)

const bridgeURI = "ss://YWVzLTI1Ni1nY206c2VjcmV0@192.0.2.10:443"

func writeConfig(t *testing.T, apiAddress string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[defaults]
api-address = "` + apiAddress + `"
timeout = "1s"
initial-backoff = "10ms"
max-backoff = "10ms"

[profiles.staging]
api-address = "127.0.0.1:2"

[[access-methods]]
type = "direct"

[[access-methods]]
name = "office proxy"
type = "socks5"
server = "10.0.0.5"
port = 1080
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func closedAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func run(args ...string) error {
	return newApp().Run(append([]string{"apiaccess"}, args...))
}

func runWithOutput(args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(append([]string{"apiaccess"}, args...))
	return out.String(), err
}

func TestApp_Methods(t *testing.T) {
	path := writeConfig(t, "127.0.0.1:1")
	assert.NoError(t, run("--config", path, "methods"))
}

func TestApp_Pick(t *testing.T) {
	path := writeConfig(t, "127.0.0.1:1")
	assert.NoError(t, run("--config", path, "pick"))
	assert.NoError(t, run("--config", path, "pick", "--fail", "3"))
}

func TestApp_PickBridgesFromURI(t *testing.T) {
	// Without a settings file the built-in direct and bridges methods apply.
	path := filepath.Join(t.TempDir(), "missing.toml")
	assert.NoError(t, run("--config", path, "--bridge-uri", bridgeURI, "pick", "--fail", "1"))
}

func TestApp_PickReportsMethodBehindTransport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[[access-methods]]
type = "bridges"

[[access-methods]]
type = "direct"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// The relay list is unreachable, so resolving rotates from bridges to direct.
	out, err := runWithOutput("--config", path, "--bridge-source-url", "http://"+closedAddress(t)+"/relays", "pick")
	require.NoError(t, err)
	assert.Contains(t, out, "Method:    Direct (direct)\n")
	assert.Contains(t, out, "Transport: direct\n")
}

func TestApp_UnknownProfile(t *testing.T) {
	path := writeConfig(t, "127.0.0.1:1")
	err := run("--config", path, "--profile", "nope", "methods")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile not found")
}

func TestApp_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "127.0.0.1:1")
	assert.Error(t, run("--config", path, "--log-level", "loud", "methods"))
}

func TestApp_TestUnknownID(t *testing.T) {
	path := writeConfig(t, "127.0.0.1:1")
	err := run("--config", path, "test", "--id", "00000000-0000-0000-0000-0000000000ff")
	assert.ErrorIs(t, err, accessmethod.ErrNotFound)
}

func TestApp_TestUnreachable(t *testing.T) {
	path := writeConfig(t, closedAddress(t))
	err := run("--config", path, "test", "--id", accessmethod.DirectID, "--tls=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not working")
}

func TestApp_ConnectExhausted(t *testing.T) {
	path := writeConfig(t, closedAddress(t))
	err := run("--config", path, "connect", "--max-attempts", "1", "--tls=false")
	assert.ErrorIs(t, err, attempt.ErrAttemptsExhausted)
}

func TestApp_ConnectSucceeds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	path := writeConfig(t, ln.Addr().String())
	assert.NoError(t, run("--config", path, "connect", "--tls=false"))
}

func TestNewLoader(t *testing.T) {
	t.Run("invalid uri", func(t *testing.T) {
		_, err := newLoader(config.BridgeSettings{URIs: []string{"http://nope"}})
		assert.Error(t, err)
	})

	t.Run("static uri is served", func(t *testing.T) {
		l, err := newLoader(config.BridgeSettings{URIs: []string{bridgeURI}})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		cfg, err := l.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "192.0.2.10", cfg.Address)
	})
}
