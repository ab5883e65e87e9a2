//go:build integration

package dialer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadahiro/apiaccess/internal/accessmethod"
	"github.com/wadahiro/apiaccess/internal/attempt"
	"github.com/wadahiro/apiaccess/internal/bridge"
	"github.com/wadahiro/apiaccess/internal/testutil"
	"github.com/wadahiro/apiaccess/internal/transport"
)

// TestIntegration_ProbeDirect performs a TLS handshake with the live API.
func TestIntegration_ProbeDirect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testCfg := testutil.LoadTestConfig(t)

	p := &Probe{Dialer: New(), Address: testCfg.APIAddress, Timeout: 15 * time.Second, TLS: true}
	assert.NoError(t, p.Connect(context.Background(), transport.Direct()))
}

func TestIntegration_ProbeSocks5(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testCfg := testutil.LoadTestConfig(t)
	if testCfg.Socks5Proxy == "" {
		t.Skip("skipping: TEST_SOCKS5_PROXY not set")
	}

	p := &Probe{Dialer: New(), Address: testCfg.APIAddress, Timeout: 15 * time.Second, TLS: true}
	tr := transport.Socks5(transport.Socks5Configuration{Endpoint: testCfg.Socks5Proxy})
	assert.NoError(t, p.Connect(context.Background(), tr))
}

// TestIntegration_AttemptLoop runs the full selection loop against the live
// API using the configured settings file, or direct plus bridges.
func TestIntegration_AttemptLoop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testCfg := testutil.LoadTestConfig(t)

	var ds accessmethod.DataSource
	if testCfg.SettingsFile != "" {
		repo, err := accessmethod.NewFileRepository(testCfg.SettingsFile, "")
		require.NoError(t, err)
		ds = repo
	} else {
		store, err := accessmethod.NewStore([]accessmethod.Method{accessmethod.Direct(), accessmethod.Bridges()})
		require.NoError(t, err)
		ds = store
	}

	loader := bridge.NewCachingLoader(bridge.NewHTTPSource("https://api.mullvad.net/app/v1/relays"))
	strategy, err := transport.NewStrategy(ds, loader)
	require.NoError(t, err)

	probe := &Probe{Dialer: New(), Address: testCfg.APIAddress, Timeout: 15 * time.Second, TLS: true}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	got, err := attempt.NewLoop(strategy, probe, attempt.WithBackoff(time.Second, 5*time.Second)).Run(ctx)
	require.NoError(t, err)
	assert.False(t, got.IsNone())
}
