package accessmethod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadahiro/apiaccess/internal/config"
)

func boolPtr(b bool) *bool {
	return &b
}

func TestFromSettings_EmptyYieldsBuiltIns(t *testing.T) {
	methods, err := FromSettings(nil)
	require.NoError(t, err)

	require.Len(t, methods, 2)
	assert.Equal(t, Direct(), methods[0])
	assert.Equal(t, Bridges(), methods[1])
}

func TestFromSettings_AllKinds(t *testing.T) {
	methods, err := FromSettings([]config.AccessMethodConfig{
		{Type: "bridges"},
		{Type: "shadowsocks", Name: "My bridge", Server: "1.2.3.4", Port: 443, Password: "p", Cipher: "aes-256-gcm"},
		{Type: "socks5", Server: "10.0.0.1", Port: 1080, Username: "u", Password: "pw"},
		{Type: "socks5", Server: "10.0.0.2", Port: 1080, Enabled: boolPtr(false)},
		{Type: "direct"},
	})
	require.NoError(t, err)
	require.Len(t, methods, 5)

	assert.Equal(t, BridgesID, methods[0].ID)
	assert.Equal(t, KindBridges, methods[0].Kind())

	ss, ok := methods[1].Proxy.Shadowsocks()
	require.True(t, ok)
	assert.Equal(t, Shadowsocks{Server: "1.2.3.4", Port: 443, Password: "p", Cipher: "aes-256-gcm"}, ss)
	assert.Equal(t, "My bridge", methods[1].Name)

	socks, ok := methods[2].Proxy.Socks5()
	require.True(t, ok)
	assert.True(t, socks.Authentication.IsUsernamePassword())
	assert.Equal(t, "SOCKS5 10.0.0.1:1080", methods[2].Name)

	noAuth, _ := methods[3].Proxy.Socks5()
	assert.False(t, noAuth.Authentication.IsUsernamePassword())
	assert.False(t, methods[3].Enabled)

	assert.Equal(t, DirectID, methods[4].ID)
}

func TestFromSettings_AppendsMissingBuiltInsDisabled(t *testing.T) {
	methods, err := FromSettings([]config.AccessMethodConfig{
		{Type: "socks5", Server: "10.0.0.1", Port: 1080},
	})
	require.NoError(t, err)
	require.Len(t, methods, 3)

	assert.Equal(t, DirectID, methods[1].ID)
	assert.False(t, methods[1].Enabled)
	assert.Equal(t, BridgesID, methods[2].ID)
	assert.False(t, methods[2].Enabled)
}

func TestFromSettings_DerivedIDsAreStable(t *testing.T) {
	entries := []config.AccessMethodConfig{{Type: "socks5", Server: "10.0.0.1", Port: 1080}}

	first, err := FromSettings(entries)
	require.NoError(t, err)
	second, err := FromSettings(entries)
	require.NoError(t, err)

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.NotEmpty(t, first[0].ID)
}

func TestFromSettings_Errors(t *testing.T) {
	tests := []struct {
		name  string
		entry config.AccessMethodConfig
	}{
		{"unknown type", config.AccessMethodConfig{Type: "http"}},
		{"missing server", config.AccessMethodConfig{Type: "socks5", Port: 1080}},
		{"bad cipher", config.AccessMethodConfig{Type: "shadowsocks", Server: "h", Port: 1, Cipher: "none"}},
		{"bad id", config.AccessMethodConfig{ID: "not-a-uuid", Type: "direct"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromSettings([]config.AccessMethodConfig{tt.entry})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "access method #1")
		})
	}
}
