package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadahiro/apiaccess/internal/accessmethod"
)

func testMethods() []accessmethod.Method {
	bridges := accessmethod.Bridges()
	bridges.Enabled = false
	return []accessmethod.Method{
		accessmethod.Direct(),
		bridges,
		{
			ID:      "00000000-0000-0000-0000-000000000051",
			Name:    "office proxy",
			Enabled: true,
			Proxy: accessmethod.Socks5Proxy(accessmethod.Socks5{
				Server:         "10.0.0.5",
				Port:           1080,
				Authentication: accessmethod.UsernamePassword("alice", "hunter2"),
			}),
		},
		{
			ID:      "00000000-0000-0000-0000-000000000053",
			Name:    "my bridge",
			Enabled: true,
			Proxy: accessmethod.ShadowsocksProxy(accessmethod.Shadowsocks{
				Server: "203.0.113.5", Port: 8388, Password: "s3cret", Cipher: "aes-256-gcm",
			}),
		},
	}
}

func TestFormatMethodList(t *testing.T) {
	var output bytes.Buffer
	FormatMethodList(&output, testMethods())

	result := output.String()
	assert.Contains(t, result, "Access methods:")
	assert.Contains(t, result, "1. Direct (direct) - enabled")
	assert.Contains(t, result, "2. Bridges (bridges) - disabled")
	assert.Contains(t, result, "3. office proxy (socks5) - enabled [10.0.0.5:1080 user alice]")
	assert.Contains(t, result, "4. my bridge (shadowsocks) - enabled [203.0.113.5:8388 aes-256-gcm]")
	assert.NotContains(t, result, "hunter2")
	assert.NotContains(t, result, "s3cret")
}

func TestParseSelection_Valid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected int
	}{
		{
			name:     "single digit",
			input:    "1",
			max:      3,
			expected: 1,
		},
		{
			name:     "with newline",
			input:    "2\n",
			max:      3,
			expected: 2,
		},
		{
			name:     "with whitespace",
			input:    "  3  \n",
			max:      3,
			expected: 3,
		},
		{
			name:     "empty defaults to 1",
			input:    "\n",
			max:      3,
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseSelection(tt.input, tt.max)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseSelection_OutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "zero", input: "0"},
		{name: "negative", input: "-1"},
		{name: "too large", input: "4"},
		{name: "much too large", input: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSelection(tt.input, 3)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "out of range")
		})
	}
}

func TestParseSelection_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "letters", input: "abc"},
		{name: "special chars", input: "!@#"},
		{name: "mixed", input: "1a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSelection(tt.input, 3)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid")
		})
	}
}

func TestMethodSelector_SelectMethod(t *testing.T) {
	methods := testMethods()

	tests := []struct {
		name       string
		input      string
		expectedID string
	}{
		{
			name:       "select first",
			input:      "1\n",
			expectedID: accessmethod.DirectID,
		},
		{
			name:       "select third",
			input:      "3\n",
			expectedID: "00000000-0000-0000-0000-000000000051",
		},
		{
			name:       "empty selects first",
			input:      "\n",
			expectedID: accessmethod.DirectID,
		},
		{
			name:       "input without newline",
			input:      "4",
			expectedID: "00000000-0000-0000-0000-000000000053",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			selector := NewMethodSelector(strings.NewReader(tt.input), &output)

			selected, err := selector.SelectMethod(methods)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedID, selected.ID)
			assert.Contains(t, output.String(), "Select access method [1]: ")
		})
	}
}

func TestMethodSelector_SingleMethod(t *testing.T) {
	var output bytes.Buffer
	selector := NewMethodSelector(strings.NewReader(""), &output)

	selected, err := selector.SelectMethod([]accessmethod.Method{accessmethod.Direct()})
	require.NoError(t, err)
	assert.Equal(t, accessmethod.DirectID, selected.ID)

	// Should not prompt for selection
	assert.NotContains(t, output.String(), "Select")
}

func TestMethodSelector_EmptyList(t *testing.T) {
	var output bytes.Buffer
	selector := NewMethodSelector(strings.NewReader(""), &output)

	_, err := selector.SelectMethod(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access methods")
}

func TestMethodSelector_InvalidSelection(t *testing.T) {
	var output bytes.Buffer
	selector := NewMethodSelector(strings.NewReader("9\n"), &output)

	_, err := selector.SelectMethod(testMethods())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
