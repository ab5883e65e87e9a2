// Package ui provides interactive user interface components.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/wadahiro/apiaccess/internal/accessmethod"
)

// MethodSelector handles interactive access method selection.
type MethodSelector struct {
	reader io.Reader
	writer io.Writer
}

// NewMethodSelector creates a new MethodSelector with custom IO.
func NewMethodSelector(reader io.Reader, writer io.Writer) *MethodSelector {
	return &MethodSelector{
		reader: reader,
		writer: writer,
	}
}

// DefaultMethodSelector creates a MethodSelector using stdin/stdout.
func DefaultMethodSelector() *MethodSelector {
	return &MethodSelector{
		reader: os.Stdin,
		writer: os.Stdout,
	}
}

// SelectMethod prompts the user to select from multiple methods.
// If there's only one method, it returns that method without prompting.
// Returns an error if the list is empty.
func (s *MethodSelector) SelectMethod(methods []accessmethod.Method) (*accessmethod.Method, error) {
	if len(methods) == 0 {
		return nil, fmt.Errorf("no access methods to select from")
	}

	if len(methods) == 1 {
		return &methods[0], nil
	}

	FormatMethodList(s.writer, methods)
	fmt.Fprint(s.writer, "Select access method [1]: ")

	reader := bufio.NewReader(s.reader)
	input, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	selection, err := ParseSelection(input, len(methods))
	if err != nil {
		return nil, err
	}

	selected := &methods[selection-1]
	fmt.Fprintf(s.writer, "Selected: %s\n\n", selected)
	return selected, nil
}

// FormatMethodList formats a list of access methods for display.
func FormatMethodList(w io.Writer, methods []accessmethod.Method) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Access methods:")
	fmt.Fprintln(w, "─────────────────────────────────────────────────")
	for i, m := range methods {
		state := "enabled"
		if !m.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(w, "  %d. %s - %s%s\n", i+1, m, state, describe(m))
	}
	fmt.Fprintln(w, "─────────────────────────────────────────────────")
}

func describe(m accessmethod.Method) string {
	switch m.Kind() {
	case accessmethod.KindShadowsocks:
		cfg, _ := m.Proxy.Shadowsocks()
		return fmt.Sprintf(" [%s %s]", cfg.Endpoint(), cfg.Cipher)
	case accessmethod.KindSocks5:
		cfg, _ := m.Proxy.Socks5()
		if cfg.Authentication.IsUsernamePassword() {
			return fmt.Sprintf(" [%s user %s]", cfg.Endpoint(), cfg.Authentication.Username)
		}
		return fmt.Sprintf(" [%s]", cfg.Endpoint())
	default:
		return ""
	}
}

// ParseSelection parses user input for selection.
// Empty input defaults to 1.
// Returns an error if the input is invalid or out of range.
func ParseSelection(input string, max int) (int, error) {
	input = strings.TrimSpace(input)

	// Empty input defaults to 1
	if input == "" {
		return 1, nil
	}

	selection, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid selection: %s", input)
	}

	if selection < 1 || selection > max {
		return 0, fmt.Errorf("selection out of range: %d (valid: 1-%d)", selection, max)
	}

	return selection, nil
}
