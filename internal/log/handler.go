package log

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

const redacted = "***"

// HandlerOptions configures the ColorHandler.
type HandlerOptions struct {
	Level slog.Leveler
	// NoColor disables ANSI colors even when writing to a TTY.
	NoColor bool
}

// ColorHandler is a slog.Handler that writes one line per record and
// colors the level when the writer is a TTY. Attributes whose key is
// "password" are never written in clear text.
type ColorHandler struct {
	opts   HandlerOptions
	attrs  []slog.Attr
	groups []string
	mu     *sync.Mutex
	w      io.Writer
	color  bool
}

// NewColorHandler creates a new ColorHandler.
func NewColorHandler(w io.Writer, opts *HandlerOptions) *ColorHandler {
	h := &ColorHandler{
		w:  w,
		mu: &sync.Mutex{},
	}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	h.color = !h.opts.NoColor && isTerminal(w)
	return h
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// Enabled reports whether the handler handles records at the given level.
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle formats the record as
//
//	<time> <LEVEL> [component] message key=value ...
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var component string
	var rest []slog.Attr

	collect := func(a slog.Attr, prefix string) {
		if a.Key == "component" && prefix == "" {
			component = a.Value.String()
			return
		}
		if prefix != "" {
			a.Key = prefix + a.Key
		}
		rest = append(rest, a)
	}
	for _, a := range h.attrs {
		collect(a, "")
	}
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a, prefix)
		return true
	})

	var buf bytes.Buffer
	levelStr, levelColor := formatLevel(r.Level)
	timeStr := r.Time.Format(time.RFC3339)
	if h.color {
		buf.WriteString(colorGray + timeStr + colorReset + " ")
		buf.WriteString(levelColor + levelStr + colorReset + " ")
	} else {
		buf.WriteString(timeStr + " ")
		buf.WriteString(levelStr + " ")
	}
	if component != "" {
		buf.WriteString("[" + component + "] ")
	}
	buf.WriteString(r.Message)
	for _, a := range rest {
		writeAttr(&buf, a.Key, a.Value)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func writeAttr(buf *bytes.Buffer, key string, v slog.Value) {
	v = v.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, a := range v.Group() {
			writeAttr(buf, key+"."+a.Key, a.Value)
		}
		return
	}
	buf.WriteString(" " + key + "=")
	if isSecretKey(key) {
		buf.WriteString(redacted)
		return
	}
	buf.WriteString(formatValue(v))
}

// isSecretKey matches "password" as the last key segment, ignoring case.
func isSecretKey(key string) bool {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	return strings.EqualFold(key, "password")
}

func formatLevel(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return "ERROR", colorRed
	case level >= slog.LevelWarn:
		return "WARN ", colorYellow
	case level >= slog.LevelInfo:
		return "INFO ", colorGreen
	default:
		return "DEBUG", colorCyan
	}
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		s := v.String()
		if strings.ContainsAny(s, " \t\"") {
			return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
		}
		return s
	}
}

// WithAttrs returns a new Handler with the given attributes added.
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	merged := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	for _, a := range attrs {
		if a.Key != "component" {
			a.Key = prefix + a.Key
		}
		merged = append(merged, a)
	}
	return &ColorHandler{
		opts:   h.opts,
		attrs:  merged,
		groups: h.groups,
		mu:     h.mu,
		w:      h.w,
		color:  h.color,
	}
}

// WithGroup returns a new Handler that qualifies later attribute keys with name.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := make([]string, len(h.groups)+1)
	copy(groups, h.groups)
	groups[len(h.groups)] = name
	return &ColorHandler{
		opts:   h.opts,
		attrs:  h.attrs,
		groups: groups,
		mu:     h.mu,
		w:      h.w,
		color:  h.color,
	}
}
