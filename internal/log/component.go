package log

import (
	"context"
	"log/slog"
)

// componentHandler forwards records to the current default handler with a
// component attribute attached.
type componentHandler struct {
	component string
	attrs     []slog.Attr
	groups    []string
}

func (h *componentHandler) target() slog.Handler {
	t := Default().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		t = t.WithAttrs(h.attrs)
	}
	for _, g := range h.groups {
		t = t.WithGroup(g)
	}
	return t
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Default().Handler().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.target().Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &componentHandler{component: h.component, attrs: merged, groups: h.groups}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &componentHandler{component: h.component, attrs: h.attrs, groups: groups}
}
