package events

import (
	"context"
	"log/slog"
)

// LogHandler forwards records to an inner handler and mirrors each one on
// the bus as a Log event.
type LogHandler struct {
	inner slog.Handler
	bus   *Bus
	runID string
	attrs []slog.Attr
	group string
}

// NewLogHandler wraps inner. runID tags the published events.
func NewLogHandler(inner slog.Handler, bus *Bus, runID string) *LogHandler {
	return &LogHandler{inner: inner, bus: bus, runID: runID}
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.inner.Handle(ctx, r)

	data := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[h.key(a.Key)] = a.Value.Resolve().Any()
		return true
	})
	if e, ok := data["err"].(error); ok {
		data["err"] = e.Error()
	}
	h.bus.Publish(Event{
		Type:    Log,
		Time:    r.Time,
		RunID:   h.runID,
		Step:    NoStep,
		Message: r.Message,
		Level:   r.Level.String(),
		Data:    data,
	})
	return err
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.inner = h.inner.WithAttrs(attrs)
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &next
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.inner = h.inner.WithGroup(name)
	if h.group != "" {
		name = h.group + "." + name
	}
	next.group = name
	return &next
}

func (h *LogHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}
