package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/Graylog2/go-gelf/gelf"
)

// Syslog severities used by GELF. The gelf package does not export these.
const (
	gelfLevelError   int32 = 3
	gelfLevelWarning int32 = 4
	gelfLevelInfo    int32 = 6
	gelfLevelDebug   int32 = 7
)

// GELFHandler forwards slog records to a Graylog server. Additional fields
// follow the GELF convention of a leading underscore.
type GELFHandler struct {
	writer *gelf.Writer
	level  slog.Level
	host   string
	attrs  []slog.Attr
	group  string
}

// NewGELFHandler creates a handler writing to w at the given minimum level.
func NewGELFHandler(w *gelf.Writer, level slog.Level) *GELFHandler {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &GELFHandler{
		writer: w,
		level:  level,
		host:   host,
	}
}

// Enabled reports whether records at the given level are forwarded.
func (h *GELFHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle converts the record to a GELF message and writes it.
func (h *GELFHandler) Handle(_ context.Context, r slog.Record) error {
	return h.writer.WriteMessage(h.message(r))
}

func (h *GELFHandler) message(r slog.Record) *gelf.Message {
	extra := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		h.addExtra(extra, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.addExtra(extra, a)
		return true
	})

	return &gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(r.Time.UnixNano()) / 1e9,
		Level:    gelfLevel(r.Level),
		Extra:    extra,
	}
}

func (h *GELFHandler) addExtra(extra map[string]any, a slog.Attr) {
	key := a.Key
	if key == "" {
		return
	}
	if h.group != "" {
		key = h.group + "." + key
	}
	extra["_"+key] = a.Value.Resolve().Any()
}

func gelfLevel(level slog.Level) int32 {
	switch {
	case level >= slog.LevelError:
		return gelfLevelError
	case level >= slog.LevelWarn:
		return gelfLevelWarning
	case level >= slog.LevelInfo:
		return gelfLevelInfo
	default:
		return gelfLevelDebug
	}
}

// WithAttrs returns a handler that includes attrs in every message.
func (h *GELFHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &c
}

// WithGroup returns a handler that prefixes attribute keys with name.
func (h *GELFHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	if h.group != "" {
		c.group = h.group + "." + name
	} else {
		c.group = name
	}
	return &c
}
