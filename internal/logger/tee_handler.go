package logger

import (
	"context"
	"log/slog"
	"slices"
)

// TeeHandler writes log records to both a primary handler and a file writer
type TeeHandler struct {
	primaryHandler slog.Handler
	fileWriter     *FileWriter
	level          slog.Leveler
	attrs          []slog.Attr
	group          string
}

// NewTeeHandler creates a handler that writes to both the primary handler and file.
// Records below level are dropped for both outputs.
func NewTeeHandler(primaryHandler slog.Handler, fileWriter *FileWriter, level slog.Leveler) *TeeHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &TeeHandler{
		primaryHandler: primaryHandler,
		fileWriter:     fileWriter,
		level:          level,
	}
}

// Enabled implements slog.Handler
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() && h.primaryHandler.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.primaryHandler.Handle(ctx, r); err != nil {
		return err
	}

	// file output is best effort
	if h.fileWriter != nil {
		_ = h.fileWriter.WriteRecord(r, h.attrs)
	}
	return nil
}

// WithAttrs implements slog.Handler
func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.primaryHandler = h.primaryHandler.WithAttrs(attrs)
	clone.attrs = slices.Concat(h.attrs, prefixed(h.group, attrs))
	return &clone
}

// WithGroup implements slog.Handler
func (h *TeeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.primaryHandler = h.primaryHandler.WithGroup(name)
	if h.group != "" {
		name = h.group + "." + name
	}
	clone.group = name
	return &clone
}

func prefixed(group string, attrs []slog.Attr) []slog.Attr {
	if group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: group + "." + a.Key, Value: a.Value}
	}
	return out
}
