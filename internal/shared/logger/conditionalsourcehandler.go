package logger

import (
	"context"
	"log/slog"
	"runtime"
)

// sourceByLevelHandler decorates a slog.Handler and attaches the source
// location only for selected levels. Keeps info/debug lines compact in
// production while warn/error stay debuggable.
//
// The wrapped handler must be configured with AddSource: false, otherwise the
// source attribute is emitted twice.
type sourceByLevelHandler struct {
	next   slog.Handler
	levels map[slog.Level]struct{}
}

// NewConditionalSourceHandler wraps next so that records at any of the given
// levels carry a source attribute.
func NewConditionalSourceHandler(next slog.Handler, levels ...slog.Level) slog.Handler {
	set := make(map[slog.Level]struct{}, len(levels))
	for _, lv := range levels {
		set[lv] = struct{}{}
	}
	return &sourceByLevelHandler{next: next, levels: set}
}

func (h *sourceByLevelHandler) Handle(ctx context.Context, r slog.Record) error {
	if _, ok := h.levels[r.Level]; ok && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		r.AddAttrs(slog.Attr{
			Key: slog.SourceKey,
			Value: slog.AnyValue(&slog.Source{
				Function: f.Function,
				File:     f.File,
				Line:     f.Line,
			}),
		})
	}
	return h.next.Handle(ctx, r)
}

func (h *sourceByLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sourceByLevelHandler{next: h.next.WithAttrs(attrs), levels: h.levels}
}

func (h *sourceByLevelHandler) WithGroup(name string) slog.Handler {
	return &sourceByLevelHandler{next: h.next.WithGroup(name), levels: h.levels}
}

func (h *sourceByLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}
