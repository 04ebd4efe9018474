package logging

import (
	"context"
	"log/slog"
	"slices"

	"github.com/OCAP2/csp/pkg/executor"
)

// ContextProvider returns process-wide attributes. It is called once per
// record.
type ContextProvider func() []slog.Attr

type ctxAttrsKey struct{}

// AppendCtx returns a copy of ctx whose log records also carry attrs.
// Attributes added further up the context chain are kept.
func AppendCtx(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	return context.WithValue(ctx, ctxAttrsKey{}, append(slices.Clip(prev), attrs...))
}

// TaskHandler stamps each record with the executor task that logged it, the
// attributes attached to its context with AppendCtx and those of the
// provider, in that order.
type TaskHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewTaskHandler wraps inner. provider may be nil.
func NewTaskHandler(inner slog.Handler, provider ContextProvider) *TaskHandler {
	return &TaskHandler{inner: inner, provider: provider}
}

func (h *TaskHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *TaskHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := executor.TaskID(ctx); ok {
		r.AddAttrs(slog.Uint64("task", id))
	}
	if attrs, ok := ctx.Value(ctxAttrsKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *TaskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return &TaskHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider}
}

func (h *TaskHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &TaskHandler{inner: h.inner.WithGroup(name), provider: h.provider}
}
