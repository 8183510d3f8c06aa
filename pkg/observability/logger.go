package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrMode    = "mode"
)

// TracingHandler is an [slog.Handler] that adds the OpenTelemetry trace_id
// and span_id of the record's context. The service and mode attributes are
// attached up front so they stay at the top level under groups.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner with trace context injection.
func NewTracingHandler(inner slog.Handler, service string, appMode AppMode) *TracingHandler {
	return &TracingHandler{
		inner: inner.WithAttrs([]slog.Attr{
			slog.String(attrService, service),
			slog.String(attrMode, string(appMode)),
		}),
	}
}

// NewLogger builds the process logger writing to out.
func NewLogger(out io.Writer, cfg Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(out, handlerOpts)
	} else {
		inner = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(NewTracingHandler(inner, cfg.ServiceName, cfg.Mode))
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds trace context attributes, then delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	err := th.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs returns a TracingHandler with additional attributes on the inner handler.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup returns a TracingHandler with a group prefix on the inner handler.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}
