package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dnw3/synaptic-sub002/pkg/graph/callback"
)

// logHandler logs model and tool events. Run and step events are already
// covered by the runtime's own logging.
type logHandler struct {
	logger *slog.Logger
}

// NewLogHandler returns a callback.Handler that logs model and tool activity
// at debug level, and failures at warn.
func NewLogHandler(logger *slog.Logger) callback.Handler {
	if logger == nil {
		return callback.Noop{}
	}
	return logHandler{logger: logger}
}

func (h logHandler) Handle(ctx context.Context, ev callback.Event) {
	attrs := []slog.Attr{
		slog.String("event", ev.Kind.String()),
		slog.String("run_id", ev.RunID),
		slog.String("node_id", ev.NodeID),
	}

	switch ev.Kind {
	case callback.ToolStart, callback.ToolEnd:
		attrs = append(attrs,
			slog.String("tool", ev.ToolName),
			slog.String("tool_call_id", ev.ToolCallID),
		)
	case callback.ModelStart, callback.ModelEnd:
		attrs = append(attrs, slog.Int("messages", ev.Messages))
	default:
		return
	}

	if ev.Duration > 0 {
		attrs = append(attrs, slog.Float64("duration_ms", millis(ev.Duration)))
	}

	if ev.Err != nil {
		attrs = append(attrs, slog.String("error", ev.Err.Error()))
		h.logger.LogAttrs(ctx, slog.LevelWarn, "callback", attrs...)
		return
	}
	h.logger.LogAttrs(ctx, slog.LevelDebug, "callback", attrs...)
}

// metricsHandler turns model and tool end events into metrics.
type metricsHandler struct {
	metrics MetricsRecorder
}

// NewMetricsHandler returns a callback.Handler feeding tool and model end
// events into the recorder.
func NewMetricsHandler(metrics MetricsRecorder) callback.Handler {
	if metrics == nil {
		return callback.Noop{}
	}
	return metricsHandler{metrics: metrics}
}

func (h metricsHandler) Handle(ctx context.Context, ev callback.Event) {
	switch ev.Kind {
	case callback.ToolEnd:
		h.metrics.RecordToolCall(ctx, ev.ToolName, ev.Duration, ev.Err)
	case callback.ModelEnd:
		h.metrics.RecordModelCall(ctx, ev.NodeID, ev.Duration, ev.Err)
	}
}

// spanEventHandler records model and tool events on the span found in ctx.
type spanEventHandler struct{}

// NewSpanEventHandler returns a callback.Handler that adds model and tool
// events to the active node span.
func NewSpanEventHandler() callback.Handler {
	return spanEventHandler{}
}

func (spanEventHandler) Handle(ctx context.Context, ev callback.Event) {
	switch ev.Kind {
	case callback.ToolStart, callback.ToolEnd:
		AddSpanEvent(ctx, ev.Kind.String(),
			attribute.String("tool", ev.ToolName),
			attribute.String("tool_call_id", ev.ToolCallID),
			attribute.Bool("error", ev.Err != nil),
		)
	case callback.ModelStart, callback.ModelEnd:
		AddSpanEvent(ctx, ev.Kind.String(),
			attribute.Int("messages", ev.Messages),
			attribute.Bool("error", ev.Err != nil),
		)
	}
}
