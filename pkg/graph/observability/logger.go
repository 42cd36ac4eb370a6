// Package observability provides structured logging, metrics, and distributed
// tracing for graph runs.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//   - A callback.Handler that logs model and tool activity
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
)

// Attribute keys shared by every log line the engine writes.
const (
	keyRunID    = "run_id"
	keyNodeID   = "node_id"
	keyThreadID = "thread_id"
	keyError    = "error"
	keyDuration = "duration_ms"
)

// logAt writes one record. A nil logger disables engine logging, so every
// helper below is safe to call unconditionally.
func logAt(logger *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// EnrichLogger returns logger with run_id, node_id and, when set, thread_id.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "agent", "thread-7")
//	enriched.Info("calling model") // includes run_id, node_id, thread_id
func EnrichLogger(logger *slog.Logger, runID, nodeID, threadID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	attrs := []any{slog.String(keyRunID, runID), slog.String(keyNodeID, nodeID)}
	if threadID != "" {
		attrs = append(attrs, slog.String(keyThreadID, threadID))
	}
	return logger.With(attrs...)
}

// LogRunStart logs the start of a graph run.
func LogRunStart(logger *slog.Logger, runID, entry string) {
	logAt(logger, slog.LevelInfo, "graph run starting",
		slog.String(keyRunID, runID),
		slog.String("entry", entry))
}

// LogRunComplete logs successful graph run completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, steps int) {
	logAt(logger, slog.LevelInfo, "graph run completed",
		slog.String(keyRunID, runID),
		slog.Float64(keyDuration, durationMs),
		slog.Int("steps", steps))
}

// LogRunError records a failed run. lastNode is the node the error is
// attributed to, empty when none is.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastNode string) {
	logAt(logger, slog.LevelError, "graph run failed",
		slog.String(keyRunID, runID),
		slog.String(keyError, err.Error()),
		slog.Float64(keyDuration, durationMs),
		slog.String("last_node", lastNode))
}

// LogNodeStart logs a node step starting.
func LogNodeStart(logger *slog.Logger, nodeID string, step int) {
	logAt(logger, slog.LevelDebug, "node starting",
		slog.String(keyNodeID, nodeID),
		slog.Int("step", step))
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	logAt(logger, slog.LevelDebug, "node completed",
		slog.String(keyNodeID, nodeID),
		slog.Float64(keyDuration, durationMs))
}

// LogNodeError logs a node failure.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	logAt(logger, slog.LevelError, "node failed",
		slog.String(keyNodeID, nodeID),
		slog.String(keyError, err.Error()))
}

// LogCommand records a control override. kind is "goto" or "end"; target is
// empty for "end".
func LogCommand(logger *slog.Logger, nodeID, kind, target string) {
	logAt(logger, slog.LevelDebug, "control override",
		slog.String(keyNodeID, nodeID),
		slog.String("command", kind),
		slog.String("target", target))
}

// LogCheckpoint logs a saved checkpoint and its payload size.
func LogCheckpoint(logger *slog.Logger, nodeID string, sizeBytes int) {
	logAt(logger, slog.LevelDebug, "checkpoint saved",
		slog.String(keyNodeID, nodeID),
		slog.Int("size_bytes", sizeBytes))
}

// LogCheckpointError is a warning: it is only reached when checkpoint
// failures were made non-fatal.
func LogCheckpointError(logger *slog.Logger, nodeID string, op string, err error) {
	logAt(logger, slog.LevelWarn, "checkpoint failed",
		slog.String(keyNodeID, nodeID),
		slog.String("operation", op),
		slog.String(keyError, err.Error()))
}
