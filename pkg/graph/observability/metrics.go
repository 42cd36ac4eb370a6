package observability

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instrumentationName is the OTel scope for meters and tracers.
const instrumentationName = "synaptic/graph"

// MetricsRecorder records graph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordGraphRun records a graph run completion.
	RecordGraphRun(ctx context.Context, success bool, duration time.Duration)

	// RecordCheckpoint records a checkpoint save operation.
	RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64)

	// RecordToolCall records one tool invocation.
	RecordToolCall(ctx context.Context, toolName string, duration time.Duration, err error)

	// RecordModelCall records one chat model round trip.
	RecordModelCall(ctx context.Context, nodeID string, duration time.Duration, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	graphRuns      metric.Int64Counter
	graphLatency   metric.Float64Histogram
	checkpointSize metric.Int64Histogram
	toolCalls      metric.Int64Counter
	toolLatency    metric.Float64Histogram
	modelCalls     metric.Int64Counter
	modelLatency   metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// instruments creates meter instruments and collects their errors.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	in.errs = append(in.errs, err)
	return c
}

func (in *instruments) latency(name, desc string) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
	in.errs = append(in.errs, err)
	return h
}

func (in *instruments) bytes(name, desc string) metric.Int64Histogram {
	h, err := in.meter.Int64Histogram(name, metric.WithDescription(desc), metric.WithUnit("By"))
	in.errs = append(in.errs, err)
	return h
}

func newOtelMetrics() (*otelMetrics, error) {
	in := &instruments{meter: otel.Meter(instrumentationName)}
	m := &otelMetrics{
		nodeExecutions: in.counter("graph.node.executions", "Number of node executions"),
		nodeLatency:    in.latency("graph.node.latency_ms", "Node execution latency in milliseconds"),
		nodeErrors:     in.counter("graph.node.errors", "Number of node execution errors"),
		graphRuns:      in.counter("graph.runs", "Number of graph runs"),
		graphLatency:   in.latency("graph.latency_ms", "Graph run latency in milliseconds"),
		checkpointSize: in.bytes("graph.checkpoint.size_bytes", "Checkpoint size in bytes"),
		toolCalls:      in.counter("graph.tool.calls", "Number of tool invocations"),
		toolLatency:    in.latency("graph.tool.latency_ms", "Tool latency in milliseconds"),
		modelCalls:     in.counter("graph.model.calls", "Number of chat model calls"),
		modelLatency:   in.latency("graph.model.latency_ms", "Chat model latency in milliseconds"),
	}
	if err := errors.Join(in.errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// RecordNodeExecution records a node execution.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))

	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, millis(duration), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

// RecordGraphRun records a graph run.
func (m *otelMetrics) RecordGraphRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.graphRuns.Add(ctx, 1, attrs)
	m.graphLatency.Record(ctx, millis(duration), attrs)
}

// RecordCheckpoint records a checkpoint save.
func (m *otelMetrics) RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

// RecordToolCall records a tool invocation.
func (m *otelMetrics) RecordToolCall(ctx context.Context, toolName string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("tool", toolName),
		attribute.Bool("success", err == nil),
	)
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolLatency.Record(ctx, millis(duration), attrs)
}

// RecordModelCall records a chat model call.
func (m *otelMetrics) RecordModelCall(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.Bool("success", err == nil),
	)
	m.modelCalls.Add(ctx, 1, attrs)
	m.modelLatency.Record(ctx, millis(duration), attrs)
}
