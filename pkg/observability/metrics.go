package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records model and tool call counters from the global meter
// provider.
type Metrics struct {
	calls        metric.Int64Counter
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
	toolCalls    metric.Int64Counter
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// InitGlobalMeter installs a periodic-reader meter provider. Optional;
// without it the global meter is a noop.
func InitGlobalMeter(exporter sdkmetric.Exporter) *sdkmetric.MeterProvider {
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(mp)
	return mp
}

// GetGlobalMetrics lazily builds the instrument set from the global
// meter provider.
func GetGlobalMetrics() *Metrics {
	metricsOnce.Do(func() {
		meter := otel.Meter("llmwire")

		m := &Metrics{}
		m.calls, _ = meter.Int64Counter("llm.calls",
			metric.WithDescription("Number of language model calls"))
		m.inputTokens, _ = meter.Int64Counter("llm.tokens.input",
			metric.WithDescription("Input tokens consumed"))
		m.outputTokens, _ = meter.Int64Counter("llm.tokens.output",
			metric.WithDescription("Output tokens produced"))
		m.duration, _ = meter.Float64Histogram("llm.call.duration",
			metric.WithDescription("Model call duration in seconds"),
			metric.WithUnit("s"))
		m.toolCalls, _ = meter.Int64Counter("agent.tool_calls",
			metric.WithDescription("Tool executions performed by agent runs"))
		globalMetrics = m
	})
	return globalMetrics
}

// RecordModelCall records one completed model call.
func (m *Metrics) RecordModelCall(ctx context.Context, provider, modelID string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrProvider, provider),
		attribute.String(AttrModelID, modelID),
		attribute.Bool("error", err != nil),
	)
	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
	if inputTokens > 0 {
		m.inputTokens.Add(ctx, int64(inputTokens), attrs)
	}
	if outputTokens > 0 {
		m.outputTokens.Add(ctx, int64(outputTokens), attrs)
	}
}

// RecordToolCall records one tool execution.
func (m *Metrics) RecordToolCall(ctx context.Context, agentName, toolName string, isError bool) {
	if m == nil {
		return
	}
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentName, agentName),
		attribute.String(AttrToolName, toolName),
		attribute.Bool("error", isError),
	))
}
