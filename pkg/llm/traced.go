package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/llmwire/llmwire/pkg/observability"
)

// TracedModel decorates a LanguageModel with one span per call plus
// call metrics. It never exports anything itself; exporters are wired
// by the application through pkg/observability.
type TracedModel struct {
	inner LanguageModel
}

// Traced wraps a model with tracing. Wrapping an already traced model
// returns it unchanged.
func Traced(model LanguageModel) LanguageModel {
	if _, ok := model.(*TracedModel); ok {
		return model
	}
	return &TracedModel{inner: model}
}

func (t *TracedModel) Provider() string                 { return t.inner.Provider() }
func (t *TracedModel) ModelID() string                  { return t.inner.ModelID() }
func (t *TracedModel) Metadata() *LanguageModelMetadata { return t.inner.Metadata() }

func (t *TracedModel) Generate(ctx context.Context, input *LanguageModelInput) (*ModelResponse, error) {
	tracer := observability.GetTracer("llmwire.llm")
	ctx, span := tracer.Start(ctx, observability.SpanGenerate,
		trace.WithAttributes(t.requestAttributes(input)...))
	defer span.End()

	start := time.Now()
	response, err := t.inner.Generate(ctx, input)
	t.recordOutcome(ctx, span, time.Since(start), responseUsage(response), responseCost(response), err)
	return response, err
}

func (t *TracedModel) Stream(ctx context.Context, input *LanguageModelInput) StreamResponse {
	return func(yield func(*PartialModelResponse, error) bool) {
		tracer := observability.GetTracer("llmwire.llm")
		ctx, span := tracer.Start(ctx, observability.SpanStream,
			trace.WithAttributes(t.requestAttributes(input)...))
		defer span.End()

		start := time.Now()
		var firstDelta *time.Duration
		var usage *ModelUsage
		var cost float64
		var hasCost bool
		var streamErr error

		for partial, err := range t.inner.Stream(ctx, input) {
			if err != nil {
				streamErr = err
				yield(nil, err)
				break
			}
			if partial.Delta != nil && firstDelta == nil {
				d := time.Since(start)
				firstDelta = &d
				span.SetAttributes(attribute.Int64(observability.AttrTimeToFirstToken, d.Milliseconds()))
			}
			if partial.Usage != nil {
				usage = SumUsage(usage, partial.Usage)
			}
			if partial.Cost != nil {
				cost += *partial.Cost
				hasCost = true
			}
			if !yield(partial, nil) {
				break
			}
		}

		var costPtr *float64
		if hasCost {
			costPtr = &cost
		}
		t.recordOutcome(ctx, span, time.Since(start), usage, costPtr, streamErr)
	}
}

func (t *TracedModel) requestAttributes(input *LanguageModelInput) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(observability.AttrProvider, t.inner.Provider()),
		attribute.String(observability.AttrModelID, t.inner.ModelID()),
	}
	if input.MaxTokens != nil {
		attrs = append(attrs, attribute.Int64(observability.AttrMaxTokens, int64(*input.MaxTokens)))
	}
	if input.Temperature != nil {
		attrs = append(attrs, attribute.Float64(observability.AttrTemperature, *input.Temperature))
	}
	if input.TopP != nil {
		attrs = append(attrs, attribute.Float64(observability.AttrTopP, *input.TopP))
	}
	if input.TopK != nil {
		attrs = append(attrs, attribute.Int64(observability.AttrTopK, int64(*input.TopK)))
	}
	if input.Seed != nil {
		attrs = append(attrs, attribute.Int64(observability.AttrSeed, *input.Seed))
	}
	return attrs
}

func (t *TracedModel) recordOutcome(ctx context.Context, span trace.Span, duration time.Duration, usage *ModelUsage, cost *float64, err error) {
	inputTokens, outputTokens := 0, 0
	if usage != nil {
		inputTokens = usage.InputTokens
		outputTokens = usage.OutputTokens
		span.SetAttributes(
			attribute.Int(observability.AttrInputTokens, usage.InputTokens),
			attribute.Int(observability.AttrOutputTokens, usage.OutputTokens),
		)
	}
	if cost != nil {
		span.SetAttributes(attribute.Float64(observability.AttrCost, *cost))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if kind := KindOf(err); kind != "" {
			span.SetAttributes(attribute.String(observability.AttrErrorKind, string(kind)))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}

	observability.GetGlobalMetrics().RecordModelCall(ctx, t.inner.Provider(), t.inner.ModelID(), duration, inputTokens, outputTokens, err)
}

func responseUsage(r *ModelResponse) *ModelUsage {
	if r == nil {
		return nil
	}
	return r.Usage
}

func responseCost(r *ModelResponse) *float64 {
	if r == nil {
		return nil
	}
	return r.Cost
}
