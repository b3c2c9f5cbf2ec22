// Package agent implements the tool-executing run loop on top of the
// llm facade: it alternates model calls with tool executions until the
// model stops requesting tools or the turn limit is hit, emitting a
// uniform event stream along the way.
package agent

import (
	"context"
	"iter"

	"github.com/llmwire/llmwire/pkg/llm"
	"github.com/llmwire/llmwire/pkg/tool"
)

const defaultMaxTurns = 10

// Agent is a stateless blueprint: name, model, instructions and tool
// surface. Safe to share; each Run owns its own mutable state.
type Agent[C any] struct {
	name           string
	model          llm.LanguageModel
	instructions   []InstructionParam[C]
	tools          []tool.Tool
	toolkits       []Toolkit[C]
	responseFormat *llm.ResponseFormatOption
	maxTurns       int
	estimator      *llm.TokenEstimator

	maxTokens   *uint32
	temperature *float64
	topP        *float64
	modalities  []llm.Modality
	audio       *llm.AudioOptions
	reasoning   *llm.ReasoningOptions
}

// Option configures an Agent.
type Option[C any] func(*Agent[C])

// WithInstructions appends instruction blocks, resolved in order each
// turn.
func WithInstructions[C any](instructions ...InstructionParam[C]) Option[C] {
	return func(a *Agent[C]) { a.instructions = append(a.instructions, instructions...) }
}

// WithTools appends static tools.
func WithTools[C any](tools ...tool.Tool) Option[C] {
	return func(a *Agent[C]) { a.tools = append(a.tools, tools...) }
}

// WithToolkits appends toolkits; each run creates one session per
// toolkit.
func WithToolkits[C any](toolkits ...Toolkit[C]) Option[C] {
	return func(a *Agent[C]) { a.toolkits = append(a.toolkits, toolkits...) }
}

// WithResponseFormat constrains the model output format.
func WithResponseFormat[C any](format llm.ResponseFormatOption) Option[C] {
	return func(a *Agent[C]) { a.responseFormat = &format }
}

// WithTokenEstimator installs a tokenizer-backed estimator behind the
// per-turn prompt size diagnostic. Without one the estimate degrades to
// a coarse byte-length approximation.
func WithTokenEstimator[C any](estimator *llm.TokenEstimator) Option[C] {
	return func(a *Agent[C]) { a.estimator = estimator }
}

// WithMaxTurns bounds model calls per run. Default 10.
func WithMaxTurns[C any](maxTurns int) Option[C] {
	return func(a *Agent[C]) { a.maxTurns = maxTurns }
}

// WithMaxTokens caps each model call's output.
func WithMaxTokens[C any](maxTokens uint32) Option[C] {
	return func(a *Agent[C]) { a.maxTokens = &maxTokens }
}

// WithTemperature sets the sampling temperature.
func WithTemperature[C any](temperature float64) Option[C] {
	return func(a *Agent[C]) { a.temperature = &temperature }
}

// WithTopP sets nucleus sampling.
func WithTopP[C any](topP float64) Option[C] {
	return func(a *Agent[C]) { a.topP = &topP }
}

// WithModalities requests output modalities.
func WithModalities[C any](modalities ...llm.Modality) Option[C] {
	return func(a *Agent[C]) { a.modalities = modalities }
}

// WithAudio configures audio output.
func WithAudio[C any](audio llm.AudioOptions) Option[C] {
	return func(a *Agent[C]) { a.audio = &audio }
}

// WithReasoning configures the model's reasoning surface.
func WithReasoning[C any](reasoning llm.ReasoningOptions) Option[C] {
	return func(a *Agent[C]) { a.reasoning = &reasoning }
}

// New builds an agent blueprint around a model.
func New[C any](name string, model llm.LanguageModel, opts ...Option[C]) *Agent[C] {
	a := &Agent[C]{
		name:     name,
		model:    model,
		maxTurns: defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the agent name used in spans and metrics.
func (a *Agent[C]) Name() string { return a.name }

// AgentRequest is the input to one run: the prior conversation as
// items, plus the caller's context value threaded to instructions and
// toolkits.
type AgentRequest[C any] struct {
	Input   []AgentItem
	Context C
}

// Run drives a non-streaming run to completion.
func (a *Agent[C]) Run(ctx context.Context, request AgentRequest[C]) (*AgentResponse, error) {
	session, err := a.newRun(ctx, request)
	if err != nil {
		return nil, err
	}
	defer session.close()
	return session.run(ctx)
}

// RunStream drives a run, yielding events as they materialize: every
// model partial, each item on completion, and the final response.
// Breaking out of the range aborts the run.
func (a *Agent[C]) RunStream(ctx context.Context, request AgentRequest[C]) iter.Seq2[*AgentStreamEvent, error] {
	return func(yield func(*AgentStreamEvent, error) bool) {
		session, err := a.newRun(ctx, request)
		if err != nil {
			yield(nil, err)
			return
		}
		defer session.close()
		session.runStream(ctx, yield)
	}
}
