package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/llmwire/llmwire/pkg/llm"
	"github.com/llmwire/llmwire/pkg/observability"
	"github.com/llmwire/llmwire/pkg/tool"
)

// runSession owns the mutable state of one run: toolkit sessions, the
// produced items, and the growing conversation.
type runSession[C any] struct {
	agent    *Agent[C]
	request  AgentRequest[C]
	sessions []ToolkitSession
	// items produced this run, in emission order.
	items []AgentItem
}

func (a *Agent[C]) newRun(ctx context.Context, request AgentRequest[C]) (*runSession[C], error) {
	session := &runSession[C]{agent: a, request: request}
	for _, toolkit := range a.toolkits {
		toolkitSession, err := toolkit.CreateSession(ctx, request.Context)
		if err != nil {
			session.close()
			return nil, fmt.Errorf("failed to create toolkit session: %w", err)
		}
		session.sessions = append(session.sessions, toolkitSession)
	}
	return session, nil
}

func (r *runSession[C]) close() {
	for _, session := range r.sessions {
		_ = session.Close()
	}
	r.sessions = nil
}

// turnTools merges static tools with each session's current list.
// Later names shadow earlier ones.
func (r *runSession[C]) turnTools() ([]tool.Tool, map[string]tool.Tool) {
	var list []tool.Tool
	byName := map[string]tool.Tool{}
	for _, t := range r.agent.tools {
		list = append(list, t)
		byName[t.Name()] = t
	}
	for _, session := range r.sessions {
		for _, t := range session.Tools() {
			list = append(list, t)
			byName[t.Name()] = t
		}
	}
	return list, byName
}

// modelInput assembles the input for the coming turn from the request
// items plus everything produced so far.
func (r *runSession[C]) modelInput(ctx context.Context, tools []tool.Tool) (*llm.LanguageModelInput, error) {
	var sessionPrompts []string
	for _, session := range r.sessions {
		if prompt := session.SystemPrompt(); prompt != nil {
			sessionPrompts = append(sessionPrompts, *prompt)
		}
	}
	systemPrompt, err := resolveInstructions(ctx, r.agent.instructions, r.request.Context, sessionPrompts)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve instructions: %w", err)
	}

	conversation := append(append([]AgentItem{}, r.request.Input...), r.items...)
	input := &llm.LanguageModelInput{
		Messages:       serializeItems(conversation),
		Tools:          tool.Definitions(tools),
		ResponseFormat: r.agent.responseFormat,
		MaxTokens:      r.agent.maxTokens,
		Temperature:    r.agent.temperature,
		TopP:           r.agent.topP,
		Modalities:     r.agent.modalities,
		Audio:          r.agent.audio,
		Reasoning:      r.agent.reasoning,
	}
	if systemPrompt != "" {
		input.SystemPrompt = &systemPrompt
	}
	return input, nil
}

// logPromptSize reports the estimated prompt tokens for the coming
// call. Providers report real usage only after the call returns, so
// the estimate is the only size signal available while the prompt is
// being assembled.
func (r *runSession[C]) logPromptSize(ctx context.Context, input *llm.LanguageModelInput, turn int) {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}
	slog.DebugContext(ctx, "assembled model input",
		"agent", r.agent.name,
		"turn", turn,
		"messages", len(input.Messages),
		"estimated_input_tokens", r.agent.estimator.CountInput(input))
}

// toolCalls extracts tool-call parts from assistant content.
func toolCalls(content []llm.Part) []*llm.ToolCallPart {
	var calls []*llm.ToolCallPart
	for _, part := range content {
		if part.ToolCallPart != nil {
			calls = append(calls, part.ToolCallPart)
		}
	}
	return calls
}

func (r *runSession[C]) run(ctx context.Context) (*AgentResponse, error) {
	tracer := observability.GetTracer("llmwire.agent")
	ctx, span := tracer.Start(ctx, observability.SpanAgentRun,
		trace.WithAttributes(attribute.String(observability.AttrAgentName, r.agent.name)))
	defer span.End()

	response, err := r.loop(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int(observability.AttrAgentTurns, countModelItems(r.items)))
	return response, nil
}

func (r *runSession[C]) runStream(ctx context.Context, yield func(*AgentStreamEvent, error) bool) {
	tracer := observability.GetTracer("llmwire.agent")
	ctx, span := tracer.Start(ctx, observability.SpanAgentRun,
		trace.WithAttributes(attribute.String(observability.AttrAgentName, r.agent.name)))
	defer span.End()

	stopped := false
	response, err := r.loop(ctx, func(event *AgentStreamEvent) bool {
		if !yield(event, nil) {
			stopped = true
			return false
		}
		return true
	})
	if stopped {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		yield(nil, err)
		return
	}
	span.SetAttributes(attribute.Int(observability.AttrAgentTurns, countModelItems(r.items)))
	yield(&AgentStreamEvent{Response: response}, nil)
}

// loop is the turn-taking state machine shared by both run modes. emit
// is nil for non-streaming runs; returning false from emit aborts.
func (r *runSession[C]) loop(ctx context.Context, emit func(*AgentStreamEvent) bool) (*AgentResponse, error) {
	for turn := 1; ; turn++ {
		tools, toolsByName := r.turnTools()
		input, err := r.modelInput(ctx, tools)
		if err != nil {
			return nil, err
		}
		r.logPromptSize(ctx, input, turn)

		response, err := r.invokeModel(ctx, input, emit)
		if err != nil {
			return nil, err
		}

		modelItem := NewModelItem(response, input)
		r.items = append(r.items, modelItem)
		if emit != nil && !emit(&AgentStreamEvent{Item: &modelItem}) {
			return nil, errAborted
		}

		calls := toolCalls(response.Content)
		if len(calls) == 0 {
			return &AgentResponse{Output: r.items, Content: response.Content}, nil
		}

		toolItems, err := r.executeTools(ctx, calls, toolsByName, emit)
		r.items = append(r.items, toolItems...)
		if err != nil {
			return nil, err
		}

		if turn >= r.agent.maxTurns {
			return nil, &MaxTurnsExceededError{MaxTurns: r.agent.maxTurns, Output: r.items}
		}
	}
}

// errAborted marks that the event consumer broke out of the range; it
// never surfaces to callers.
var errAborted = fmt.Errorf("run aborted by consumer")

// invokeModel performs one model call: streaming with per-delta events
// when emit is set, a single generate otherwise.
func (r *runSession[C]) invokeModel(ctx context.Context, input *llm.LanguageModelInput, emit func(*AgentStreamEvent) bool) (*llm.ModelResponse, error) {
	if emit == nil {
		return r.agent.model.Generate(ctx, input)
	}

	accumulator := llm.NewStreamAccumulator()
	for partial, err := range r.agent.model.Stream(ctx, input) {
		if err != nil {
			return nil, err
		}
		if err := accumulator.AddPartial(partial); err != nil {
			return nil, err
		}
		if !emit(&AgentStreamEvent{Partial: partial}) {
			return nil, errAborted
		}
	}
	return accumulator.Response()
}

// executeTools runs a turn's tool calls concurrently. Tool failures
// become is_error results, never errors; only cancellation aborts.
// Items are returned in completion order and emitted as they finish.
func (r *runSession[C]) executeTools(ctx context.Context, calls []*llm.ToolCallPart, toolsByName map[string]tool.Tool, emit func(*AgentStreamEvent) bool) ([]AgentItem, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	results := make(chan AgentItem, len(calls))

	for _, call := range calls {
		group.Go(func() error {
			item := r.executeTool(groupCtx, call, toolsByName)
			select {
			case results <- item:
				return nil
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		})
	}

	var items []AgentItem
	for range calls {
		select {
		case item := <-results:
			items = append(items, item)
			if emit != nil && !emit(&AgentStreamEvent{Item: &item}) {
				// Wait for in-flight tools before abandoning the run.
				_ = group.Wait()
				return items, errAborted
			}
		case <-ctx.Done():
			_ = group.Wait()
			return items, llm.NewTransportError("run cancelled during tool execution", ctx.Err())
		}
	}
	if err := group.Wait(); err != nil {
		return items, llm.NewTransportError("tool execution interrupted", err)
	}
	return items, nil
}

func (r *runSession[C]) executeTool(ctx context.Context, call *llm.ToolCallPart, toolsByName map[string]tool.Tool) AgentItem {
	tracer := observability.GetTracer("llmwire.agent")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution, trace.WithAttributes(
		attribute.String(observability.AttrAgentName, r.agent.name),
		attribute.String(observability.AttrToolName, call.ToolName),
		attribute.String(observability.AttrToolCallID, call.ToolCallID),
	))
	defer span.End()

	output, isError := r.runTool(ctx, call, toolsByName)
	if isError {
		span.SetStatus(codes.Error, "tool execution failed")
	}
	observability.GetGlobalMetrics().RecordToolCall(ctx, r.agent.name, call.ToolName, isError)
	return NewToolItem(call.ToolCallID, call.ToolName, call.Args, output, isError)
}

func (r *runSession[C]) runTool(ctx context.Context, call *llm.ToolCallPart, toolsByName map[string]tool.Tool) ([]llm.Part, bool) {
	t, ok := toolsByName[call.ToolName]
	if !ok {
		return []llm.Part{llm.NewTextPart(fmt.Sprintf("unknown tool %q", call.ToolName))}, true
	}
	if call.Args != nil && !json.Valid(call.Args) {
		return []llm.Part{llm.NewTextPart("tool arguments are not valid JSON")}, true
	}
	output, err := t.Execute(ctx, call.Args)
	if err != nil {
		return []llm.Part{llm.NewTextPart(fmt.Sprintf("tool execution failed: %v", err))}, true
	}
	return output, false
}

func countModelItems(items []AgentItem) int {
	turns := 0
	for _, item := range items {
		if item.Model != nil {
			turns++
		}
	}
	return turns
}
