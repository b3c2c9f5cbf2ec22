package observability

const (
	AttrProvider         = "llm.provider"
	AttrModelID          = "llm.model_id"
	AttrMaxTokens        = "llm.request.max_tokens"
	AttrTemperature      = "llm.request.temperature"
	AttrTopP             = "llm.request.top_p"
	AttrTopK             = "llm.request.top_k"
	AttrSeed             = "llm.request.seed"
	AttrInputTokens      = "llm.usage.input_tokens"
	AttrOutputTokens     = "llm.usage.output_tokens"
	AttrCost             = "llm.usage.cost"
	AttrTimeToFirstToken = "llm.stream.time_to_first_token_ms"
	AttrAgentName        = "agent.name"
	AttrAgentTurns       = "agent.turns"
	AttrToolName         = "tool.name"
	AttrToolCallID       = "tool.call_id"
	AttrErrorKind        = "error.kind"

	SpanGenerate      = "llm_sdk.generate"
	SpanStream        = "llm_sdk.stream"
	SpanAgentRun      = "agent.run"
	SpanToolExecution = "agent.tool_execution"

	DefaultServiceName = "llmwire"
)
