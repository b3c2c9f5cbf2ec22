package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/llmwire/llmwire/pkg/config"
	"github.com/llmwire/llmwire/pkg/llm"
	"github.com/llmwire/llmwire/pkg/llms"
	"github.com/llmwire/llmwire/pkg/observability"
)

// ChatCmd streams one model turn to stdout.
type ChatCmd struct {
	Prompt []string `arg:"" help:"User prompt."`
	System string   `help:"Optional system prompt."`
}

func (c *ChatCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if _, err := observability.InitGlobalTracer(ctx, tracerConfig(cfg)); err != nil {
		return err
	}

	model, err := llms.New(&cfg.Model)
	if err != nil {
		return err
	}
	model = llm.Traced(model)

	input := &llm.LanguageModelInput{
		Messages: []llm.Message{llm.NewUserMessage(llm.NewTextPart(strings.Join(c.Prompt, " ")))},
	}
	if c.System != "" {
		input.SystemPrompt = &c.System
	}

	accumulator := llm.NewStreamAccumulator()
	for partial, err := range model.Stream(ctx, input) {
		if err != nil {
			return err
		}
		if err := accumulator.AddPartial(partial); err != nil {
			return err
		}
		if partial.Delta != nil && partial.Delta.Part.TextPartDelta != nil {
			fmt.Print(partial.Delta.Part.TextPartDelta.Text)
		}
	}
	fmt.Println()

	response, err := accumulator.Response()
	if err != nil {
		return err
	}
	if response.Usage != nil {
		fmt.Fprintf(os.Stderr, "tokens: %d in, %d out", response.Usage.InputTokens, response.Usage.OutputTokens)
		if response.Cost != nil {
			fmt.Fprintf(os.Stderr, ", cost: $%.6f", *response.Cost)
		}
		fmt.Fprintln(os.Stderr)
		return nil
	}

	// Not every provider reports usage on streams; estimate the prompt
	// side so the summary line is never silent.
	estimator, err := llm.NewTokenEstimator(cfg.Model.ModelID)
	if err != nil {
		return nil
	}
	fmt.Fprintf(os.Stderr, "tokens: ~%d in (estimated)\n", estimator.CountInput(input))
	return nil
}

func tracerConfig(cfg *config.Config) observability.TracerConfig {
	return observability.TracerConfig{
		Enabled:      cfg.Tracing.Enabled,
		ExporterType: cfg.Tracing.ExporterType,
		EndpointURL:  cfg.Tracing.EndpointURL,
		SamplingRate: cfg.Tracing.SamplingRate,
		ServiceName:  cfg.Tracing.ServiceName,
	}
}
