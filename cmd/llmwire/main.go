// Command llmwire is a demo consumer of the library: a streaming chat
// command and a small SSE server exposing an agent run endpoint.
package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/llmwire/llmwire/pkg/logger"
)

var cli struct {
	Config   string `short:"c" default:"llmwire.yaml" help:"Path to the config file."`
	LogLevel string `default:"warn" enum:"debug,info,warn,error" help:"Log level."`

	Chat  ChatCmd  `cmd:"" help:"Stream a one-shot conversation against the configured model."`
	Serve ServeCmd `cmd:"" help:"Serve agent runs over SSE."`
}

func main() {
	// Missing .env is fine; explicit environment wins anyway.
	_ = godotenv.Load()

	kctx := kong.Parse(&cli,
		kong.Name("llmwire"),
		kong.Description("Cross-provider LLM client and agent runtime."),
		kong.UsageOnError(),
	)
	logger.Init(kctx.Stderr, logger.ParseLevel(cli.LogLevel))
	kctx.FatalIfErrorf(kctx.Run())
}
