package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/llmwire/llmwire/pkg/agent"
	"github.com/llmwire/llmwire/pkg/config"
	"github.com/llmwire/llmwire/pkg/llm"
	"github.com/llmwire/llmwire/pkg/llms"
	"github.com/llmwire/llmwire/pkg/observability"
)

// ServeCmd exposes agent runs over an SSE endpoint.
type ServeCmd struct {
	Addr string `default:":8080" help:"Listen address."`
	Name string `default:"assistant" help:"Agent name."`
}

// agentStreamRequest is the POST body of /v1/agent/stream.
type agentStreamRequest struct {
	Input        []agent.AgentItem `json:"input"`
	Instructions string            `json:"instructions,omitempty"`
}

func (s *ServeCmd) Run() error {
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

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Post("/v1/agent/stream", func(w http.ResponseWriter, r *http.Request) {
		var request agentStreamRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var opts []agent.Option[struct{}]
		if request.Instructions != "" {
			opts = append(opts, agent.WithInstructions(agent.Instruction[struct{}](request.Instructions)))
		}
		a := agent.New(s.Name, model, opts...)

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)

		for event, err := range a.RunStream(r.Context(), agent.AgentRequest[struct{}]{Input: request.Input}) {
			if err != nil {
				payload, _ := json.Marshal(map[string]string{"error": err.Error()})
				fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
				flusher.Flush()
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				slog.Error("failed to encode event", "error", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})

	server := &http.Server{Addr: s.Addr, Handler: router}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	slog.Info("listening", "addr", s.Addr, "provider", cfg.Model.Provider, "model", cfg.Model.ModelID)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
