package agent

import (
	"context"

	"github.com/llmwire/llmwire/pkg/tool"
)

// Toolkit is a factory of per-run sessions. A session can surface an
// extra instruction block and a dynamic tool list, both re-queried at
// the start of every turn so the toolkit can evolve within a run.
type Toolkit[C any] interface {
	CreateSession(ctx context.Context, runContext C) (ToolkitSession, error)
}

// ToolkitSession is owned by exactly one run and closed when it ends.
type ToolkitSession interface {
	// SystemPrompt returns an additional instruction block, nil for
	// none.
	SystemPrompt() *string

	// Tools returns the tools valid for the coming turn.
	Tools() []tool.Tool

	// Close releases the session. Called exactly once.
	Close() error
}

// ToolkitFunc adapts a session-constructor function into a Toolkit.
type ToolkitFunc[C any] func(ctx context.Context, runContext C) (ToolkitSession, error)

func (f ToolkitFunc[C]) CreateSession(ctx context.Context, runContext C) (ToolkitSession, error) {
	return f(ctx, runContext)
}

// StaticToolkitSession is a ToolkitSession with a fixed surface.
type StaticToolkitSession struct {
	Prompt   *string
	ToolList []tool.Tool
	OnClose  func() error
}

func (s *StaticToolkitSession) SystemPrompt() *string { return s.Prompt }
func (s *StaticToolkitSession) Tools() []tool.Tool    { return s.ToolList }

func (s *StaticToolkitSession) Close() error {
	if s.OnClose != nil {
		return s.OnClose()
	}
	return nil
}
