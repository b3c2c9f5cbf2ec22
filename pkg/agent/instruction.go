package agent

import (
	"context"
	"strings"
)

// InstructionFunc derives an instruction block from the caller-supplied
// run context value. Re-evaluated at the start of every turn.
type InstructionFunc[C any] func(ctx context.Context, runContext C) (string, error)

// InstructionParam is one entry of an agent's instruction list: either
// a static string or a function of the run context.
type InstructionParam[C any] struct {
	Static string
	Func   InstructionFunc[C]
}

// Instruction wraps a static instruction string.
func Instruction[C any](text string) InstructionParam[C] {
	return InstructionParam[C]{Static: text}
}

// InstructionFn wraps a dynamic instruction.
func InstructionFn[C any](fn InstructionFunc[C]) InstructionParam[C] {
	return InstructionParam[C]{Func: fn}
}

// resolveInstructions concatenates all instruction blocks with single
// newlines, skipping empties.
func resolveInstructions[C any](ctx context.Context, params []InstructionParam[C], runContext C, extra []string) (string, error) {
	var blocks []string
	for _, param := range params {
		block := param.Static
		if param.Func != nil {
			resolved, err := param.Func(ctx, runContext)
			if err != nil {
				return "", err
			}
			block = resolved
		}
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	for _, block := range extra {
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n"), nil
}
