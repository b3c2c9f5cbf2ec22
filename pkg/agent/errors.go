package agent

import "fmt"

// MaxTurnsExceededError signals that a run hit its turn limit with the
// model still requesting tools. Output carries the items produced
// before the limit so callers can resume or inspect.
type MaxTurnsExceededError struct {
	MaxTurns int
	Output   []AgentItem
}

func (e *MaxTurnsExceededError) Error() string {
	return fmt.Sprintf("run exceeded %d turns with outstanding tool calls", e.MaxTurns)
}
