package agent

import (
	"errors"
	"fmt"
)

// ErrTurnBudget marks a turn that spent its tool-round budget before the
// model produced a final answer. The guest still gets a best-effort
// response; the sentinel is for logs and tests.
var ErrTurnBudget = errors.New("tool round budget exceeded")

// ModelInvocationError wraps a provider failure during a turn. The turn
// is aborted and nothing is checkpointed.
type ModelInvocationError struct {
	Round int
	Err   error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation failed on round %d: %v", e.Round, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }
