package gateway

import (
	"context"
	"time"

	"github.com/rubenqba/llm-assistant-api/internal/types"
)

// TurnStatus represents the lifecycle state of a Turn.
type TurnStatus string

const (
	TurnStatusQueued   TurnStatus = "queued"
	TurnStatusRunning  TurnStatus = "running"
	TurnStatusComplete TurnStatus = "complete"
	TurnStatusFailed   TurnStatus = "failed"
)

// Turn tracks a single execution of a guest message against a thread.
// Ctx is assigned by the queue when the turn starts; it is the queue's
// lifecycle context, not the submitting request's, so a caller that
// disconnects does not abort a turn already in flight.
type Turn struct {
	ID           types.TurnID
	Thread       types.ThreadID
	Input        string
	SystemPrompt string
	Channel      string
	Status       TurnStatus
	CreatedAt    time.Time
	Ctx          context.Context

	// OnChunk receives streamed response fragments. Returning an error
	// stops further delivery; the turn still runs to completion.
	OnChunk    func(chunk string) error
	OnComplete func(response string)
	OnError    func(err error)
}

// NewTurn creates a Turn in the Queued state.
func NewTurn(thread types.ThreadID, input string) *Turn {
	return &Turn{
		ID:        types.NewTurnID(),
		Thread:    thread,
		Input:     input,
		Status:    TurnStatusQueued,
		CreatedAt: time.Now(),
	}
}
