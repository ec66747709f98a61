// Package gateway serializes guest turns per thread and bounds global
// concurrency across threads.
package gateway

import (
	"context"
	"sync"

	"github.com/rubenqba/llm-assistant-api/internal/types"
)

// Gateway wraps inbound messages in turns and enqueues them for
// processing. Turns on the same thread run strictly in arrival order;
// turns on different threads run concurrently up to the queue limit.
type Gateway struct {
	Queue *Queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway with the given concurrency limit for simultaneous
// turn processing.
func New(maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 4
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	return &Gateway{Queue: NewQueue(concurrency)}
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// TurnOption configures optional behavior on a Turn.
type TurnOption func(*Turn)

// WithSystemPrompt overrides the persona for this turn only.
func WithSystemPrompt(prompt string) TurnOption {
	return func(t *Turn) { t.SystemPrompt = prompt }
}

// WithChannel tags the turn with the formatting channel it came from.
func WithChannel(channel string) TurnOption {
	return func(t *Turn) { t.Channel = channel }
}

// WithOnChunk sets a callback receiving streamed response fragments.
func WithOnChunk(fn func(string) error) TurnOption {
	return func(t *Turn) { t.OnChunk = fn }
}

// WithOnComplete sets a callback invoked with the final response.
func WithOnComplete(fn func(string)) TurnOption {
	return func(t *Turn) { t.OnComplete = fn }
}

// WithOnError sets a callback invoked when the turn fails.
func WithOnError(fn func(error)) TurnOption {
	return func(t *Turn) { t.OnError = fn }
}

// Submit wraps a guest message in a Turn and enqueues it on the thread's
// lane. An empty thread falls back to the default thread.
func (g *Gateway) Submit(thread types.ThreadID, input string, opts ...TurnOption) (*Turn, error) {
	turn := NewTurn(thread.OrDefault(), input)
	for _, opt := range opts {
		opt(turn)
	}
	if err := g.Queue.Enqueue(turn); err != nil {
		return nil, err
	}
	return turn, nil
}
