// Package agent implements the tool-calling turn loop: prompt the model,
// execute requested tools, feed results back, and checkpoint the finished
// turn atomically.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rubenqba/llm-assistant-api/internal/gateway"
	"github.com/rubenqba/llm-assistant-api/internal/prompt"
	"github.com/rubenqba/llm-assistant-api/internal/tools"
	"github.com/rubenqba/llm-assistant-api/internal/types"
	"github.com/rubenqba/llm-assistant-api/pkg/llm"
)

const fallbackResponse = "I seem to have lost my train of thought. Could you ask that again?"

// Loop drives one turn at a time through the model and the tool registry.
type Loop struct {
	provider  llm.Provider
	prompts   *prompt.Builder
	store     types.CheckpointStore
	registry  *tools.Registry
	maxRounds int
	logger    *slog.Logger
}

// New creates a Loop. maxRounds bounds how many tool rounds a single turn
// may take before the model is forced to answer.
func New(provider llm.Provider, prompts *prompt.Builder, store types.CheckpointStore, registry *tools.Registry, maxRounds int, logger *slog.Logger) *Loop {
	if maxRounds <= 0 {
		maxRounds = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		provider:  provider,
		prompts:   prompts,
		store:     store,
		registry:  registry,
		maxRounds: maxRounds,
		logger:    logger,
	}
}

// ProcessTurn executes the turn loop for a single turn. This is the
// function passed to Queue.SetProcessor.
//
// The transcript is read once at the start; everything the turn produces
// (user message, tool calls and results, assistant message) accumulates in
// memory and is appended to the checkpoint store in one call when the turn
// reaches its final answer. An aborted turn leaves the store untouched.
func (l *Loop) ProcessTurn(turn *gateway.Turn) error {
	ctx := turn.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	transcript, err := l.store.Transcript(ctx, turn.Thread)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	pending := []types.Entry{types.NewUserEntry(turn.Thread, turn.ID, turn.Input)}
	toolNames := l.registry.Names()

	for round := 0; round < l.maxRounds; round++ {
		messages, err := l.prompts.Build(turn.Thread, append(transcript, pending...), toolNames, turn.SystemPrompt)
		if err != nil {
			return fmt.Errorf("build prompt: %w", err)
		}

		resp, err := l.invoke(ctx, turn, messages, l.registry.AsLLMTools())
		if err != nil {
			return &ModelInvocationError{Round: round, Err: err}
		}

		if len(resp.ToolCalls) > 0 {
			for _, tc := range resp.ToolCalls {
				pending = append(pending, types.NewToolCallEntry(turn.Thread, turn.ID, tc.Function.Name, tc.ID, tc.Function.Arguments))
				result := l.executeTool(ctx, tc)
				pending = append(pending, types.NewToolResultEntry(turn.Thread, turn.ID, tc.Function.Name, tc.ID, result))
			}
			continue
		}

		final := resp.Content
		if strings.TrimSpace(final) == "" {
			final = fallbackResponse
		}
		return l.finish(ctx, turn, pending, final)
	}

	// Budget spent. Ask once more without tools so the model has to
	// wrap up with whatever it gathered.
	l.logger.Warn("turn exceeded tool budget", "turn_id", string(turn.ID), "thread", string(turn.Thread), "max_rounds", l.maxRounds, "error", ErrTurnBudget)
	final := fallbackResponse
	messages, err := l.prompts.Build(turn.Thread, append(transcript, pending...), toolNames, turn.SystemPrompt)
	if err == nil {
		messages = append(messages, llm.SystemMessage("Answer the guest now with what you have. Do not request more tools."))
		if resp, err := l.provider.Complete(ctx, messages, nil); err == nil && strings.TrimSpace(resp.Content) != "" {
			final = resp.Content
			if turn.OnChunk != nil {
				turn.OnChunk(final)
			}
		}
	}
	return l.finish(ctx, turn, pending, final)
}

// invoke calls the provider, streaming when the turn has a chunk consumer.
// A failing consumer stops the relay but the aggregation continues so the
// turn can still complete.
func (l *Loop) invoke(ctx context.Context, turn *gateway.Turn, messages []llm.Message, available []llm.Tool) (*llm.Response, error) {
	if turn.OnChunk == nil {
		return l.provider.Complete(ctx, messages, available)
	}

	deltas, err := l.provider.Stream(ctx, messages, available)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	var calls []llm.ToolCall
	relay := true
	for delta := range deltas {
		if delta.Err != nil {
			return nil, fmt.Errorf("stream failed: %w", delta.Err)
		}
		if delta.Content != "" {
			content.WriteString(delta.Content)
			if relay {
				if err := turn.OnChunk(delta.Content); err != nil {
					l.logger.Debug("chunk consumer gone, finishing turn silently", "turn_id", string(turn.ID), "error", err)
					relay = false
				}
			}
		}
		if len(delta.ToolCalls) > 0 {
			calls = append(calls, delta.ToolCalls...)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &llm.Response{Content: content.String(), ToolCalls: calls}, nil
}

// executeTool runs one tool call, folding every failure mode into text
// the model can react to. Unknown tools and bad arguments are reported,
// never fatal.
func (l *Loop) executeTool(ctx context.Context, tc llm.ToolCall) string {
	tool, ok := l.registry.Get(tc.Function.Name)
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", tc.Function.Name)
	}
	result, err := tool.Execute(ctx, tc.Function.Arguments)
	if err != nil {
		var argErr *tools.ArgumentError
		if errors.As(err, &argErr) {
			l.logger.Debug("tool rejected arguments", "tool", tc.Function.Name, "error", err)
		} else {
			l.logger.Warn("tool execution failed", "tool", tc.Function.Name, "error", err)
		}
		return fmt.Sprintf("error: %v", err)
	}
	return result
}

func (l *Loop) finish(ctx context.Context, turn *gateway.Turn, pending []types.Entry, final string) error {
	pending = append(pending, types.NewAssistantEntry(turn.Thread, turn.ID, final))
	if err := l.store.Append(ctx, turn.Thread, pending); err != nil {
		return fmt.Errorf("checkpoint turn: %w", err)
	}
	if turn.OnComplete != nil {
		turn.OnComplete(final)
	}
	return nil
}
