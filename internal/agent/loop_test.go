package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rubenqba/llm-assistant-api/internal/gateway"
	"github.com/rubenqba/llm-assistant-api/internal/prompt"
	"github.com/rubenqba/llm-assistant-api/internal/state"
	"github.com/rubenqba/llm-assistant-api/internal/tools"
	"github.com/rubenqba/llm-assistant-api/internal/types"
	"github.com/rubenqba/llm-assistant-api/pkg/llm"
)

// mockProvider returns pre-configured responses in order.
type mockProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	err       error
	callCount int
}

func (m *mockProvider) next() (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	idx := m.callCount
	m.callCount++
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return &llm.Response{Content: "fallback"}, nil
}

func (m *mockProvider) Complete(_ context.Context, _ []llm.Message, _ []llm.Tool) (*llm.Response, error) {
	return m.next()
}

func (m *mockProvider) Stream(_ context.Context, _ []llm.Message, _ []llm.Tool) (<-chan llm.Delta, error) {
	resp, err := m.next()
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.Delta, 8)
	go func() {
		defer close(ch)
		for _, word := range strings.SplitAfter(resp.Content, " ") {
			if word != "" {
				ch <- llm.Delta{Content: word}
			}
		}
		if len(resp.ToolCalls) > 0 {
			ch <- llm.Delta{ToolCalls: resp.ToolCalls}
		}
	}()
	return ch, nil
}

func (m *mockProvider) CompleteStructured(_ context.Context, _ []llm.Message, _ llm.Schema, _ any) error {
	return errors.New("not implemented")
}

// echoTool records its arguments and returns a fixed result.
type echoTool struct {
	mu       sync.Mutex
	lastArgs string
	result   string
	err      error
}

func (e *echoTool) Name() string        { return "get_cocktail_by_name" }
func (e *echoTool) Description() string { return "test tool" }
func (e *echoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}}}`)
}
func (e *echoTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastArgs = string(args)
	return e.result, e.err
}

func newTestLoop(t *testing.T, provider llm.Provider, registry *tools.Registry, maxRounds int) (*Loop, *state.CheckpointStore) {
	t.Helper()
	store := state.NewCheckpointStore(t.TempDir())
	prompts, err := prompt.New("gpt-4", 128000, 4096, "")
	if err != nil {
		t.Fatal(err)
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return New(provider, prompts, store, registry, maxRounds, nil), store
}

func TestProcessTurnSimpleResponse(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{{Content: "A margarita needs tequila."}}}
	loop, store := newTestLoop(t, provider, nil, 10)

	var result string
	turn := gateway.NewTurn("t1", "what goes in a margarita?")
	turn.OnComplete = func(resp string) { result = resp }

	if err := loop.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}
	if result != "A margarita needs tequila." {
		t.Errorf("callback result = %q", result)
	}

	entries, err := store.Transcript(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != types.EntryUser || entries[1].Kind != types.EntryAssistant {
		t.Errorf("unexpected kinds: %s, %s", entries[0].Kind, entries[1].Kind)
	}
	if entries[0].TurnID != turn.ID || entries[1].TurnID != turn.ID {
		t.Error("entries not tagged with turn id")
	}
}

func TestProcessTurnWithToolCall(t *testing.T) {
	tool := &echoTool{result: `{"name":"Margarita"}`}
	registry := tools.NewRegistry()
	registry.Register(tool)

	provider := &mockProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: llm.FunctionCall{
				Name:      "get_cocktail_by_name",
				Arguments: json.RawMessage(`{"name":"Margarita"}`),
			},
		}}},
		{Content: "Here's the recipe."},
	}}
	loop, store := newTestLoop(t, provider, registry, 10)

	turn := gateway.NewTurn("t1", "margarita?")
	if err := loop.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}

	if tool.lastArgs != `{"name":"Margarita"}` {
		t.Errorf("tool args = %s", tool.lastArgs)
	}

	entries, err := store.Transcript(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	wantKinds := []types.EntryKind{types.EntryUser, types.EntryToolCall, types.EntryToolResult, types.EntryAssistant}
	for i, want := range wantKinds {
		if entries[i].Kind != want {
			t.Errorf("entry %d kind = %s, want %s", i, entries[i].Kind, want)
		}
	}
	if entries[2].Content != `{"name":"Margarita"}` {
		t.Errorf("tool result content = %s", entries[2].Content)
	}
}

func TestProcessTurnUnknownTool(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: llm.FunctionCall{Name: "summon_bartender", Arguments: json.RawMessage(`{}`)},
		}}},
		{Content: "done"},
	}}
	loop, store := newTestLoop(t, provider, nil, 10)

	if err := loop.ProcessTurn(gateway.NewTurn("t1", "hi")); err != nil {
		t.Fatal(err)
	}

	entries, _ := store.Transcript(context.Background(), "t1")
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if !strings.Contains(entries[2].Content, "unknown tool") {
		t.Errorf("tool result = %q", entries[2].Content)
	}
}

func TestProcessTurnProviderFailure(t *testing.T) {
	provider := &mockProvider{err: errors.New("rate limited")}
	loop, store := newTestLoop(t, provider, nil, 10)

	err := loop.ProcessTurn(gateway.NewTurn("t1", "hi"))
	var invErr *ModelInvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ModelInvocationError, got %v", err)
	}

	// Nothing checkpointed on an aborted turn.
	count, err := store.Count(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected empty transcript, got %d entries", count)
	}
}

func TestProcessTurnStreaming(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{{Content: "shake well and serve"}}}
	loop, store := newTestLoop(t, provider, nil, 10)

	var chunks []string
	var result string
	turn := gateway.NewTurn("t1", "how do I serve it?")
	turn.OnChunk = func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	}
	turn.OnComplete = func(resp string) { result = resp }

	if err := loop.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Errorf("expected multiple chunks, got %d", len(chunks))
	}
	if joined := strings.Join(chunks, ""); joined != "shake well and serve" {
		t.Errorf("chunks reassemble to %q", joined)
	}
	if result != "shake well and serve" {
		t.Errorf("final result = %q", result)
	}

	count, _ := store.Count(context.Background(), "t1")
	if count != 2 {
		t.Errorf("expected 2 entries, got %d", count)
	}
}

func TestProcessTurnStreamConsumerGone(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{{Content: "one two three four"}}}
	loop, store := newTestLoop(t, provider, nil, 10)

	var delivered int
	turn := gateway.NewTurn("t1", "hi")
	turn.OnChunk = func(chunk string) error {
		delivered++
		if delivered >= 2 {
			return errors.New("client disconnected")
		}
		return nil
	}

	// The turn still completes and checkpoints.
	if err := loop.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}
	count, _ := store.Count(context.Background(), "t1")
	if count != 2 {
		t.Errorf("expected 2 entries, got %d", count)
	}
}

// brokenStreamProvider emits some content, then an error delta, as a
// provider does when the connection drops mid-stream.
type brokenStreamProvider struct {
	mockProvider
}

func (b *brokenStreamProvider) Stream(_ context.Context, _ []llm.Message, _ []llm.Tool) (<-chan llm.Delta, error) {
	ch := make(chan llm.Delta, 3)
	ch <- llm.Delta{Content: "The Margarita "}
	ch <- llm.Delta{Content: "is made with"}
	ch <- llm.Delta{Err: errors.New("stream ended before completion")}
	close(ch)
	return ch, nil
}

func TestProcessTurnStreamAborted(t *testing.T) {
	loop, store := newTestLoop(t, &brokenStreamProvider{}, nil, 10)

	var completed bool
	turn := gateway.NewTurn("t1", "margarita?")
	turn.OnChunk = func(string) error { return nil }
	turn.OnComplete = func(string) { completed = true }

	err := loop.ProcessTurn(turn)
	var invErr *ModelInvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected ModelInvocationError, got %v", err)
	}
	if completed {
		t.Error("truncated turn must not complete")
	}

	// The partial content is never checkpointed.
	count, err := store.Count(context.Background(), "t1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected empty transcript, got %d entries", count)
	}
}

func TestProcessTurnBudgetExceeded(t *testing.T) {
	tool := &echoTool{result: "still looking"}
	registry := tools.NewRegistry()
	registry.Register(tool)

	toolCall := &llm.Response{ToolCalls: []llm.ToolCall{{
		ID:       "call_1",
		Type:     "function",
		Function: llm.FunctionCall{Name: "get_cocktail_by_name", Arguments: json.RawMessage(`{}`)},
	}}}
	// Two tool rounds, then the forced no-tools completion.
	provider := &mockProvider{responses: []*llm.Response{toolCall, toolCall, {Content: "best effort answer"}}}
	loop, store := newTestLoop(t, provider, registry, 2)

	var result string
	turn := gateway.NewTurn("t1", "hi")
	turn.OnComplete = func(resp string) { result = resp }

	if err := loop.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}
	if result != "best effort answer" {
		t.Errorf("result = %q", result)
	}

	entries, _ := store.Transcript(context.Background(), "t1")
	// user + 2x(tool_call+tool_result) + assistant
	if len(entries) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(entries))
	}
	if entries[5].Kind != types.EntryAssistant || entries[5].Content != "best effort answer" {
		t.Errorf("final entry = %+v", entries[5])
	}
}

func TestProcessTurnEmptyResponseFallback(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{{Content: "  "}}}
	loop, _ := newTestLoop(t, provider, nil, 10)

	var result string
	turn := gateway.NewTurn("t1", "hi")
	turn.OnComplete = func(resp string) { result = resp }

	if err := loop.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}
	if result == "" || result == "  " {
		t.Errorf("expected fallback text, got %q", result)
	}
}
