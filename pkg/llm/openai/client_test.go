package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rubenqba/llm-assistant-api/pkg/llm"
)

func newTestClient(serverURL string) *Client {
	return New(&llm.Config{
		BaseURL: serverURL,
		APIKey:  "test-key",
		Model:   "gpt-4",
	})
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing or invalid auth header")
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "test response"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     10,
				"completion_tokens": 5,
				"total_tokens":      15,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "hello"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "test response" {
		t.Errorf("expected 'test response', got %s", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

// sseChunk formats one streaming payload with the given content fragment.
func sseChunk(content string) string {
	data, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"delta": map[string]any{"content": content}},
		},
	})
	return fmt.Sprintf("data: %s\n\n", data)
}

func TestStreamDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, fragment := range []string{"The ", "Margarita ", "is classic."} {
			fmt.Fprint(w, sseChunk(fragment))
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	stream, err := newTestClient(server.URL).Stream(context.Background(), []llm.Message{
		{Role: "user", Content: "hello"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var content string
	for delta := range stream {
		if delta.Err != nil {
			t.Fatalf("unexpected stream error: %v", delta.Err)
		}
		content += delta.Content
	}
	if content != "The Margarita is classic." {
		t.Errorf("expected full content, got %q", content)
	}
}

func TestStreamAbortedConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, sseChunk("The Margarita "))
		flusher.Flush()
		fmt.Fprint(w, sseChunk("is made with"))
		flusher.Flush()
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	stream, err := newTestClient(server.URL).Stream(context.Background(), []llm.Message{
		{Role: "user", Content: "hello"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var content string
	var streamErr error
	for delta := range stream {
		content += delta.Content
		if delta.Err != nil {
			streamErr = delta.Err
		}
	}
	if streamErr == nil {
		t.Fatalf("expected an error delta for aborted stream, got clean close after %q", content)
	}
}

func TestStreamEndsWithoutDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("partial answer"))
		// Body closes cleanly without the [DONE] terminator.
	}))
	defer server.Close()

	stream, err := newTestClient(server.URL).Stream(context.Background(), []llm.Message{
		{Role: "user", Content: "hello"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var streamErr error
	for delta := range stream {
		if delta.Err != nil {
			streamErr = delta.Err
		}
	}
	if streamErr == nil {
		t.Fatal("expected an error delta when the stream ends before [DONE]")
	}
}

func TestStreamToolCallAssembly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fragments := []map[string]any{
			{"index": 0, "id": "call_1", "type": "function", "function": map[string]any{"name": "get_cocktail_by_name", "arguments": `{"na`}},
			{"index": 0, "function": map[string]any{"arguments": `me":"Mojito"}`}},
		}
		for _, frag := range fragments {
			data, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{
					{"delta": map[string]any{"tool_calls": []map[string]any{frag}}},
				},
			})
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	stream, err := newTestClient(server.URL).Stream(context.Background(), []llm.Message{
		{Role: "user", Content: "mojito please"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	var calls []llm.ToolCall
	for delta := range stream {
		if delta.Err != nil {
			t.Fatalf("unexpected stream error: %v", delta.Err)
		}
		calls = append(calls, delta.ToolCalls...)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 assembled tool call, got %d", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Function.Name != "get_cocktail_by_name" {
		t.Errorf("unexpected call: %+v", calls[0])
	}
	if string(calls[0].Function.Arguments) != `{"name":"Mojito"}` {
		t.Errorf("arguments not reassembled: %s", calls[0].Function.Arguments)
	}
}

func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "hello"},
	}, nil)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestProviderInterface(t *testing.T) {
	// Verify Client satisfies the llm.Provider interface at compile time.
	var _ llm.Provider = (*Client)(nil)
}
