// Package server exposes the HTTP surface: the channel-aware mixology
// endpoint, the raw chat endpoints with SSE streaming, transcript history,
// and webhook-triggered tasks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/rubenqba/llm-assistant-api/internal/cocktaildb"
	"github.com/rubenqba/llm-assistant-api/internal/format"
	"github.com/rubenqba/llm-assistant-api/internal/gateway"
	"github.com/rubenqba/llm-assistant-api/internal/state"
	"github.com/rubenqba/llm-assistant-api/internal/types"
)

// DrinkSearcher is the slice of the cocktaildb client the HTTP surface
// exposes directly, without going through the assistant.
type DrinkSearcher interface {
	SearchByName(ctx context.Context, name string) ([]cocktaildb.Cocktail, error)
}

// Server is the HTTP handler for the assistant API.
type Server struct {
	gw     *gateway.Gateway
	store  types.CheckpointStore
	router *format.Router
	tasks  *state.TaskStore
	drinks DrinkSearcher
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a Server wired to the gateway, checkpoint store, and
// formatting router. tasks and drinks may be nil when webhook tasks or
// the direct cocktail lookup are disabled.
func New(gw *gateway.Gateway, store types.CheckpointStore, router *format.Router, tasks *state.TaskStore, drinks DrinkSearcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		gw:     gw,
		store:  store,
		router: router,
		tasks:  tasks,
		drinks: drinks,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /mixology", s.handleMixology)
	s.mux.HandleFunc("GET /mixology/messages", s.handleMixologyMessages)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /chat/stream", s.handleChatStream)
	s.mux.HandleFunc("GET /chat/history/{threadId}", s.handleChatHistory)
	s.mux.HandleFunc("POST /webhook/{name}", s.handleNamedTask)
	s.mux.HandleFunc("GET /cocktaildb/search", s.handleCocktailSearch)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// runTurn submits a turn and blocks until it completes or the request
// context is cancelled. The turn itself keeps running after a cancelled
// request so the thread still checkpoints.
func (s *Server) runTurn(r *http.Request, thread types.ThreadID, input string, opts ...gateway.TurnOption) (string, error) {
	done := make(chan string, 1)
	fail := make(chan error, 1)
	opts = append(opts,
		gateway.WithOnComplete(func(response string) { done <- response }),
		gateway.WithOnError(func(err error) { fail <- err }),
	)
	if _, err := s.gw.Submit(thread, input, opts...); err != nil {
		return "", err
	}
	select {
	case response := <-done:
		return response, nil
	case err := <-fail:
		return "", err
	case <-r.Context().Done():
		return "", r.Context().Err()
	}
}

// mixologyRequest is the JSON body for POST /mixology.
type mixologyRequest struct {
	Content string `json:"content"`
	Thread  string `json:"thread"`
	User    string `json:"user"`
	Channel string `json:"channel"`
}

type mixologyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Thread  string `json:"thread"`
}

type mixologyResponse struct {
	Thread   string            `json:"thread"`
	User     string            `json:"user,omitempty"`
	Channel  string            `json:"channel"`
	Messages []mixologyMessage `json:"messages"`
}

func (s *Server) handleMixology(w http.ResponseWriter, r *http.Request) {
	var req mixologyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	channel, err := format.ParseChannel(req.Channel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	thread := types.ThreadID(req.Thread).OrDefault()

	response, err := s.runTurn(r, thread, req.Content, gateway.WithChannel(string(channel)))
	if err != nil {
		s.logger.Error("mixology turn failed", "thread", string(thread), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	segments, err := s.router.Format(r.Context(), response, channel)
	if err != nil {
		// Formatting never blocks delivery; degrade to raw text.
		s.logger.Warn("formatting failed, using fallback", "channel", string(channel), "error", err)
		segments = format.Fallback(response, channel)
	}

	messages := make([]mixologyMessage, 0, len(segments))
	for _, segment := range segments {
		messages = append(messages, mixologyMessage{
			Role:    "assistant",
			Content: segment,
			Thread:  string(thread),
		})
	}
	writeJSON(w, http.StatusOK, mixologyResponse{
		Thread:   string(thread),
		User:     req.User,
		Channel:  string(channel),
		Messages: messages,
	})
}

func (s *Server) handleMixologyMessages(w http.ResponseWriter, r *http.Request) {
	thread := types.ThreadID(r.URL.Query().Get("thread")).OrDefault()
	history, err := s.store.History(r.Context(), thread)
	if err != nil {
		s.logger.Error("load history failed", "thread", string(thread), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	messages := make([]mixologyMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, mixologyMessage{Role: msg.Role, Content: msg.Content, Thread: string(thread)})
	}
	writeJSON(w, http.StatusOK, messages)
}

// chatRequest is the JSON body for POST /chat.
type chatRequest struct {
	Message      string `json:"message"`
	ThreadID     string `json:"threadId"`
	SystemPrompt string `json:"systemPrompt"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	thread := types.ThreadID(req.ThreadID).OrDefault()

	var opts []gateway.TurnOption
	if req.SystemPrompt != "" {
		opts = append(opts, gateway.WithSystemPrompt(req.SystemPrompt))
	}
	response, err := s.runTurn(r, thread, req.Message, opts...)
	if err != nil {
		s.logger.Error("chat turn failed", "thread", string(thread), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"response": response,
		"threadId": string(thread),
	})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if strings.TrimSpace(message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	thread := types.ThreadID(r.URL.Query().Get("threadId")).OrDefault()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Chunks arrive from the turn processor goroutine, and the turn keeps
	// running after a cancelled request. The mutex and closed flag keep
	// its callback off the ResponseWriter once the handler returns.
	var mu sync.Mutex
	closed := false
	defer func() {
		mu.Lock()
		closed = true
		mu.Unlock()
	}()

	sendEvent := func(name string, v any) error {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return errors.New("stream closed")
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if name != "" {
			if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	response, err := s.runTurn(r, thread, message, gateway.WithOnChunk(func(chunk string) error {
		return sendEvent("", map[string]string{"chunk": chunk})
	}))
	if err != nil {
		s.logger.Error("stream turn failed", "thread", string(thread), "error", err)
		sendEvent("error", map[string]string{"error": "internal server error"})
		return
	}

	sendEvent("", map[string]any{"done": true, "fullResponse": response})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	thread := types.ThreadID(r.PathValue("threadId")).OrDefault()
	history, err := s.store.History(r.Context(), thread)
	if err != nil {
		s.logger.Error("load history failed", "thread", string(thread), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	type historyMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	messages := make([]historyMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, historyMessage{Role: msg.Role, Content: msg.Content})
	}
	writeJSON(w, http.StatusOK, messages)
}

// namedTaskRequest is the optional JSON body for POST /webhook/{name}.
type namedTaskRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleNamedTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "tasks not configured")
		return
	}
	name := r.PathValue("name")

	task, err := s.tasks.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if !task.Enabled {
		writeError(w, http.StatusForbidden, "task is disabled")
		return
	}

	prompt := task.Prompt
	// Allow body to override the prompt
	var body namedTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Prompt != "" {
		prompt = body.Prompt
	}

	response, err := s.runTurn(r, task.Thread, prompt)
	if err != nil {
		s.logger.Error("webhook task failed", "task", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

// handleCocktailSearch is a direct database lookup, bypassing the
// assistant entirely.
func (s *Server) handleCocktailSearch(w http.ResponseWriter, r *http.Request) {
	if s.drinks == nil {
		writeError(w, http.StatusServiceUnavailable, "cocktail search not configured")
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	cocktails, err := s.drinks.SearchByName(r.Context(), name)
	if err != nil {
		s.logger.Error("cocktail search failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if cocktails == nil {
		cocktails = []cocktaildb.Cocktail{}
	}
	writeJSON(w, http.StatusOK, cocktails)
}
