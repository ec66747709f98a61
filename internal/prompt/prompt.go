// Package prompt assembles token-budgeted model prompts from thread
// transcripts.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/rubenqba/llm-assistant-api/internal/types"
	"github.com/rubenqba/llm-assistant-api/pkg/llm"
)

// Builder assembles prompts for the LLM within a token budget.
type Builder struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
	tmpl      *template.Template
}

// Data is what the persona template is rendered with.
type Data struct {
	Time   string
	Thread string
	Tools  string
}

// New creates a prompt builder. model selects the tokenizer; maxTokens is
// the context window; reserve is kept free for the model's response.
// templateText overrides the built-in persona when non-empty.
func New(model string, maxTokens, reserve int, templateText string) (*Builder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback for models tiktoken doesn't know about
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	if templateText == "" {
		templateText = DefaultPersona
	}
	tmpl, err := template.New("persona").Parse(templateText)
	if err != nil {
		return nil, fmt.Errorf("parse persona template: %w", err)
	}
	return &Builder{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
		tmpl:      tmpl,
	}, nil
}

func (b *Builder) countTokens(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

func (b *Builder) messageTokens(msg llm.Message) int {
	n := b.countTokens(msg.Content)
	for _, tc := range msg.Tools {
		n += b.countTokens(tc.Function.Name)
		n += b.countTokens(string(tc.Function.Arguments))
	}
	return n
}

// Build renders the system prompt and folds the transcript into model
// messages, newest-first until the budget is spent, then restores
// chronological order. systemOverride replaces the persona for this call
// only.
func (b *Builder) Build(thread types.ThreadID, entries []types.Entry, toolNames []string, systemOverride string) ([]llm.Message, error) {
	system := systemOverride
	if system == "" {
		var buf bytes.Buffer
		err := b.tmpl.Execute(&buf, Data{
			Time:   time.Now().Format(time.RFC3339),
			Thread: string(thread),
			Tools:  strings.Join(toolNames, ", "),
		})
		if err != nil {
			return nil, fmt.Errorf("render persona: %w", err)
		}
		system = buf.String()
	}

	budget := b.maxTokens - b.reserve - b.countTokens(system)

	// Walk the transcript backwards so the most recent exchanges survive
	// truncation, then reverse back into chronological order.
	var kept []llm.Message
	used := 0
	for i := len(entries) - 1; i >= 0; i-- {
		msg, ok := entryToMessage(entries[i])
		if !ok {
			continue
		}
		n := b.messageTokens(msg)
		if used+n > budget {
			break
		}
		kept = append(kept, msg)
		used += n
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	// Truncation must not open a turn mid-way: a tool result without its
	// preceding call is rejected by every provider. Drop leading messages
	// until the first user message.
	for len(kept) > 0 && kept[0].Role != "user" {
		kept = kept[1:]
	}

	messages := make([]llm.Message, 0, 1+len(kept))
	messages = append(messages, llm.Message{Role: "system", Content: system})
	messages = append(messages, kept...)
	return messages, nil
}

func entryToMessage(e types.Entry) (llm.Message, bool) {
	switch e.Kind {
	case types.EntryUser:
		return llm.Message{Role: "user", Content: e.Content}, true

	case types.EntryAssistant:
		return llm.Message{Role: "assistant", Content: e.Content}, true

	case types.EntryToolCall:
		return llm.Message{
			Role: "assistant",
			Tools: []llm.ToolCall{{
				ID:   e.CallID,
				Type: "function",
				Function: llm.FunctionCall{
					Name:      e.Tool,
					Arguments: e.Args,
				},
			}},
		}, true

	case types.EntryToolResult:
		return llm.Message{
			Role:    "tool",
			Content: e.Content,
			Tools: []llm.ToolCall{{
				ID:   e.CallID,
				Type: "function",
				Function: llm.FunctionCall{
					Name: e.Tool,
				},
			}},
		}, true

	default:
		return llm.Message{}, false
	}
}
