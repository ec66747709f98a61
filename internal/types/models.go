package types

import (
	"encoding/json"
	"time"
)

// EntryKind classifies a transcript entry.
type EntryKind string

const (
	EntryUser       EntryKind = "user"
	EntryAssistant  EntryKind = "assistant"
	EntryToolCall   EntryKind = "tool_call"
	EntryToolResult EntryKind = "tool_result"
)

// Entry is one line of a thread's transcript. Entries are immutable once
// appended; Seq gives the creation order within the thread.
type Entry struct {
	ID     EntryID   `json:"id"`
	Thread ThreadID  `json:"thread"`
	TurnID TurnID    `json:"turn_id,omitempty"`
	Seq    int64     `json:"seq"`
	Kind   EntryKind `json:"kind"`
	At     time.Time `json:"at"`

	// Content holds the message text for user/assistant entries and the
	// serialized result for tool_result entries.
	Content string `json:"content,omitempty"`

	// Tool call details, set on tool_call and tool_result entries.
	Tool   string          `json:"tool,omitempty"`
	CallID string          `json:"call_id,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Message is the caller-facing view of a conversation entry: only user and
// assistant turns, tool traffic excluded.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Thread  ThreadID `json:"thread"`
}

// ThreadIndex is the index record kept per known thread.
type ThreadIndex struct {
	Thread     ThreadID  `json:"thread"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	LastTurnID TurnID    `json:"last_turn_id,omitempty"`
	LastSeq    int64     `json:"last_seq"`
}

// NewUserEntry creates a transcript entry for an inbound user message.
func NewUserEntry(thread ThreadID, turn TurnID, content string) Entry {
	return Entry{
		ID:      NewEntryID(),
		Thread:  thread,
		TurnID:  turn,
		Kind:    EntryUser,
		At:      time.Now(),
		Content: content,
	}
}

// NewAssistantEntry creates a transcript entry for a final assistant message.
func NewAssistantEntry(thread ThreadID, turn TurnID, content string) Entry {
	return Entry{
		ID:      NewEntryID(),
		Thread:  thread,
		TurnID:  turn,
		Kind:    EntryAssistant,
		At:      time.Now(),
		Content: content,
	}
}

// NewToolCallEntry records a tool invocation requested by the model.
func NewToolCallEntry(thread ThreadID, turn TurnID, tool, callID string, args json.RawMessage) Entry {
	return Entry{
		ID:     NewEntryID(),
		Thread: thread,
		TurnID: turn,
		Kind:   EntryToolCall,
		At:     time.Now(),
		Tool:   tool,
		CallID: callID,
		Args:   args,
	}
}

// NewToolResultEntry records the textual result of a tool invocation.
func NewToolResultEntry(thread ThreadID, turn TurnID, tool, callID, result string) Entry {
	return Entry{
		ID:      NewEntryID(),
		Thread:  thread,
		TurnID:  turn,
		Kind:    EntryToolResult,
		At:      time.Now(),
		Tool:    tool,
		CallID:  callID,
		Content: result,
	}
}

// AsMessage converts a user or assistant entry to its caller-facing form.
// Returns false for tool entries.
func (e Entry) AsMessage() (Message, bool) {
	switch e.Kind {
	case EntryUser:
		return Message{Role: "user", Content: e.Content, Thread: e.Thread}, true
	case EntryAssistant:
		return Message{Role: "assistant", Content: e.Content, Thread: e.Thread}, true
	default:
		return Message{}, false
	}
}
