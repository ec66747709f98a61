package types

import (
	"strings"

	"github.com/google/uuid"
)

// ThreadID identifies one persistent conversation. It is supplied by the
// caller; DefaultThread is used when absent.
type ThreadID string

// DefaultThread is the sentinel thread id used when a caller omits one.
const DefaultThread ThreadID = "default"

type TurnID string
type EntryID string

func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

func NewEntryID() EntryID {
	return EntryID(uuid.New().String())
}

// NewThreadID builds a prefixed thread id from parts, e.g.
// NewThreadID("telegram", "42", "1007") -> "telegram:42:1007".
func NewThreadID(parts ...string) ThreadID {
	return ThreadID(strings.Join(parts, ":"))
}

// OrDefault returns the thread id, or DefaultThread when empty.
func (t ThreadID) OrDefault() ThreadID {
	if t == "" {
		return DefaultThread
	}
	return t
}
