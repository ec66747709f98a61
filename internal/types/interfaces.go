package types

import "context"

// CheckpointStore is the durable, thread-keyed transcript log. Append must be
// atomic per thread: either every entry of a turn is persisted, or none.
type CheckpointStore interface {
	// Append persists a completed turn's entries at the end of the thread's
	// transcript, creating the thread on first use.
	Append(ctx context.Context, thread ThreadID, entries []Entry) error

	// Transcript returns the full transcript in append order, including tool
	// entries. Unknown threads yield an empty slice, not an error.
	Transcript(ctx context.Context, thread ThreadID) ([]Entry, error)

	// History returns only the user and assistant entries, in append order,
	// as caller-facing messages.
	History(ctx context.Context, thread ThreadID) ([]Message, error)

	// Count returns the number of transcript entries for the thread.
	Count(ctx context.Context, thread ThreadID) (int64, error)

	// Threads lists the known thread index records.
	Threads(ctx context.Context) ([]*ThreadIndex, error)
}
