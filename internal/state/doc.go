// Package state provides the file-backed persistence layer: the per-thread
// conversation checkpoint log and the named-task store.
//
// Layout under the data directory:
//
//	threads.json                     thread index
//	threads/<thread>/transcript.jsonl  append-only transcript, one entry per line
//	tasks.json                       named scheduled/webhook tasks
//
// Writes to a thread's transcript are serialized by a per-thread mutex; a
// whole turn is appended in a single critical section so concurrent turns on
// the same thread can never interleave their entries.
package state
