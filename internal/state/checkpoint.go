package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rubenqba/llm-assistant-api/internal/types"
)

// CheckpointStore is a JSONL-backed append-only transcript store, one log per
// thread. It implements types.CheckpointStore.
type CheckpointStore struct {
	root  string
	mu    sync.Mutex
	locks map[types.ThreadID]*sync.Mutex
}

// NewCheckpointStore creates a file-backed CheckpointStore rooted at the
// given directory.
func NewCheckpointStore(root string) *CheckpointStore {
	return &CheckpointStore{
		root:  root,
		locks: make(map[types.ThreadID]*sync.Mutex),
	}
}

// getLock returns the per-thread mutex, creating one if it doesn't exist.
func (s *CheckpointStore) getLock(thread types.ThreadID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[thread]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[thread] = lock
	return lock
}

func (s *CheckpointStore) indexPath() string {
	return filepath.Join(s.root, "threads.json")
}

func (s *CheckpointStore) transcriptPath(thread types.ThreadID) string {
	return filepath.Join(s.root, "threads", string(thread), "transcript.jsonl")
}

// Append persists a completed turn's entries at the end of the thread's
// transcript. The whole turn is written under the thread lock so concurrent
// turns can never interleave; sequence numbers continue from the current
// transcript length.
func (s *CheckpointStore) Append(_ context.Context, thread types.ThreadID, entries []types.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	lock := s.getLock(thread)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(s.transcriptPath(thread))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create thread dir: %w", err)
	}

	existing, err := s.count(thread)
	if err != nil {
		return err
	}

	// Marshal everything before touching the file so a bad entry can't
	// leave a partially written turn behind.
	var buf []byte
	for i := range entries {
		entries[i].Seq = existing + int64(i) + 1
		line, err := json.Marshal(entries[i])
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	f, err := os.OpenFile(s.transcriptPath(thread), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync transcript: %w", err)
	}

	return s.updateIndex(thread, entries[len(entries)-1])
}

// Transcript returns the full transcript in append order, including tool
// entries. An unknown thread yields an empty slice, never an error.
func (s *CheckpointStore) Transcript(_ context.Context, thread types.ThreadID) ([]types.Entry, error) {
	lock := s.getLock(thread)
	lock.Lock()
	defer lock.Unlock()

	return s.readAll(thread)
}

// History returns only the user and assistant entries as caller-facing
// messages, in append order.
func (s *CheckpointStore) History(ctx context.Context, thread types.ThreadID) ([]types.Message, error) {
	entries, err := s.Transcript(ctx, thread)
	if err != nil {
		return nil, err
	}
	messages := make([]types.Message, 0, len(entries))
	for _, e := range entries {
		if msg, ok := e.AsMessage(); ok {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// Count returns the number of transcript entries for the thread.
func (s *CheckpointStore) Count(_ context.Context, thread types.ThreadID) (int64, error) {
	lock := s.getLock(thread)
	lock.Lock()
	defer lock.Unlock()

	return s.count(thread)
}

// Threads lists the known thread index records.
func (s *CheckpointStore) Threads(_ context.Context) ([]*types.ThreadIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	threads := make([]*types.ThreadIndex, 0, len(index))
	for _, t := range index {
		threads = append(threads, t)
	}
	return threads, nil
}

// count reads the transcript file and counts lines. Caller must hold the
// thread lock.
func (s *CheckpointStore) count(thread types.ThreadID) (int64, error) {
	f, err := os.Open(s.transcriptPath(thread))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan transcript: %w", err)
	}
	return count, nil
}

// readAll reads the whole transcript. Caller must hold the thread lock.
func (s *CheckpointStore) readAll(thread types.ThreadID) ([]types.Entry, error) {
	f, err := os.Open(s.transcriptPath(thread))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var entries []types.Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry types.Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return entries, nil
}

// loadIndex reads threads.json into a map keyed by thread id. Caller must
// hold s.mu.
func (s *CheckpointStore) loadIndex() (map[types.ThreadID]*types.ThreadIndex, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.ThreadID]*types.ThreadIndex), nil
		}
		return nil, fmt.Errorf("read thread index: %w", err)
	}

	var threads []*types.ThreadIndex
	if err := json.Unmarshal(data, &threads); err != nil {
		return nil, fmt.Errorf("unmarshal thread index: %w", err)
	}
	index := make(map[types.ThreadID]*types.ThreadIndex, len(threads))
	for _, t := range threads {
		index[t.Thread] = t
	}
	return index, nil
}

// updateIndex records the thread's latest turn in threads.json, creating the
// record on first use. Written atomically via tmp+rename.
func (s *CheckpointStore) updateIndex(thread types.ThreadID, last types.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}

	now := time.Now()
	rec, ok := index[thread]
	if !ok {
		rec = &types.ThreadIndex{Thread: thread, CreatedAt: now}
		index[thread] = rec
	}
	rec.UpdatedAt = now
	rec.LastTurnID = last.TurnID
	rec.LastSeq = last.Seq

	threads := make([]*types.ThreadIndex, 0, len(index))
	for _, t := range index {
		threads = append(threads, t)
	}
	data, err := json.MarshalIndent(threads, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal thread index: %w", err)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp index: %w", err)
	}
	return nil
}
