// Package history keeps the rolling transcript context that conditions the
// correction and translation prompts.
package history

import "sync"

const (
	// DefaultCapacity bounds the number of retained utterances.
	DefaultCapacity = 50

	// SnapshotEntries is how many recent utterances a snapshot includes.
	SnapshotEntries = 5

	// SnapshotMaxChars caps each snapshot entry, in Unicode code points.
	SnapshotMaxChars = 500
)

// Store is a bounded FIFO of finalized utterance texts. Appending beyond
// capacity evicts the oldest entry. Store is safe for concurrent use; the
// session's follow-up tasks append from their own goroutines.
type Store struct {
	mu       sync.Mutex
	entries  []string
	capacity int
}

// NewStore creates a store bounded to DefaultCapacity entries.
func NewStore() *Store {
	return NewStoreWithCapacity(DefaultCapacity)
}

// NewStoreWithCapacity creates a store bounded to the given number of
// entries. Non-positive capacities fall back to DefaultCapacity.
func NewStoreWithCapacity(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity}
}

// Append adds a finalized utterance, evicting the oldest once full.
func (s *Store) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, text)
	if len(s.entries) > s.capacity {
		s.entries = append(s.entries[:0], s.entries[1:]...)
	}
}

// Snapshot returns up to SnapshotEntries of the most recent texts in
// oldest-first order, each truncated to SnapshotMaxChars code points. The
// result is never nil so it marshals as a JSON array.
func (s *Store) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.entries) - SnapshotEntries
	if start < 0 {
		start = 0
	}

	out := make([]string, 0, len(s.entries)-start)
	for _, text := range s.entries[start:] {
		out = append(out, truncate(text, SnapshotMaxChars))
	}
	return out
}

// Len returns the number of retained utterances.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// truncate cuts text to at most max code points, never splitting a rune.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
