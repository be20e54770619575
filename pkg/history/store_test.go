package history

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStoreAppendAndLen(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, s.Len())

	s.Append("one")
	s.Append("two")
	assert.Equal(t, 2, s.Len())
}

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStoreWithCapacity(3)

	for i := 1; i <= 5; i++ {
		s.Append(fmt.Sprintf("utterance %d", i))
	}

	assert.Equal(t, 3, s.Len())
	// Only the newest three survive, oldest first.
	assert.Equal(t, []string{"utterance 3", "utterance 4", "utterance 5"}, s.Snapshot())
}

func TestStoreSnapshotLimit(t *testing.T) {
	s := NewStore()
	for i := 1; i <= 8; i++ {
		s.Append(fmt.Sprintf("utterance %d", i))
	}

	snap := s.Snapshot()
	require.Len(t, snap, SnapshotEntries)
	assert.Equal(t, "utterance 4", snap[0])
	assert.Equal(t, "utterance 8", snap[4])
}

func TestStoreSnapshotEmpty(t *testing.T) {
	s := NewStore()

	snap := s.Snapshot()
	require.NotNil(t, snap, "empty snapshot must marshal as [] not null")
	assert.Empty(t, snap)
}

func TestStoreSnapshotTruncatesByCodePoint(t *testing.T) {
	s := NewStore()

	// 600 CJK code points occupy 1800 bytes; the cap counts code points.
	long := strings.Repeat("你", 600)
	s.Append(long)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, SnapshotMaxChars, len([]rune(snap[0])))
	assert.Equal(t, strings.Repeat("你", SnapshotMaxChars), snap[0])
}

func TestStoreSnapshotKeepsShortEntriesIntact(t *testing.T) {
	s := NewStore()
	s.Append("short")

	assert.Equal(t, []string{"short"}, s.Snapshot())
}

func TestStoreConcurrentAppends(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.Append(fmt.Sprintf("g%d-%d", n, j))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, DefaultCapacity, s.Len())
}

func TestStoreBoundsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewStore()

		texts := rapid.SliceOfN(rapid.StringN(0, 700, -1), 0, 120).Draw(t, "texts")
		for _, text := range texts {
			s.Append(text)
		}

		if s.Len() > DefaultCapacity {
			t.Fatalf("Store grew to %d entries, cap is %d", s.Len(), DefaultCapacity)
		}

		snap := s.Snapshot()
		if len(snap) > SnapshotEntries {
			t.Fatalf("Snapshot has %d entries, limit is %d", len(snap), SnapshotEntries)
		}
		for i, entry := range snap {
			if n := len([]rune(entry)); n > SnapshotMaxChars {
				t.Fatalf("Snapshot entry %d has %d code points, limit is %d", i, n, SnapshotMaxChars)
			}
		}

		// The snapshot mirrors the tail of what was appended.
		kept := texts
		if len(kept) > DefaultCapacity {
			kept = kept[len(kept)-DefaultCapacity:]
		}
		tail := kept
		if len(tail) > SnapshotEntries {
			tail = tail[len(tail)-SnapshotEntries:]
		}
		if len(snap) != len(tail) {
			t.Fatalf("Snapshot has %d entries, expected %d", len(snap), len(tail))
		}
		for i := range tail {
			want := tail[i]
			if runes := []rune(want); len(runes) > SnapshotMaxChars {
				want = string(runes[:SnapshotMaxChars])
			}
			if snap[i] != want {
				t.Fatalf("Snapshot entry %d mismatch", i)
			}
		}
	})
}
