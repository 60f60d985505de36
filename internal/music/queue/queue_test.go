package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minjidays/minji-music/internal/music/track"
)

func mkTracks(titles ...string) []*track.Track {
	out := make([]*track.Track, len(titles))
	for i, title := range titles {
		out[i] = &track.Track{Title: title}
	}
	return out
}

func TestFIFOOrder(t *testing.T) {
	q := New()
	tracks := mkTracks("a", "b", "c")
	q.Enqueue(tracks...)

	require.Equal(t, 3, q.Len())
	for _, want := range tracks {
		got, err := q.DequeueHead()
		require.NoError(t, err)
		assert.Same(t, want, got)
	}

	_, err := q.DequeueHead()
	assert.ErrorIs(t, err, ErrEmptyQueue)
}

func TestRequeueHeadToTail(t *testing.T) {
	q := New()
	tracks := mkTracks("a", "b")
	q.Enqueue(tracks...)

	rotated, err := q.RequeueHeadToTail()
	require.NoError(t, err)
	assert.Same(t, tracks[0], rotated)

	list := q.List(2)
	assert.Same(t, tracks[1], list[0])
	assert.Same(t, tracks[0], list[1])
}

func TestRequeueEmpty(t *testing.T) {
	q := New()
	_, err := q.RequeueHeadToTail()
	assert.ErrorIs(t, err, ErrEmptyQueue)
}

func TestInsertHead(t *testing.T) {
	q := New()
	tracks := mkTracks("a", "b")
	q.Enqueue(tracks[0])
	q.InsertHead(tracks[1])

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Same(t, tracks[1], head)
	assert.Equal(t, 2, q.Len())
}

func TestRemoveByIdentity(t *testing.T) {
	q := New()
	tracks := mkTracks("a", "b", "c")
	q.Enqueue(tracks...)

	q.Remove(tracks[1])
	assert.Equal(t, 2, q.Len())
	assert.False(t, q.Contains(tracks[1]))

	// absent track is a no-op
	q.Remove(&track.Track{Title: "b"})
	assert.Equal(t, 2, q.Len())
}

func TestShuffleTooShort(t *testing.T) {
	q := New()
	tracks := mkTracks("a", "b")
	q.Enqueue(tracks...)

	err := q.Shuffle()
	assert.ErrorIs(t, err, ErrTooFewTracks)

	// queue unchanged
	list := q.List(2)
	assert.Same(t, tracks[0], list[0])
	assert.Same(t, tracks[1], list[1])
}

func TestShufflePreservesMultiset(t *testing.T) {
	q := New()
	tracks := mkTracks("a", "b", "c", "d", "e", "f", "g", "h")
	q.Enqueue(tracks...)

	require.NoError(t, q.Shuffle())
	assert.Equal(t, len(tracks), q.Len())
	for _, tr := range tracks {
		assert.True(t, q.Contains(tr))
	}
}

func TestShuffleChangesOrder(t *testing.T) {
	// With 20 tracks the odds of every shuffle over 10 attempts returning
	// the identity permutation are negligible.
	titles := make([]string, 20)
	for i := range titles {
		titles[i] = string(rune('a' + i))
	}

	changed := false
	for attempt := 0; attempt < 10 && !changed; attempt++ {
		q := New()
		tracks := mkTracks(titles...)
		q.Enqueue(tracks...)
		require.NoError(t, q.Shuffle())
		for i, tr := range q.List(len(tracks)) {
			if tr != tracks[i] {
				changed = true
				break
			}
		}
	}
	assert.True(t, changed)
}

func TestListAndClear(t *testing.T) {
	q := New()
	q.Enqueue(mkTracks("a", "b", "c")...)

	assert.Len(t, q.List(2), 2)
	assert.Len(t, q.List(10), 3)

	q.Clear()
	assert.Equal(t, 0, q.Len())
	_, ok := q.Peek()
	assert.False(t, ok)
}
