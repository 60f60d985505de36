// Package queue implements the per-guild playback queue. A Queue is not
// safe for concurrent use on its own; every mutation happens under the
// owning player's lock.
package queue

import (
	"errors"
	"math/rand"

	"github.com/minjidays/minji-music/internal/music/track"
)

var (
	ErrEmptyQueue    = errors.New("no tracks in queue")
	ErrTooFewTracks  = errors.New("need at least 3 tracks in queue to shuffle")
	minShuffleTracks = 3
)

type Queue struct {
	tracks []*track.Track
}

func New() *Queue {
	return &Queue{tracks: make([]*track.Track, 0)}
}

// Enqueue appends tracks at the tail.
func (q *Queue) Enqueue(tracks ...*track.Track) {
	q.tracks = append(q.tracks, tracks...)
}

// DequeueHead removes and returns the head track.
func (q *Queue) DequeueHead() (*track.Track, error) {
	if len(q.tracks) == 0 {
		return nil, ErrEmptyQueue
	}
	t := q.tracks[0]
	q.tracks = q.tracks[1:]
	return t, nil
}

// RequeueHeadToTail pops the head and pushes it back at the tail. Used for
// queue-repeat so a finishing track rotates instead of dropping off.
func (q *Queue) RequeueHeadToTail() (*track.Track, error) {
	t, err := q.DequeueHead()
	if err != nil {
		return nil, err
	}
	q.tracks = append(q.tracks, t)
	return t, nil
}

// InsertHead puts a track at the front of the queue.
func (q *Queue) InsertHead(t *track.Track) {
	q.tracks = append([]*track.Track{t}, q.tracks...)
}

// Remove deletes a track by identity. No-op when absent.
func (q *Queue) Remove(t *track.Track) {
	for i, cur := range q.tracks {
		if cur == t {
			q.tracks = append(q.tracks[:i], q.tracks[i+1:]...)
			return
		}
	}
}

// Contains reports whether the exact track instance is queued.
func (q *Queue) Contains(t *track.Track) bool {
	for _, cur := range q.tracks {
		if cur == t {
			return true
		}
	}
	return false
}

// Shuffle permutes the queue uniformly at random. Queues shorter than 3
// tracks are rejected unchanged.
func (q *Queue) Shuffle() error {
	if len(q.tracks) < minShuffleTracks {
		return ErrTooFewTracks
	}
	rand.Shuffle(len(q.tracks), func(i, j int) {
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	})
	return nil
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (*track.Track, bool) {
	if len(q.tracks) == 0 {
		return nil, false
	}
	return q.tracks[0], true
}

// List returns up to n tracks from the head for display.
func (q *Queue) List(n int) []*track.Track {
	if n > len(q.tracks) {
		n = len(q.tracks)
	}
	out := make([]*track.Track, n)
	copy(out, q.tracks[:n])
	return out
}

func (q *Queue) Len() int {
	return len(q.tracks)
}

func (q *Queue) Clear() {
	q.tracks = q.tracks[:0]
}
