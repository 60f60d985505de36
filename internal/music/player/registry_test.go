package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(idleTimeout time.Duration) (*Registry, *fakeStreamer, *fakeVoice) {
	streamer := &fakeStreamer{}
	voice := &fakeVoice{}
	reg := NewRegistry(func(guildID string, onDestroy func(string)) *Player {
		p := New(guildID, Deps{
			Resolver: fakeResolver{},
			Cache:    &fakeCache{},
			Voice:    voice,
			Streamer: streamer,
			Notifier: &fakeNotifier{},
		}, idleTimeout, onDestroy)
		p.ErrorBackoff = 10 * time.Millisecond
		return p
	})
	return reg, streamer, voice
}

func TestRegistryGetOrCreateReturnsSameInstance(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	defer reg.DestroyAll()

	a := reg.GetOrCreate("guild-1")
	b := reg.GetOrCreate("guild-1")
	assert.Same(t, a, b)

	c := reg.GetOrCreate("guild-2")
	assert.NotSame(t, a, c)
}

func TestRegistryGetWithoutCreate(t *testing.T) {
	reg, _, _ := newTestRegistry(0)
	defer reg.DestroyAll()

	_, ok := reg.Get("guild-1")
	assert.False(t, ok)

	reg.GetOrCreate("guild-1")
	_, ok = reg.Get("guild-1")
	assert.True(t, ok)
}

func TestRegistryDestroyRemovesEntry(t *testing.T) {
	reg, _, _ := newTestRegistry(0)

	reg.GetOrCreate("guild-1")
	reg.Destroy("guild-1")

	_, ok := reg.Get("guild-1")
	assert.False(t, ok)

	// second destroy of the same guild is a no-op
	reg.Destroy("guild-1")
}

func TestRegistryIdleTimeoutTearsDownPlayer(t *testing.T) {
	reg, streamer, voice := newTestRegistry(50 * time.Millisecond)
	defer reg.DestroyAll()

	p := reg.GetOrCreate("guild-1")
	require.NoError(t, p.Enqueue("voice-1", cachedTrack(1)))

	streamer.stream(t, 0).finish(nil)

	require.Eventually(t, func() bool {
		_, ok := reg.Get("guild-1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	voice.mu.Lock()
	left := voice.left
	voice.mu.Unlock()
	assert.True(t, left)
}

func TestRegistryDestroyAll(t *testing.T) {
	reg, _, _ := newTestRegistry(0)

	reg.GetOrCreate("guild-1")
	reg.GetOrCreate("guild-2")
	reg.DestroyAll()

	_, ok := reg.Get("guild-1")
	assert.False(t, ok)
	_, ok = reg.Get("guild-2")
	assert.False(t, ok)
}
