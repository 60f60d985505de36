package player

import "sync"

// Factory builds a player for a guild. onDestroy must be invoked as the
// final step of the player's teardown.
type Factory func(guildID string, onDestroy func(guildID string)) *Player

// Registry maps guild IDs to live players, at most one per guild.
// Entries are created lazily and removed as the last step of player
// destruction.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player
	factory Factory
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		players: make(map[string]*Player),
		factory: factory,
	}
}

// GetOrCreate returns the guild's player, creating one if absent.
func (r *Registry) GetOrCreate(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[guildID]; ok {
		return p
	}
	p := r.factory(guildID, r.remove)
	r.players[guildID] = p
	return p
}

// Get returns the guild's player without creating one.
func (r *Registry) Get(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// Destroy tears down the guild's player. Calling it for a guild with no
// player is a no-op.
func (r *Registry) Destroy(guildID string) {
	p, ok := r.Get(guildID)
	if !ok {
		return
	}
	p.Destroy()
}

// DestroyAll tears down every live player, used at shutdown.
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	r.mu.Unlock()

	for _, p := range players {
		p.Destroy()
	}
}

func (r *Registry) remove(guildID string) {
	r.mu.Lock()
	delete(r.players, guildID)
	r.mu.Unlock()
}
