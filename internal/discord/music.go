package discord

import (
	"fmt"

	"github.com/minjidays/minji-music/internal/bot"
	"github.com/minjidays/minji-music/internal/music/player"
	"github.com/minjidays/minji-music/internal/music/resolver"
	"github.com/minjidays/minji-music/internal/storage"
)

// Players exposes the guild player registry.
func (b *Bot) Players() *player.Registry { return b.players }

// Resolver exposes the track resolver.
func (b *Bot) Resolver() *resolver.Resolver { return b.resolver }

// Storage exposes the persistent guild settings store.
func (b *Bot) Storage() *storage.Storage { return b.storage }

// BindTextChannel points the guild's playback notices at a text channel.
func (b *Bot) BindTextChannel(guildID, channelID string) {
	b.notifierFor(guildID).bind(channelID)
}

// newPlayer is the registry factory. Each player gets its own voice
// connection wrapper and notifier, and starts at the guild's saved volume.
func (b *Bot) newPlayer(guildID string, onDestroy func(string)) *player.Player {
	voice := &guildVoice{session: b.dg}
	p := player.New(guildID, player.Deps{
		Resolver: b.resolver,
		Cache:    b.cache,
		Voice:    voice,
		Streamer: voice,
		Notifier: b.notifierFor(guildID),
	}, b.cfg.IdleTimeout, onDestroy)

	if vol, err := b.storage.GetVolume(guildID); err == nil {
		p.SetVolume(vol)
	}
	return p
}

func (b *Bot) notifierFor(guildID string) *guildNotifier {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.notifiers[guildID]
	if !ok {
		n = &guildNotifier{session: b.dg, guildID: guildID, storage: b.storage}
		b.notifiers[guildID] = n
	}
	return n
}

// FindUserVoiceState finds the voice state of a user
func (b *Bot) FindUserVoiceState(guildID, userID string) (*bot.VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return &bot.VoiceState{
				ChannelID: vs.ChannelID,
				UserID:    vs.UserID,
			}, nil
		}
	}
	return nil, fmt.Errorf("user not in any voice channel")
}
