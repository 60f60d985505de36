// /internal/discord/bot.go
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/minjidays/minji-music/internal/command"
	"github.com/minjidays/minji-music/internal/config"
	"github.com/minjidays/minji-music/internal/music/cache"
	"github.com/minjidays/minji-music/internal/music/player"
	"github.com/minjidays/minji-music/internal/music/resolver"
	"github.com/minjidays/minji-music/internal/storage"
)

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	storage  *storage.Storage
	cache    *cache.Store
	resolver *resolver.Resolver
	players  *player.Registry

	mu        sync.Mutex
	notifiers map[string]*guildNotifier
}

// NewBot wires the session, the audio cache, and the track resolver.
func NewBot(cfg *config.Config, store *storage.Storage) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	audioCache, err := cache.New(cfg.AudioCacheDir, cfg.AudioBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio cache: %w", err)
	}

	b := &Bot{
		dg:        dg,
		cfg:       cfg,
		storage:   store,
		cache:     audioCache,
		resolver:  resolver.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret, audioCache),
		notifiers: make(map[string]*guildNotifier),
	}
	b.players = player.NewRegistry(b.newPlayer)
	return b, nil
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.configureIntents()
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	go b.cache.Serve(ctx, b.cfg.AudioServerAddr)

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received. Cleaning up...")
	b.players.DestroyAll()
	return nil
}

// configureIntents configures the Discord intents
func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers
}

// onReady is called when the bot is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if err := b.registerCommands(g.ID); err != nil {
			log.Error().Err(err).Str("guild", g.ID).Msg("failed to register slash commands")
		}
	}
	log.Info().Str("user", s.State.User.Username).Msg("Discord bot is running")
}

// onGuildCreate is called when the bot joins a guild
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if err := b.registerCommands(g.ID); err != nil {
		log.Error().Err(err).Str("guild", g.ID).Msg("failed to register slash commands")
	}
}

// onInteractionCreate dispatches slash commands and component clicks to
// the command registry.
func (b *Bot) onInteractionCreate(s *discordgo.Session, e *discordgo.InteractionCreate) {
	switch e.Type {
	case discordgo.InteractionApplicationCommand:
		name := e.ApplicationCommandData().Name
		cmd, ok := command.Get(name)
		if !ok {
			return
		}
		ctx := &command.SlashInteractionContext{
			Session: s,
			Event:   e,
			Storage: b.storage,
		}
		if err := cmd.Run(ctx); err != nil {
			log.Error().Err(err).Str("command", name).Msg("command failed")
		}

	case discordgo.InteractionMessageComponent:
		customID := e.MessageComponentData().CustomID
		for _, cmd := range command.All() {
			handler, ok := cmd.(command.ComponentInteractionHandler)
			if !ok {
				continue
			}
			for _, id := range handler.ComponentIDs() {
				if id != customID {
					continue
				}
				ctx := &command.ComponentInteractionContext{
					Session: s,
					Event:   e,
					Storage: b.storage,
				}
				if err := handler.Component(ctx); err != nil {
					log.Error().Err(err).Str("component", customID).Msg("component handler failed")
				}
				return
			}
		}
	}
}

// onVoiceStateUpdate tears the guild's player down when the bot itself is
// removed from its voice channel.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.UserID != s.State.User.ID || vs.ChannelID != "" {
		return
	}
	if p, ok := b.players.Get(vs.GuildID); ok {
		go p.HandleVoiceKick()
	}
}
