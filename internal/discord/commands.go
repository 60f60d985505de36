package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/minjidays/minji-music/internal/command"
)

// registerCommands syncs slash commands for a guild with Discord:
// deletes obsolete ones, then creates or updates the local definitions.
func (b *Bot) registerCommands(guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	local := buildCommandDefinitions()
	localNames := make(map[string]struct{}, len(local))
	for _, d := range local {
		localNames[d.Name] = struct{}{}
	}

	remote, _ := b.dg.ApplicationCommands(appID, guildID)
	for _, rc := range remote {
		if _, exists := localNames[rc.Name]; exists {
			continue
		}
		log.Info().Str("guild", guildID).Str("command", rc.Name).Msg("deleting obsolete command")
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			log.Error().Err(err).Str("guild", guildID).Str("command", rc.Name).Msg("failed to delete command")
		}
	}

	for _, d := range local {
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, d); err != nil {
			log.Error().Err(err).Str("guild", guildID).Str("command", d.Name).Msg("failed to register command")
		}
		time.Sleep(25 * time.Millisecond) // stay well under Discord's rate limit
	}
	return nil
}

// buildCommandDefinitions returns ApplicationCommand definitions for all
// registered commands.
func buildCommandDefinitions() []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range command.All() {
		if sp, ok := c.(command.SlashProvider); ok {
			if def := sp.SlashDefinition(); def != nil {
				defs = append(defs, def)
			}
		}
	}
	return defs
}

func (b *Bot) appID() (string, error) {
	if b.dg.State.User != nil {
		return b.dg.State.User.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to resolve application ID: %w", err)
	}
	return u.ID, nil
}
