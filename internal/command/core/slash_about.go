package core

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/minjidays/minji-music/internal/bot"
	"github.com/minjidays/minji-music/internal/command"
	"github.com/minjidays/minji-music/internal/version"
)

type AboutCommand struct{}

func (c *AboutCommand) Name() string             { return "about" }
func (c *AboutCommand) Description() string      { return "Show bot information" }
func (c *AboutCommand) Group() string            { return "core" }
func (c *AboutCommand) Category() string         { return "⚙️ Core" }
func (c *AboutCommand) UserPermissions() []int64 { return []int64{} }

func (c *AboutCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
	}
}

func (c *AboutCommand) Run(ctx interface{}) error {
	context, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}

	return bot.RespondEmbedEphemeral(context.Session, context.Event, &discordgo.MessageEmbed{
		Title:       version.AppName,
		Description: fmt.Sprintf("%s\n\nVersion: `%s`", version.AppDescription, version.AppVersion),
		Color:       bot.EmbedColor,
	})
}
