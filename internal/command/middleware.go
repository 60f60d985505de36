package command

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/minjidays/minji-music/internal/storage"
)

type Middleware func(Command) Command

type wrappedCommand struct {
	Command
	wrap func(ctx interface{}) error
}

func (w *wrappedCommand) Run(ctx interface{}) error {
	return w.wrap(ctx)
}

func (w *wrappedCommand) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := w.Command.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func (w *wrappedCommand) ComponentIDs() []string {
	if ch, ok := w.Command.(ComponentInteractionHandler); ok {
		return ch.ComponentIDs()
	}
	return nil
}

func (w *wrappedCommand) Component(ctx *ComponentInteractionContext) error {
	if ch, ok := w.Command.(ComponentInteractionHandler); ok {
		return ch.Component(ctx)
	}
	return nil
}

func ApplyMiddlewares(cmd Command, mws ...Middleware) Command {
	for _, mw := range mws {
		cmd = mw(cmd)
	}
	return cmd
}

func WithGuildOnly() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				if v, ok := ctx.(*SlashInteractionContext); ok && v.Event.GuildID == "" {
					_ = v.Session.InteractionRespond(v.Event.Interaction, &discordgo.InteractionResponse{
						Type: discordgo.InteractionResponseChannelMessageWithSource,
						Data: &discordgo.InteractionResponseData{
							Content: "You must be in a guild to use this command.",
							Flags:   discordgo.MessageFlagsEphemeral,
						},
					})
					return nil
				}
				return cmd.Run(ctx)
			},
		}
	}
}

// WithCommandLogger records every slash invocation in the guild's command
// history and the structured log.
func WithCommandLogger() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				if v, ok := ctx.(*SlashInteractionContext); ok && v.Event.Member != nil {
					param := ""
					if opts := v.Event.ApplicationCommandData().Options; len(opts) > 0 {
						param = opts[0].Name
					}
					log.Info().
						Str("guild", v.Event.GuildID).
						Str("user", v.Event.Member.User.Username).
						Str("command", cmd.Name()).
						Str("param", param).
						Msg("command invoked")

					if v.Storage != nil {
						if err := v.Storage.AppendCommandToHistory(v.Event.GuildID, storage.CommandHistoryRecord{
							ChannelID: v.Event.ChannelID,
							UserID:    v.Event.Member.User.ID,
							Username:  v.Event.Member.User.Username,
							Command:   cmd.Name(),
							Param:     param,
							Datetime:  time.Now(),
						}); err != nil {
							log.Warn().Err(err).Msg("failed to append command history")
						}
					}
				}
				return cmd.Run(ctx)
			},
		}
	}
}
