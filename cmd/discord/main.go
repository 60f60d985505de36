// /cmd/discord/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/minjidays/minji-music/internal/command"
	"github.com/minjidays/minji-music/internal/command/core"
	"github.com/minjidays/minji-music/internal/command/music"
	"github.com/minjidays/minji-music/internal/config"
	"github.com/minjidays/minji-music/internal/discord"
	"github.com/minjidays/minji-music/internal/logger"
	"github.com/minjidays/minji-music/internal/storage"
	v "github.com/minjidays/minji-music/internal/version"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.LogLevel, cfg.LogFile)
	log.Info().Str("version", v.AppVersion).Msgf("Starting %v bot...", v.AppName)

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	bot, err := discord.NewBot(cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}

	command.Register(command.ApplyMiddlewares(
		&music.MusicCommand{Bot: bot},
		command.WithGuildOnly(),
		command.WithCommandLogger(),
	))
	command.Register(command.ApplyMiddlewares(
		&core.AboutCommand{},
		command.WithCommandLogger(),
	))

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Msgf("Received signal %s, shutting down...", s)
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Discord bot error")
		}
		cancel()
	case <-ctx.Done():
	}

	log.Info().Msg("Discord bot exited cleanly")
}
