// /internal/config/config.go
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, falling back to system environment variables")
	}
}

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`

	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	AudioCacheDir   string `env:"AUDIO_CACHE_DIR" envDefault:"temp"`
	AudioServerAddr string `env:"AUDIO_SERVER_ADDR" envDefault:":9298"`
	AudioBaseURL    string `env:"AUDIO_BASE_URL" envDefault:"http://localhost:9298"`

	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"10m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
