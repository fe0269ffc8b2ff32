package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	DiscordToken string
	LobbyAPIKey  string

	AllowedLobbies  []string
	AllowedChannels []int64

	SyncRole  string
	AsyncRole string

	DatabaseURL string
	RedisURL    string

	ReconcileInterval time.Duration
	DevGuildID        int64
	MessagesDir       string
}

func Load() (*AppConfig, error) {
	// Optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &AppConfig{
		ReconcileInterval: time.Hour,
	}

	cfg.DiscordToken = strings.TrimSpace(os.Getenv("DISCORD_TOKEN"))
	cfg.LobbyAPIKey = strings.TrimSpace(os.Getenv("LOBBY_API_KEY"))

	cfg.SyncRole = strings.TrimSpace(os.Getenv("SYNC_ROLE"))
	cfg.AsyncRole = strings.TrimSpace(os.Getenv("ASYNC_ROLE"))

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	for _, p := range strings.Split(os.Getenv("ALLOWED_LOBBIES"), ",") {
		s := strings.TrimRight(strings.TrimSpace(p), "/")
		if s != "" {
			cfg.AllowedLobbies = append(cfg.AllowedLobbies, s)
		}
	}

	if v := strings.TrimSpace(os.Getenv("ALLOWED_CHANNELS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			s := strings.TrimSpace(p)
			if s == "" {
				continue
			}
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, errors.New("ALLOWED_CHANNELS must be a comma-separated list of channel ids")
			}
			cfg.AllowedChannels = append(cfg.AllowedChannels, id)
		}
	}

	if v := strings.TrimSpace(os.Getenv("RECONCILE_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, errors.New("RECONCILE_INTERVAL must be a positive duration like 1h")
		}
		cfg.ReconcileInterval = d
	}

	if v := strings.TrimSpace(os.Getenv("DEV_GUILD_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.New("DEV_GUILD_ID must be a guild id")
		}
		cfg.DevGuildID = id
	}

	if cfg.DiscordToken == "" {
		return nil, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.LobbyAPIKey == "" {
		return nil, errors.New("LOBBY_API_KEY is required")
	}
	if len(cfg.AllowedLobbies) == 0 {
		return nil, errors.New("ALLOWED_LOBBIES is required")
	}
	if cfg.SyncRole == "" {
		return nil, errors.New("SYNC_ROLE is required")
	}
	if cfg.AsyncRole == "" {
		return nil, errors.New("ASYNC_ROLE is required")
	}

	return cfg, nil
}
