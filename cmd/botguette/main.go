package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bananium-fr/botguette/internal/announce"
	"github.com/bananium-fr/botguette/internal/bot"
	appcfg "github.com/bananium-fr/botguette/internal/config"
	"github.com/bananium-fr/botguette/internal/discord"
	"github.com/bananium-fr/botguette/internal/lobby"
	"github.com/bananium-fr/botguette/internal/msgcat"
	"github.com/bananium-fr/botguette/internal/obslog"
	"github.com/bananium-fr/botguette/internal/reconcile"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog init failed", zap.Error(err))
	}

	lobbyClient := lobby.NewClient(cfg.LobbyAPIKey)
	restClient := discord.NewClient(cfg.DiscordToken)

	controller := announce.NewController(store, lobbyClient, restClient, announce.Policy{
		AllowedLobbies:  cfg.AllowedLobbies,
		AllowedChannels: cfg.AllowedChannels,
		SyncRole:        cfg.SyncRole,
		AsyncRole:       cfg.AsyncRole,
	})
	commands := bot.New(restClient, controller, store, catalog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := discord.NewGateway(cfg.DiscordToken, 5, 5*time.Second)
	gw.OnReady(func(appID discord.Snowflake) {
		if err := commands.RegisterCommands(ctx, int64(appID), cfg.DevGuildID); err != nil {
			logger.Error("command registration failed", zap.Error(err))
		}
	})
	gw.OnInteraction(func(in *discord.Interaction) {
		// Interactions must not block the gateway read loop.
		go commands.HandleInteraction(ctx, in)
	})

	cctx, ccancel := context.WithTimeout(ctx, 10*time.Second)
	if err := gw.Connect(cctx); err != nil {
		ccancel()
		logger.Fatal("gateway connect failed", zap.Error(err))
	}
	ccancel()

	sweeper := reconcile.NewSweeper(store, lobbyClient, restClient, cfg.ReconcileInterval)
	go sweeper.Start(ctx)

	logger.Info("botguette running",
		zap.Int("allowed_lobbies", len(cfg.AllowedLobbies)),
		zap.Duration("reconcile_interval", cfg.ReconcileInterval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	_ = gw.Close(context.Background())
	if closeStore != nil {
		_ = closeStore()
	}
}

// openStore picks the persistence backend: Postgres when DATABASE_URL is
// set, Redis when REDIS_URL is set, otherwise an in-memory store that
// loses announcement history on restart.
func openStore(cfg *appcfg.AppConfig) (announce.Store, func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		repo, err := announce.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repo.InitSchema(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		obslog.L().Info("using postgres store")
		return repo, repo.Close, nil
	case cfg.RedisURL != "":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		obslog.L().Info("using redis store")
		return announce.NewRedisStore(rdb), rdb.Close, nil
	default:
		obslog.L().Warn("no DATABASE_URL or REDIS_URL set, announcements are not persisted")
		return announce.NewMemoryStore(), nil, nil
	}
}
