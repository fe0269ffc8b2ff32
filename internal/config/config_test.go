package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("LOBBY_API_KEY", "key")
	t.Setenv("ALLOWED_LOBBIES", "https://ap-lobby.bananium.fr")
	t.Setenv("SYNC_ROLE", "archipelago-sync")
	t.Setenv("ASYNC_ROLE", "archipelago-async")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ReconcileInterval != time.Hour {
		t.Fatalf("interval = %v", cfg.ReconcileInterval)
	}
	if len(cfg.AllowedChannels) != 0 || cfg.DevGuildID != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadTrimsLobbySlashes(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_LOBBIES", "https://a.example/, https://b.example ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.AllowedLobbies) != len(want) {
		t.Fatalf("lobbies = %v", cfg.AllowedLobbies)
	}
	for i := range want {
		if cfg.AllowedLobbies[i] != want[i] {
			t.Fatalf("lobbies = %v", cfg.AllowedLobbies)
		}
	}
}

func TestLoadParsesLists(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_CHANNELS", "123, 456")
	t.Setenv("RECONCILE_INTERVAL", "30m")
	t.Setenv("DEV_GUILD_ID", "789")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.AllowedChannels) != 2 || cfg.AllowedChannels[0] != 123 || cfg.AllowedChannels[1] != 456 {
		t.Fatalf("channels = %v", cfg.AllowedChannels)
	}
	if cfg.ReconcileInterval != 30*time.Minute {
		t.Fatalf("interval = %v", cfg.ReconcileInterval)
	}
	if cfg.DevGuildID != 789 {
		t.Fatalf("dev guild = %d", cfg.DevGuildID)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"bad channel":  {"ALLOWED_CHANNELS", "abc"},
		"bad interval": {"RECONCILE_INTERVAL", "soon"},
		"bad guild":    {"DEV_GUILD_ID", "not-a-guild"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadRequiresToken(t *testing.T) {
	setRequired(t)
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}
