package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullDocument(t *testing.T) {
	path := writeFile(t, `
update_interval: 30
channel_cooldown: 20
category_name: Game Servers
allowed_user_ids:
  - "111"
allowed_role_names:
  - Admins
servers:
  survival: SMP
crafty:
  base_url: https://crafty.local:8443
  username: admin
  password: hunter2
  verify_ssl: false
discord_token: tok-abc
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UpdateInterval() != 30*time.Second {
		t.Errorf("UpdateInterval() = %v, want 30s", cfg.UpdateInterval())
	}
	if cfg.ChannelCooldown() != 20*time.Second {
		t.Errorf("ChannelCooldown() = %v, want 20s", cfg.ChannelCooldown())
	}
	if cfg.CategoryName != "Game Servers" {
		t.Errorf("CategoryName = %q", cfg.CategoryName)
	}
	if cfg.Servers["survival"] != "SMP" {
		t.Errorf("Servers = %v", cfg.Servers)
	}
	if cfg.Crafty.BaseURL != "https://crafty.local:8443" {
		t.Errorf("Crafty.BaseURL = %q", cfg.Crafty.BaseURL)
	}
	if *cfg.Crafty.VerifySSL {
		t.Error("verify_ssl: false should be preserved")
	}
	if cfg.DiscordToken != "tok-abc" {
		t.Errorf("DiscordToken = %q", cfg.DiscordToken)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeFile(t, `
crafty:
  base_url: http://localhost:8443
  bearer_token: static
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UpdateInterval() != 60*time.Second {
		t.Errorf("default UpdateInterval() = %v, want 60s", cfg.UpdateInterval())
	}
	if cfg.ChannelCooldown() != 15*time.Second {
		t.Errorf("default ChannelCooldown() = %v, want 15s", cfg.ChannelCooldown())
	}
	if cfg.CategoryName != "Crafty Servers" {
		t.Errorf("default CategoryName = %q", cfg.CategoryName)
	}
	if cfg.Crafty.VerifySSL == nil || !*cfg.Crafty.VerifySSL {
		t.Error("verify_ssl should default to true")
	}
	if cfg.Servers == nil {
		t.Error("Servers should default to an empty map")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() on missing file should fail")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeFile(t, "update_interval: [not a number")
	if _, err := Load(path); err == nil {
		t.Error("Load() on malformed YAML should fail")
	}
}

func TestAuthorized(t *testing.T) {
	cfg := &Config{
		AllowedUserIDs:   []string{"111", "222"},
		AllowedRoleNames: []string{"Admins"},
	}

	tests := []struct {
		name   string
		userID string
		roles  []string
		want   bool
	}{
		{"allowed by id", "111", nil, true},
		{"allowed by role", "999", []string{"Members", "Admins"}, true},
		{"denied", "999", []string{"Members"}, false},
		{"denied with no roles", "999", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.Authorized(tt.userID, tt.roles); got != tt.want {
				t.Errorf("Authorized(%q, %v) = %v, want %v", tt.userID, tt.roles, got, tt.want)
			}
		})
	}
}

func TestResolveDiscordTokenEnvWins(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-token")
	cfg := &Config{DiscordToken: "cfg-token"}
	if got := cfg.ResolveDiscordToken(); got != "env-token" {
		t.Errorf("ResolveDiscordToken() = %q, want env-token", got)
	}
}

func TestResolveDiscordTokenFallsBackToConfig(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	cfg := &Config{DiscordToken: "cfg-token"}
	if got := cfg.ResolveDiscordToken(); got != "cfg-token" {
		t.Errorf("ResolveDiscordToken() = %q, want cfg-token", got)
	}
}

func TestStoreReload(t *testing.T) {
	path := writeFile(t, `
category_name: Before
crafty:
  base_url: http://localhost:8443
`)
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if store.Current().CategoryName != "Before" {
		t.Fatalf("CategoryName = %q", store.Current().CategoryName)
	}

	if err := os.WriteFile(path, []byte("category_name: After\ncrafty:\n  base_url: http://localhost:8443\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if store.Current().CategoryName != "After" {
		t.Errorf("CategoryName after reload = %q, want After", store.Current().CategoryName)
	}
}

func TestStoreReloadFailureKeepsCurrent(t *testing.T) {
	path := writeFile(t, "category_name: Keep\n")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("category_name: [broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Reload(); err == nil {
		t.Fatal("Reload() on broken file should fail")
	}
	if store.Current().CategoryName != "Keep" {
		t.Errorf("CategoryName = %q, want previous generation kept", store.Current().CategoryName)
	}
}
