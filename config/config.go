// Package config loads the bot's YAML configuration and provides a typed
// Config shared across the service. It applies the documented defaults so a
// minimal config file is enough to run locally. The file can be re-read at
// runtime through Store.Reload without restarting the process.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when the CRAFTY_CONFIG env var is unset.
const DefaultPath = "config.yaml"

// Crafty holds connection settings for the Crafty Controller API.
type Crafty struct {
	BaseURL     string `yaml:"base_url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	BearerToken string `yaml:"bearer_token"`
	VerifySSL   *bool  `yaml:"verify_ssl"`
}

// Config is the full document read from config.yaml.
type Config struct {
	UpdateIntervalSeconds  int               `yaml:"update_interval"`
	ChannelCooldownSeconds int               `yaml:"channel_cooldown"`
	CategoryName           string            `yaml:"category_name"`
	AllowedUserIDs         []string          `yaml:"allowed_user_ids"`
	AllowedRoleNames       []string          `yaml:"allowed_role_names"`
	Servers                map[string]string `yaml:"servers"`
	Crafty                 Crafty            `yaml:"crafty"`
	DiscordToken           string            `yaml:"discord_token"`
}

// Load reads and parses the YAML document at path, applying defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Path returns the config file location: CRAFTY_CONFIG env or DefaultPath.
func Path() string {
	if p := os.Getenv("CRAFTY_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

func (c *Config) applyDefaults() {
	if c.UpdateIntervalSeconds <= 0 {
		c.UpdateIntervalSeconds = 60
	}
	if c.ChannelCooldownSeconds <= 0 {
		c.ChannelCooldownSeconds = 15
	}
	if c.CategoryName == "" {
		c.CategoryName = "Crafty Servers"
	}
	if c.Servers == nil {
		c.Servers = map[string]string{}
	}
	if c.Crafty.VerifySSL == nil {
		t := true
		c.Crafty.VerifySSL = &t
	}
}

// UpdateInterval returns the reconcile loop period.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

// ChannelCooldown returns the minimum interval between renames of one channel.
func (c *Config) ChannelCooldown() time.Duration {
	return time.Duration(c.ChannelCooldownSeconds) * time.Second
}

// ResolveDiscordToken returns the bot token: DISCORD_TOKEN env wins, then the
// discord_token config key. Empty means the bot cannot start.
func (c *Config) ResolveDiscordToken() string {
	if t := os.Getenv("DISCORD_TOKEN"); t != "" {
		return t
	}
	return c.DiscordToken
}

// Authorized reports whether a caller may run action commands: the user id is
// in allowed_user_ids, or any of the caller's role names is in
// allowed_role_names.
func (c *Config) Authorized(userID string, roleNames []string) bool {
	for _, id := range c.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	for _, have := range roleNames {
		for _, want := range c.AllowedRoleNames {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Store holds the live Config and supports wholesale replacement on reload.
// Readers always observe a complete generation, never a partially-applied one.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// NewStore loads the config at path and wraps it in a Store.
func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cfg: cfg}, nil
}

// Current returns the live Config. The returned value must be treated as
// read-only.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Reload re-reads the config file and swaps it in atomically.
func (s *Store) Reload() (*Config, error) {
	cfg, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return cfg, nil
}
