package discord

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/bwmarrin/discordgo"

	"github.com/felhagen/crafty-bridge/config"
	"github.com/felhagen/crafty-bridge/telemetry"
)

// Bindings maps guild id → friendly server name → status channel id. Built
// on ready and on guild join, rebuilt on config reload. In-memory only; a
// manually deleted channel is only re-found by the next EnsureGuildChannels
// pass.
type Bindings struct {
	mu      sync.RWMutex
	byGuild map[string]map[string]string
}

func NewBindings() *Bindings {
	return &Bindings{byGuild: map[string]map[string]string{}}
}

// Set records the channel bound to a friendly name within a guild.
func (b *Bindings) Set(guildID, friendly, channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	per, ok := b.byGuild[guildID]
	if !ok {
		per = map[string]string{}
		b.byGuild[guildID] = per
	}
	per[friendly] = channelID
}

// Guilds returns the ids of all guilds with at least one binding.
func (b *Bindings) Guilds() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.byGuild))
	for id := range b.byGuild {
		ids = append(ids, id)
	}
	return ids
}

// ForGuild returns a copy of one guild's friendly → channel map.
func (b *Bindings) ForGuild(guildID string) map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.byGuild[guildID]))
	for k, v := range b.byGuild[guildID] {
		out[k] = v
	}
	return out
}

// EnsureGuildChannels locates or creates the status category and one voice
// channel per configured server in the guild, recording the bindings.
// Matching is a case-insensitive substring check on the channel name; the
// first match wins.
func (b *Bot) EnsureGuildChannels(guildID string, cfg *config.Config) error {
	channels, err := b.session.GuildChannels(guildID)
	if err != nil {
		return fmt.Errorf("list guild channels: %w", err)
	}

	var category *discordgo.Channel
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory && ch.Name == cfg.CategoryName {
			category = ch
			break
		}
	}
	if category == nil {
		category, err = b.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name: cfg.CategoryName,
			Type: discordgo.ChannelTypeGuildCategory,
		})
		if err != nil {
			return fmt.Errorf("create category %q: %w", cfg.CategoryName, err)
		}
		slog.Info("created status category", slog.String("guild", guildID), slog.String("category", cfg.CategoryName))
	}

	for friendly := range cfg.Servers {
		var found *discordgo.Channel
		for _, ch := range channels {
			if ch.Type != discordgo.ChannelTypeGuildVoice || ch.ParentID != category.ID {
				continue
			}
			if strings.Contains(strings.ToLower(ch.Name), strings.ToLower(friendly)) {
				found = ch
				break
			}
		}
		if found == nil {
			created, err := b.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
				Name:     "🔄 " + capitalize(friendly) + "...",
				Type:     discordgo.ChannelTypeGuildVoice,
				ParentID: category.ID,
			})
			if err != nil {
				return fmt.Errorf("create channel for %q: %w", friendly, err)
			}
			slog.Info("created status channel", slog.String("guild", guildID), slog.String("server", friendly), slog.String("channel", created.ID))
			b.bindings.Set(guildID, friendly, created.ID)
			continue
		}
		b.bindings.Set(guildID, friendly, found.ID)
	}

	telemetry.SetGuildCount(len(b.bindings.Guilds()))
	return nil
}

// capitalize uppercases the first rune and lowercases the rest, matching the
// way friendly names are shown in channel names.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
