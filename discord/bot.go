// Package discord runs the bot: session lifecycle, slash commands, and the
// per-guild status channel bindings the reconciler renames.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/felhagen/crafty-bridge/config"
	"github.com/felhagen/crafty-bridge/craftyapi"
	"github.com/felhagen/crafty-bridge/servermap"
)

// Bot wraps the Discord session together with the shared stores the command
// handlers need.
type Bot struct {
	session  *discordgo.Session
	cfg      *config.Store
	crafty   *craftyapi.Client
	servers  *servermap.Store
	bindings *Bindings
}

// New creates the bot and wires its gateway handlers. Call Start to connect.
func New(token string, cfg *config.Store, crafty *craftyapi.Client, servers *servermap.Store) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds

	b := &Bot{
		session:  s,
		cfg:      cfg,
		crafty:   crafty,
		servers:  servers,
		bindings: NewBindings(),
	}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onGuildCreate)
	s.AddHandler(b.onInteraction)
	return b, nil
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() {
	if err := b.session.Close(); err != nil {
		slog.Warn("closing discord session", slog.Any("err", err))
	}
}

// Ready reports whether the gateway session has completed its handshake.
func (b *Bot) Ready() bool {
	return b.session.State != nil && b.session.State.User != nil
}

// Bindings exposes the channel binding table for the reconciler.
func (b *Bot) Bindings() *Bindings {
	return b.bindings
}

// onReady runs the startup sequence: best-effort Crafty login and server map
// refresh, channel setup for every guild, then slash command registration.
// Crafty being down is only a warning; the reconcile loop heals it later.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	ctx := context.Background()
	cfg := b.cfg.Current()

	if _, err := b.crafty.Login(ctx); err != nil {
		slog.Warn("crafty not available yet", slog.Any("err", err))
	}
	if err := b.servers.Refresh(ctx, b.crafty, cfg.Servers); err != nil {
		slog.Warn("could not refresh server map yet", slog.Any("err", err))
	}
	for _, g := range r.Guilds {
		if err := b.EnsureGuildChannels(g.ID, cfg); err != nil {
			slog.Warn("could not ensure channels for guild", slog.String("guild", g.ID), slog.Any("err", err))
		}
	}

	if err := b.registerCommands(); err != nil {
		slog.Error("failed to register slash commands", slog.Any("err", err))
	}
	slog.Info("bot ready", slog.String("user", r.User.Username), slog.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	// Fires for every guild on connect as well as on joining a new one;
	// EnsureGuildChannels is idempotent so both are fine.
	if err := b.EnsureGuildChannels(g.ID, b.cfg.Current()); err != nil {
		slog.Warn("could not ensure channels for new guild", slog.String("guild", g.ID), slog.Any("err", err))
	}
}

// ChannelName returns the current display name of a channel, preferring the
// gateway state cache over a REST call.
func (b *Bot) ChannelName(channelID string) (string, error) {
	if ch, err := b.session.State.Channel(channelID); err == nil {
		return ch.Name, nil
	}
	ch, err := b.session.Channel(channelID)
	if err != nil {
		return "", fmt.Errorf("fetch channel %s: %w", channelID, err)
	}
	return ch.Name, nil
}

// RenameChannel updates a channel's display name.
func (b *Bot) RenameChannel(channelID, name string) error {
	_, err := b.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name})
	if err != nil {
		return fmt.Errorf("rename channel %s: %w", channelID, err)
	}
	return nil
}
