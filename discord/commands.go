package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/felhagen/crafty-bridge/craftyapi"
)

var commandDefs = []*discordgo.ApplicationCommand{
	{Name: "start", Description: "Start a Crafty server", Options: serverOption()},
	{Name: "stop", Description: "Stop a Crafty server", Options: serverOption()},
	{Name: "restart", Description: "Restart a Crafty server", Options: serverOption()},
	{Name: "status", Description: "Check status of a Crafty server", Options: serverOption()},
	{Name: "reload-config", Description: "Reload the bot configuration"},
}

func serverOption() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         "server",
		Description:  "Server name",
		Required:     true,
		Autocomplete: true,
	}}
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	if _, err := b.session.ApplicationCommandBulkOverwrite(appID, "", commandDefs); err != nil {
		return fmt.Errorf("overwrite application commands: %w", err)
	}
	slog.Info("registered slash commands", slog.Int("count", len(commandDefs)))
	return nil
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(s, i)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	if !b.authorized(s, i) {
		b.replyEphemeral(s, i, "⛔ Unauthorized")
		return
	}

	ctx := context.Background()
	switch name {
	case "start":
		b.handleAction(ctx, s, i, craftyapi.ActionStart, "✅ Starting %s")
	case "stop":
		b.handleAction(ctx, s, i, craftyapi.ActionStop, "🛑 Stopping %s")
	case "restart":
		b.handleAction(ctx, s, i, craftyapi.ActionRestart, "🔁 Restarting %s")
	case "status":
		b.handleStatus(ctx, s, i)
	case "reload-config":
		b.handleReload(ctx, s, i)
	}
}

// handleAction runs start/stop/restart. When the Crafty call fails we log
// and send no reply; Discord then shows its own command-failure notice.
func (b *Bot) handleAction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, action craftyapi.Action, okFormat string) {
	server := commandServerArg(i)
	id, ok := b.servers.Resolve(server)
	if !ok {
		b.replyEphemeral(s, i, fmt.Sprintf("❌ Unknown server %s", server))
		return
	}
	if err := b.crafty.RunAction(ctx, id, action); err != nil {
		slog.Error("server action failed", slog.String("server", server), slog.String("action", string(action)), slog.Any("err", err))
		return
	}
	b.reply(s, i, fmt.Sprintf(okFormat, server))
}

func (b *Bot) handleStatus(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	server := commandServerArg(i)
	id, ok := b.servers.Resolve(server)
	if !ok {
		b.replyEphemeral(s, i, fmt.Sprintf("❌ Unknown server %s", server))
		return
	}
	status, err := b.crafty.Public(ctx, id)
	if err != nil {
		slog.Error("status query failed", slog.String("server", server), slog.Any("err", err))
		return
	}
	b.reply(s, i, fmt.Sprintf("📊 %s — running: %v, players: %d/%d", server, status.Running, status.Online, status.Max))
}

func (b *Bot) handleReload(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.ReloadAll(ctx); err != nil {
		slog.Error("config reload failed", slog.Any("err", err))
		return
	}
	b.replyEphemeral(s, i, "✅ Config reloaded.")
}

// ReloadAll re-reads the config file, rebuilds the server map, and re-runs
// channel setup for every connected guild. Shared by the reload-config
// command and the ops server's reload endpoint.
func (b *Bot) ReloadAll(ctx context.Context) error {
	cfg, err := b.cfg.Reload()
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	if err := b.servers.Refresh(ctx, b.crafty, cfg.Servers); err != nil {
		return fmt.Errorf("refresh server map: %w", err)
	}
	for _, g := range b.session.State.Guilds {
		if err := b.EnsureGuildChannels(g.ID, cfg); err != nil {
			return fmt.Errorf("ensure channels for guild %s: %w", g.ID, err)
		}
	}
	slog.Info("config reloaded")
	return nil
}

func (b *Bot) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var current string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Focused {
			current = opt.StringValue()
			break
		}
	}
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, name := range b.servers.Names() {
		if current != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(current)) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name})
		if len(choices) == 25 {
			break
		}
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		slog.Warn("autocomplete response failed", slog.Any("err", err))
	}
}

// authorized checks the caller against allowed_user_ids and
// allowed_role_names from the live config. Role names are resolved through
// the state cache, falling back to a REST lookup.
func (b *Bot) authorized(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.Member == nil || i.Member.User == nil {
		return false
	}
	cfg := b.cfg.Current()
	return cfg.Authorized(i.Member.User.ID, b.roleNames(s, i.GuildID, i.Member.Roles))
}

func (b *Bot) roleNames(s *discordgo.Session, guildID string, roleIDs []string) []string {
	var roles []*discordgo.Role
	if g, err := s.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
		roles = g.Roles
	} else if fetched, err := s.GuildRoles(guildID); err == nil {
		roles = fetched
	} else {
		slog.Warn("could not resolve guild roles", slog.String("guild", guildID), slog.Any("err", err))
		return nil
	}

	nameByID := make(map[string]string, len(roles))
	for _, r := range roles {
		nameByID[r.ID] = r.Name
	}
	names := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if n, ok := nameByID[id]; ok {
			names = append(names, n)
		}
	}
	return names
}

func commandServerArg(i *discordgo.InteractionCreate) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "server" {
			return opt.StringValue()
		}
	}
	return ""
}

func (b *Bot) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	b.respond(s, i, content, 0)
}

func (b *Bot) replyEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	b.respond(s, i, content, discordgo.MessageFlagsEphemeral)
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, flags discordgo.MessageFlags) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: flags},
	})
	if err != nil {
		slog.Warn("interaction response failed", slog.Any("err", err))
	}
}
