// Package reconcile runs the periodic loop that mirrors live Crafty server
// state into Discord channel names. Each cycle refreshes the server map and
// walks every guild's channel bindings; one server's failure never blocks
// the others, and a failed map refresh skips the whole cycle. The loop only
// exits on context cancellation.
package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/felhagen/crafty-bridge/config"
	"github.com/felhagen/crafty-bridge/craftyapi"
	"github.com/felhagen/crafty-bridge/servermap"
	"github.com/felhagen/crafty-bridge/telemetry"
)

// CraftyAPI is the slice of the API client the reconciler uses.
type CraftyAPI interface {
	Servers(ctx context.Context) ([]craftyapi.ServerSummary, error)
	Stats(ctx context.Context, serverID string) (craftyapi.ServerStats, error)
}

// ChannelSurface reads and mutates Discord channel names.
type ChannelSurface interface {
	ChannelName(channelID string) (string, error)
	RenameChannel(channelID, name string) error
}

// BindingSource lists guilds and their friendly-name → channel-id bindings.
type BindingSource interface {
	Guilds() []string
	ForGuild(guildID string) map[string]string
}

// Reconciler drives the periodic channel-name synchronization.
type Reconciler struct {
	cfg      *config.Store
	crafty   CraftyAPI
	servers  *servermap.Store
	channels ChannelSurface
	bindings BindingSource

	gate *renameGate
	now  func() time.Time

	mu        sync.Mutex
	lastCycle time.Time
}

func New(cfg *config.Store, crafty CraftyAPI, servers *servermap.Store, channels ChannelSurface, bindings BindingSource) *Reconciler {
	now := time.Now
	return &Reconciler{
		cfg:      cfg,
		crafty:   crafty,
		servers:  servers,
		channels: channels,
		bindings: bindings,
		gate:     newRenameGate(now),
		now:      now,
	}
}

// Run loops until ctx is cancelled. The interval is re-read every cycle so a
// config reload takes effect without restarting the loop.
func (r *Reconciler) Run(ctx context.Context) {
	interval := r.cfg.Current().UpdateInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("reconciler started", slog.Duration("interval", interval))

	for {
		r.RunOnce(ctx)
		if cur := r.cfg.Current().UpdateInterval(); cur != interval {
			interval = cur
			ticker.Reset(interval)
			slog.Info("reconcile interval updated", slog.Duration("interval", interval))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single reconcile cycle.
func (r *Reconciler) RunOnce(ctx context.Context) {
	cfg := r.cfg.Current()
	start := time.Now()
	if telemetry.ReconcileCycles != nil {
		telemetry.ReconcileCycles.Inc()
	}
	defer func() {
		if telemetry.CycleDuration != nil {
			telemetry.CycleDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if err := r.servers.Refresh(ctx, r.crafty, cfg.Servers); err != nil {
		if telemetry.ReconcileSkips != nil {
			telemetry.ReconcileSkips.Inc()
		}
		slog.Warn("server map refresh failed, skipping cycle", slog.Any("err", err))
		return
	}

	cooldown := cfg.ChannelCooldown()
	for _, guildID := range r.bindings.Guilds() {
		for friendly, channelID := range r.bindings.ForGuild(guildID) {
			r.reconcileBinding(ctx, guildID, friendly, channelID, cooldown)
		}
	}
	r.gate.cleanup(2 * cooldown)

	r.mu.Lock()
	r.lastCycle = r.now()
	r.mu.Unlock()
}

func (r *Reconciler) reconcileBinding(ctx context.Context, guildID, friendly, channelID string, cooldown time.Duration) {
	serverID, ok := r.servers.Resolve(friendly)
	if !ok {
		return
	}

	stats, err := r.crafty.Stats(ctx, serverID)
	if err != nil {
		slog.Warn("failed to update server", slog.String("server", friendly), slog.Any("err", err))
		return
	}

	want := DesiredName(friendly, stats.Running)
	current, err := r.channels.ChannelName(channelID)
	if err != nil {
		slog.Warn("could not read channel", slog.String("guild", guildID), slog.String("channel", channelID), slog.Any("err", err))
		return
	}
	if current == want {
		return
	}

	if !r.gate.allow(channelID, cooldown) {
		if telemetry.RenamesCooledDown != nil {
			telemetry.RenamesCooledDown.Inc()
		}
		slog.Info("skipping rename, cooldown not reached", slog.String("channel", channelID), slog.String("current", current))
		return
	}
	if err := r.channels.RenameChannel(channelID, want); err != nil {
		slog.Warn("channel rename failed", slog.String("channel", channelID), slog.Any("err", err))
		return
	}
	r.gate.record(channelID)
	if telemetry.RenamesIssued != nil {
		telemetry.RenamesIssued.Inc()
	}
	slog.Info("channel renamed", slog.String("channel", channelID), slog.String("name", want))
}

// LastCycle returns when a cycle last completed, zero before the first one.
func (r *Reconciler) LastCycle() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastCycle
}

// DesiredName renders the channel name for a server's run state. Anything
// that is not running, including starting or stopping, shows as offline.
func DesiredName(friendly string, running bool) string {
	name := friendly
	if name != "" {
		name = capitalizeName(name)
	}
	if running {
		return "🟢 " + name + ": Online"
	}
	return "🔴 " + name + ": Offline"
}

func capitalizeName(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
