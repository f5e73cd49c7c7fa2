package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felhagen/crafty-bridge/config"
	"github.com/felhagen/crafty-bridge/craftyapi"
	"github.com/felhagen/crafty-bridge/servermap"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type fakeCrafty struct {
	servers  []craftyapi.ServerSummary
	listErr  error
	running  map[string]bool
	statsErr map[string]error
}

func (f *fakeCrafty) Servers(ctx context.Context) ([]craftyapi.ServerSummary, error) {
	return f.servers, f.listErr
}

func (f *fakeCrafty) Stats(ctx context.Context, serverID string) (craftyapi.ServerStats, error) {
	if err := f.statsErr[serverID]; err != nil {
		return craftyapi.ServerStats{}, err
	}
	return craftyapi.ServerStats{Running: f.running[serverID]}, nil
}

type fakeChannels struct {
	names     map[string]string
	renames   int
	renameErr error
}

func (f *fakeChannels) ChannelName(channelID string) (string, error) {
	name, ok := f.names[channelID]
	if !ok {
		return "", fmt.Errorf("unknown channel %s", channelID)
	}
	return name, nil
}

func (f *fakeChannels) RenameChannel(channelID, name string) error {
	if f.renameErr != nil {
		return f.renameErr
	}
	f.names[channelID] = name
	f.renames++
	return nil
}

type fakeBindings struct {
	byGuild map[string]map[string]string
}

func (f *fakeBindings) Guilds() []string {
	var ids []string
	for id := range f.byGuild {
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeBindings) ForGuild(guildID string) map[string]string {
	return f.byGuild[guildID]
}

func writeConfig(t *testing.T, body string) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	store, err := config.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

const testConfig = `
update_interval: 60
channel_cooldown: 15
servers:
  survival: SMP
`

func newTestReconciler(t *testing.T, crafty *fakeCrafty, channels *fakeChannels, bindings *fakeBindings) (*Reconciler, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	r := New(writeConfig(t, testConfig), crafty, servermap.New(), channels, bindings)
	r.now = clock.Now
	r.gate = newRenameGate(clock.Now)
	return r, clock
}

func TestCycleRenamesChannel(t *testing.T) {
	crafty := &fakeCrafty{
		servers: []craftyapi.ServerSummary{{ID: "42", Name: "SMP"}},
		running: map[string]bool{"42": false},
	}
	channels := &fakeChannels{names: map[string]string{"chan1": "🟢 Survival: Online"}}
	bindings := &fakeBindings{byGuild: map[string]map[string]string{"g1": {"survival": "chan1"}}}
	r, _ := newTestReconciler(t, crafty, channels, bindings)

	r.RunOnce(context.Background())

	if got := channels.names["chan1"]; got != "🔴 Survival: Offline" {
		t.Errorf("channel name = %q, want offline name", got)
	}
	if r.LastCycle().IsZero() {
		t.Error("LastCycle() should be set after a cycle")
	}
}

func TestNoRenameWhenNameMatches(t *testing.T) {
	crafty := &fakeCrafty{
		servers: []craftyapi.ServerSummary{{ID: "42", Name: "SMP"}},
		running: map[string]bool{"42": true},
	}
	channels := &fakeChannels{names: map[string]string{"chan1": "🟢 Survival: Online"}}
	bindings := &fakeBindings{byGuild: map[string]map[string]string{"g1": {"survival": "chan1"}}}
	r, _ := newTestReconciler(t, crafty, channels, bindings)

	r.RunOnce(context.Background())

	if channels.renames != 0 {
		t.Errorf("renames = %d, want 0 for an already-correct name", channels.renames)
	}
}

func TestCooldownBlocksRenameUntilElapsed(t *testing.T) {
	crafty := &fakeCrafty{
		servers: []craftyapi.ServerSummary{{ID: "42", Name: "SMP"}},
		running: map[string]bool{"42": false},
	}
	channels := &fakeChannels{names: map[string]string{"chan1": "🟢 Survival: Online"}}
	bindings := &fakeBindings{byGuild: map[string]map[string]string{"g1": {"survival": "chan1"}}}
	r, clock := newTestReconciler(t, crafty, channels, bindings)

	// First cycle renames to offline and starts the cooldown window.
	r.RunOnce(context.Background())
	if channels.renames != 1 {
		t.Fatalf("renames = %d, want 1", channels.renames)
	}

	// Server comes back 5s later: rename is desired but inside the 15s window.
	crafty.running["42"] = true
	clock.Advance(5 * time.Second)
	r.RunOnce(context.Background())
	if channels.renames != 1 {
		t.Fatalf("renames = %d, want still 1 (cooldown)", channels.renames)
	}
	if got := channels.names["chan1"]; got != "🔴 Survival: Offline" {
		t.Errorf("stale name should persist during cooldown, got %q", got)
	}

	// 16s after the rename the cooldown has elapsed.
	clock.Advance(11 * time.Second)
	r.RunOnce(context.Background())
	if channels.renames != 2 {
		t.Fatalf("renames = %d, want 2 after cooldown elapsed", channels.renames)
	}
	if got := channels.names["chan1"]; got != "🟢 Survival: Online" {
		t.Errorf("channel name = %q, want online name", got)
	}
}

func TestRefreshFailureSkipsWholeCycle(t *testing.T) {
	crafty := &fakeCrafty{
		listErr: errors.New("connection refused"),
		running: map[string]bool{"42": false},
	}
	channels := &fakeChannels{names: map[string]string{"chan1": "🟢 Survival: Online"}}
	bindings := &fakeBindings{byGuild: map[string]map[string]string{"g1": {"survival": "chan1"}}}
	r, _ := newTestReconciler(t, crafty, channels, bindings)

	r.RunOnce(context.Background())

	if channels.renames != 0 {
		t.Errorf("renames = %d, want 0 when the map refresh fails", channels.renames)
	}
}

func TestOneServerFailureDoesNotBlockOthers(t *testing.T) {
	store := writeConfig(t, `
update_interval: 60
channel_cooldown: 15
servers:
  survival: SMP
  creative: CRT
`)
	crafty := &fakeCrafty{
		servers: []craftyapi.ServerSummary{
			{ID: "42", Name: "SMP"},
			{ID: "7", Name: "CRT"},
		},
		running:  map[string]bool{"7": true},
		statsErr: map[string]error{"42": errors.New("boom")},
	}
	channels := &fakeChannels{names: map[string]string{
		"chan1": "🔄 Survival...",
		"chan2": "🔄 Creative...",
	}}
	bindings := &fakeBindings{byGuild: map[string]map[string]string{
		"g1": {"survival": "chan1", "creative": "chan2"},
	}}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	r := New(store, crafty, servermap.New(), channels, bindings)
	r.now = clock.Now
	r.gate = newRenameGate(clock.Now)

	r.RunOnce(context.Background())

	if got := channels.names["chan1"]; got != "🔄 Survival..." {
		t.Errorf("failing server's channel changed: %q", got)
	}
	if got := channels.names["chan2"]; got != "🟢 Creative: Online" {
		t.Errorf("healthy server's channel = %q, want online name", got)
	}
}

func TestUnmappedServerSkipped(t *testing.T) {
	crafty := &fakeCrafty{
		servers: []craftyapi.ServerSummary{{ID: "42", Name: "SMP"}},
		running: map[string]bool{"42": false},
	}
	channels := &fakeChannels{names: map[string]string{"chan9": "🔄 Ghost..."}}
	// "ghost" is bound to a channel but absent from the configured servers.
	bindings := &fakeBindings{byGuild: map[string]map[string]string{"g1": {"ghost": "chan9"}}}
	r, _ := newTestReconciler(t, crafty, channels, bindings)

	r.RunOnce(context.Background())

	if channels.renames != 0 {
		t.Errorf("renames = %d, want 0 for unmapped server", channels.renames)
	}
}

func TestFailedRenameDoesNotStartCooldown(t *testing.T) {
	crafty := &fakeCrafty{
		servers: []craftyapi.ServerSummary{{ID: "42", Name: "SMP"}},
		running: map[string]bool{"42": false},
	}
	channels := &fakeChannels{
		names:     map[string]string{"chan1": "🟢 Survival: Online"},
		renameErr: errors.New("rate limited"),
	}
	bindings := &fakeBindings{byGuild: map[string]map[string]string{"g1": {"survival": "chan1"}}}
	r, _ := newTestReconciler(t, crafty, channels, bindings)

	r.RunOnce(context.Background())

	// The rename failed, so the gate must still allow an immediate retry.
	channels.renameErr = nil
	r.RunOnce(context.Background())
	if channels.renames != 1 {
		t.Errorf("renames = %d, want 1 (retry allowed after failed rename)", channels.renames)
	}
}

func TestDesiredName(t *testing.T) {
	tests := []struct {
		friendly string
		running  bool
		want     string
	}{
		{"survival", true, "🟢 Survival: Online"},
		{"survival", false, "🔴 Survival: Offline"},
		{"SMP", false, "🔴 Smp: Offline"},
		{"creative world", true, "🟢 Creative world: Online"},
	}
	for _, tt := range tests {
		if got := DesiredName(tt.friendly, tt.running); got != tt.want {
			t.Errorf("DesiredName(%q, %v) = %q, want %q", tt.friendly, tt.running, got, tt.want)
		}
	}
}
