package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Handlers bundles the dependencies the ops endpoints read from. The bot and
// reconciler are passed as narrow funcs so this package needs no Discord
// imports.
type Handlers struct {
	Servers           func() map[string]string
	ConfiguredServers func() int
	Guilds            func() int
	BotReady          func() bool
	LastCycle         func() time.Time
	Reload            func(ctx context.Context) error
}

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once the Discord session is open and, when
// servers are configured, the server map has been built at least once. A
// transient Crafty outage after that does not fail readiness; the reconcile
// loop recovers on its own.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.BotReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "failed_check": "discord_session"})
		return
	}
	if h.ConfiguredServers() > 0 && len(h.Servers()) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "failed_check": "server_map"})
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus returns a JSON snapshot of the bridge state.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var last string
	if t := h.LastCycle(); !t.IsZero() {
		last = t.UTC().Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"discord_ready":  h.BotReady(),
		"guilds":         h.Guilds(),
		"server_map":     h.Servers(),
		"last_reconcile": last,
	})
}

// HandleAdminReload re-reads the config file and rebuilds the server map and
// channel bindings, same as the reload-config slash command.
func (h *Handlers) HandleAdminReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.Reload(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "reloaded"})
}
