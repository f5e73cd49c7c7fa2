// Package testutil provides a mock Crafty Controller API server for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockCraftyServer fakes the Crafty v2 API endpoints the bridge consumes.
type MockCraftyServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	LoginCalls int
}

// NewMockCraftyServer creates a mock Crafty API server. Paths without a
// registered handler return 404.
func NewMockCraftyServer(t *testing.T) *MockCraftyServer {
	t.Helper()
	m := &MockCraftyServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/auth/login" {
			m.LoginCalls++
		}
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockLogin installs a login handler yielding the given session token.
func (m *MockCraftyServer) MockLogin(token string) {
	m.Handlers["/api/v2/auth/login"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status": "ok",
			"data":   map[string]any{"token": token},
		})
	}
}

// MockServers installs a server-list handler. Pairs are (name, id) tuples.
func (m *MockCraftyServer) MockServers(servers ...[2]string) {
	list := make([]map[string]any, 0, len(servers))
	for _, s := range servers {
		list = append(list, map[string]any{"server_name": s[0], "server_id": s[1]})
	}
	m.Handlers["/api/v2/servers"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ok", "data": list})
	}
}

// MockStats installs a stats handler for one server id.
func (m *MockCraftyServer) MockStats(serverID string, running bool) {
	m.Handlers["/api/v2/servers/"+serverID+"/stats"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ok", "data": map[string]any{"running": running}})
	}
}

// MockPublic installs a public-status handler for one server id.
func (m *MockCraftyServer) MockPublic(serverID string, running bool, online, max int) {
	m.Handlers["/api/v2/servers/"+serverID+"/public"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ok", "data": map[string]any{
			"running": running,
			"online":  online,
			"max":     max,
		}})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
