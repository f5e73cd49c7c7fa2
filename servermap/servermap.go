// Package servermap maintains the mapping from user-facing server names to
// Crafty server ids. The map is rebuilt wholesale from the remote server
// list and swapped atomically; readers between refreshes see the previous
// complete generation.
package servermap

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/felhagen/crafty-bridge/craftyapi"
	"github.com/felhagen/crafty-bridge/telemetry"
)

// Lister is the slice of the Crafty client Refresh depends on.
type Lister interface {
	Servers(ctx context.Context) ([]craftyapi.ServerSummary, error)
}

// Store holds the current friendly-name → server-id generation.
type Store struct {
	mu sync.RWMutex
	m  map[string]string
}

func New() *Store {
	return &Store{m: map[string]string{}}
}

// Refresh fetches the remote server list and rebuilds the map from the
// configured friendly → remote-name pairs. A configured value with no
// matching remote display name is treated as a server id directly. On fetch
// failure the previous map is left untouched and the error is returned.
func (s *Store) Refresh(ctx context.Context, lister Lister, configured map[string]string) error {
	servers, err := lister.Servers(ctx)
	if err != nil {
		return err
	}

	idByName := make(map[string]string, len(servers))
	for _, srv := range servers {
		idByName[srv.Name] = srv.ID
	}

	next := make(map[string]string, len(configured))
	for friendly, remoteName := range configured {
		id, ok := idByName[remoteName]
		if !ok {
			id = remoteName
		}
		next[friendly] = id
	}

	s.mu.Lock()
	s.m = next
	s.mu.Unlock()

	telemetry.SetServerMapSize(len(next))
	slog.Info("server map refreshed", slog.Int("entries", len(next)))
	return nil
}

// Resolve returns the server id for a friendly name.
func (s *Store) Resolve(friendly string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.m[friendly]
	return id, ok
}

// Names returns the known friendly names, sorted, for command autocomplete.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.m))
	for n := range s.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the current map, used by the ops status endpoint.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}
