package reconcile

import (
	"sync"
	"time"
)

// renameGate enforces the minimum interval between successive renames of one
// channel. Only successful renames are recorded, so a blocked or failed
// rename does not push the window out.
type renameGate struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

func newRenameGate(now func() time.Time) *renameGate {
	return &renameGate{last: make(map[string]time.Time), now: now}
}

// allow reports whether a rename of the channel is currently permitted.
func (g *renameGate) allow(channelID string, cooldown time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.last[channelID]
	if !ok {
		return true
	}
	return g.now().Sub(last) >= cooldown
}

// record notes a successful rename of the channel.
func (g *renameGate) record(channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[channelID] = g.now()
}

// cleanup drops entries older than maxAge. An evicted entry behaves the same
// as an elapsed cooldown, so this only bounds memory for unbound channels.
func (g *renameGate) cleanup(maxAge time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := g.now().Add(-maxAge)
	for id, t := range g.last {
		if t.Before(cutoff) {
			delete(g.last, id)
		}
	}
}
