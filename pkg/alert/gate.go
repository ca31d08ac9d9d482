package alert

import (
	"sync"
	"time"
)

// Gate enforces a global cooldown between ambient alerts. The cooldown
// check, the dispatch and the timestamp update happen under one lock,
// so two racing alerts can never both pass.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
}

// NewGate creates a gate that has never fired.
func NewGate(cooldown time.Duration) *Gate {
	return &Gate{cooldown: cooldown}
}

// Dispatch runs fn if at least cooldown has passed since the last
// successful dispatch. The last-alert time moves to now only when fn
// returns nil. It reports whether fn ran and succeeded.
func (g *Gate) Dispatch(now time.Time, fn func() error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.last.IsZero() && now.Sub(g.last) < g.cooldown {
		return false
	}
	if err := fn(); err != nil {
		return false
	}
	g.last = now
	return true
}

// Remaining returns how long until the next alert may fire.
func (g *Gate) Remaining(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.last.IsZero() {
		return 0
	}
	return max(g.cooldown-now.Sub(g.last), 0)
}

// Last returns the time of the last successful dispatch, or zero.
func (g *Gate) Last() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}
