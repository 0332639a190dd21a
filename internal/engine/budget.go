package engine

import (
	"sync"
	"time"
)

// Gate is the capability-budget gate: a fixed quota of external analysis
// calls per fixed window. Every external call must be preceded by a
// successful TryAcquire. Shared between live ingestion and the background
// reclassification sweep.
type Gate struct {
	mu          sync.Mutex
	quota       int
	window      time.Duration
	windowStart time.Time
	used        int
	now         func() time.Time
}

// NewGate creates a gate allowing quota calls per window.
func NewGate(quota int, window time.Duration) *Gate {
	return &Gate{
		quota:  quota,
		window: window,
		now:    time.Now,
	}
}

// TryAcquire consumes one unit of budget if any remains in the current
// window. Check-and-increment is atomic under the mutex so two callers
// cannot both pass a near-exhausted gate.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Sub(g.windowStart) >= g.window {
		g.windowStart = now
		g.used = 0
	}
	if g.used >= g.quota {
		return false
	}
	g.used++
	return true
}

// Remaining reports how much budget is left in the current window.
func (g *Gate) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.now().Sub(g.windowStart) >= g.window {
		return g.quota
	}
	left := g.quota - g.used
	if left < 0 {
		return 0
	}
	return left
}
