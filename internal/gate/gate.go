package gate

import (
	"sync"
	"time"

	"mines_client/internal/domain"
)

// DefaultTimeout is how long an acquisition may wait for its confirmation.
const DefaultTimeout = 5 * time.Second

// ExpireFunc is called from a timer goroutine when a hold outlives the timeout.
// It must hand the expiry back to the owner's event loop and call Expire there.
type ExpireFunc func(c domain.Category, token uint64)

type hold struct {
	token    uint64
	acquired time.Time
	timer    *time.Timer
}

// Gate allows at most one outstanding intent per category.
type Gate struct {
	mu       sync.Mutex
	timeout  time.Duration
	onExpire ExpireFunc
	held     map[domain.Category]*hold
	seq      uint64
	now      func() time.Time
}

// New creates a gate. With a nil onExpire holds never time out on their own.
func New(timeout time.Duration, onExpire ExpireFunc) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{
		timeout:  timeout,
		onExpire: onExpire,
		held:     make(map[domain.Category]*hold),
		now:      time.Now,
	}
}

// Timeout returns the bounded wait.
func (g *Gate) Timeout() time.Duration { return g.timeout }

// TryAcquire takes the guard for c. It returns false, changing nothing,
// if a previous acquisition has not been released.
func (g *Gate) TryAcquire(c domain.Category) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[c]; busy {
		return false
	}
	g.seq++
	h := &hold{token: g.seq, acquired: g.now()}
	if g.onExpire != nil {
		token, fn := h.token, g.onExpire
		h.timer = time.AfterFunc(g.timeout, func() { fn(c, token) })
	}
	g.held[c] = h
	return true
}

// Release frees c. It reports false when c was not held.
func (g *Gate) Release(c domain.Category) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.releaseLocked(c)
}

func (g *Gate) releaseLocked(c domain.Category) bool {
	h, ok := g.held[c]
	if !ok {
		return false
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	delete(g.held, c)
	return true
}

// Expire releases c only if it is still held by the acquisition identified by token.
// A true result means the intent timed out and the caller reports a ConnectivityError.
func (g *Gate) Expire(c domain.Category, token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, ok := g.held[c]
	if !ok || h.token != token {
		return false
	}
	return g.releaseLocked(c)
}

// Token returns the current acquisition token for c.
func (g *Gate) Token(c domain.Category) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.held[c]
	if !ok {
		return 0, false
	}
	return h.token, true
}

// Held reports whether c is awaiting confirmation.
func (g *Gate) Held(c domain.Category) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[c]
	return ok
}

// Pending lists held categories with how long each has been waiting.
func (g *Gate) Pending() map[domain.Category]time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	out := make(map[domain.Category]time.Duration, len(g.held))
	for c, h := range g.held {
		out[c] = now.Sub(h.acquired)
	}
	return out
}

// ReleaseAll frees every held category and returns them in canonical order.
func (g *Gate) ReleaseAll() []domain.Category {
	g.mu.Lock()
	defer g.mu.Unlock()
	var released []domain.Category
	for _, c := range domain.Categories {
		if g.releaseLocked(c) {
			released = append(released, c)
		}
	}
	return released
}
