// Package ratelimit provides per-client request limiting using token buckets.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a Limiter. Zero RPS disables limiting.
type Config struct {
	RPS             float64
	Burst           int
	IdleTTL         time.Duration // buckets unused this long are dropped
	CleanupInterval time.Duration
}

// Info describes a client's bucket after a decision.
type Info struct {
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out one token bucket per client identifier.
type Limiter struct {
	cfg  Config
	now  func() time.Time
	stop chan struct{}
	once sync.Once

	mu      sync.Mutex
	clients map[string]*client
}

// NewLimiter creates a limiter and starts its cleanup goroutine when enabled.
func NewLimiter(cfg Config) *Limiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, int(math.Ceil(cfg.RPS)))
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
		clients: make(map[string]*client),
	}
	if l.Enabled() {
		go l.cleanupLoop()
	}
	return l
}

// Enabled reports whether requests are limited at all.
func (l *Limiter) Enabled() bool {
	return l.cfg.RPS > 0
}

// Allow consumes one token for clientID.
func (l *Limiter) Allow(clientID string) (bool, Info) {
	if !l.Enabled() {
		return true, Info{}
	}
	now := l.now()

	l.mu.Lock()
	c, ok := l.clients[clientID]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.clients[clientID] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	info := Info{Limit: l.cfg.Burst}
	if c.limiter.AllowN(now, 1) {
		info.Remaining = max(0, int(c.limiter.TokensAt(now)))
		return true, info
	}

	r := c.limiter.ReserveN(now, 1)
	info.RetryAfter = r.DelayFrom(now)
	r.CancelAt(now)
	return false, info
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Limiter) cleanup() {
	cutoff := l.now().Add(-l.cfg.IdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, id)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
