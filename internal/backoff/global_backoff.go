package backoff

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/matthieugras/vidctl/internal/config"
)

// GlobalBackoff paces every request sharing an API client after the server
// signals overload (429 or 5xx). It never retries anything itself: callers
// still receive the response that triggered it.
type GlobalBackoff struct {
	mu              sync.RWMutex
	backoffUntil    time.Time
	currentInterval time.Duration
	successStreak   int
	config          config.BackoffConfig

	// Callbacks for UI updates
	onBackoffStart func(duration time.Duration)
	onBackoffEnd   func()
}

// New creates a new global backoff coordinator
func New(cfg config.BackoffConfig) *GlobalBackoff {
	return &GlobalBackoff{
		currentInterval: cfg.InitialInterval,
		config:          cfg,
	}
}

// SetCallbacks sets optional callbacks for backoff state changes
func (g *GlobalBackoff) SetCallbacks(onStart func(time.Duration), onEnd func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onBackoffStart = onStart
	g.onBackoffEnd = onEnd
}

// WaitIfNeeded blocks while a cooldown is active
func (g *GlobalBackoff) WaitIfNeeded(ctx context.Context) error {
	g.mu.RLock()
	until := g.backoffUntil
	g.mu.RUnlock()

	if time.Now().Before(until) {
		timer := time.NewTimer(time.Until(until))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
	return nil
}

// Observe inspects a response status and starts or relaxes the cooldown.
// A Retry-After header (seconds or HTTP date) lengthens the cooldown when it asks for more.
func (g *GlobalBackoff) Observe(resp *http.Response) {
	if resp == nil {
		return
	}
	if IsOverloaded(resp.StatusCode) {
		g.ReportError(parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
		return
	}
	g.ReportSuccess()
}

// ReportError triggers the cooldown. minWait, if positive, is honoured as a floor.
func (g *GlobalBackoff) ReportError(minWait time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.successStreak = 0

	// Calculate next interval with jitter
	jitter := g.config.RandomizationFactor * float64(g.currentInterval)
	backoffDuration := g.currentInterval + time.Duration(rand.Float64()*jitter)
	backoffDuration = max(backoffDuration, minWait)

	g.backoffUntil = time.Now().Add(backoffDuration)

	if g.onBackoffStart != nil {
		g.onBackoffStart(backoffDuration)
	}

	// Increase interval for next time (exponential)
	g.currentInterval = min(time.Duration(float64(g.currentInterval)*g.config.Multiplier), g.config.MaxInterval)

	if g.onBackoffEnd != nil {
		time.AfterFunc(backoffDuration, g.onBackoffEnd)
	}
}

// ReportSuccess reports a response that did not signal overload
func (g *GlobalBackoff) ReportSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.successStreak++

	// Reset interval after a streak of successes
	if g.successStreak >= 3 {
		g.currentInterval = g.config.InitialInterval
	}
}

// IsBackingOff returns true if a cooldown is currently active
func (g *GlobalBackoff) IsBackingOff() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return time.Now().Before(g.backoffUntil)
}

// GetBackoffRemaining returns the remaining cooldown
func (g *GlobalBackoff) GetBackoffRemaining() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if time.Now().Before(g.backoffUntil) {
		return time.Until(g.backoffUntil)
	}
	return 0
}

// GetCurrentInterval returns the interval the next cooldown starts from
func (g *GlobalBackoff) GetCurrentInterval() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.currentInterval
}

// IsOverloaded reports whether a status code asks clients to slow down
func IsOverloaded(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
