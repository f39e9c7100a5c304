// Package quota enforces a rolling-window request ceiling for the
// answer-engine API. The guard is an explicitly owned object shared by every
// caller in the process; all check-and-increment operations are serialized
// under a mutex.
package quota

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimitError is returned by Reserve when the window ceiling has been
// reached. RetryAfter is how long the caller must wait before the window
// rolls over.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("quota: rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Millisecond))
}

// Snapshot is a point-in-time view of the window for observability.
type Snapshot struct {
	RequestCount int       `json:"request_count"`
	WindowStart  time.Time `json:"window_start"`
	Blocked      bool      `json:"blocked"`
}

// Guard tracks request counts over a rolling window and fast-fails once the
// ceiling is reached.
type Guard struct {
	mu          sync.Mutex
	ceiling     int
	window      time.Duration
	count       int
	windowStart time.Time

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// New creates a Guard with the given ceiling and window size.
func New(ceiling int, window time.Duration) *Guard {
	if ceiling <= 0 {
		ceiling = 50
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Guard{
		ceiling: ceiling,
		window:  window,
		nowFunc: time.Now,
	}
}

// Reserve checks whether another request is allowed in the current window.
// It returns a *RateLimitError carrying the wait time when the ceiling has
// been reached; it never counts the request itself. Callers must invoke
// Record exactly once after the upstream call succeeds.
//
// Because only successes are counted, the ceiling is a soft bound: callers
// that pass Reserve concurrently before any of them Record can overshoot
// it by up to the number of in-flight requests (bounded in practice by the
// query client's sub-batch size). Failed calls never consume quota.
func (g *Guard) Reserve() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFunc()
	g.rollWindow(now)

	if g.count >= g.ceiling {
		retryAfter := g.windowStart.Add(g.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		zap.L().Warn("quota: ceiling reached",
			zap.Int("ceiling", g.ceiling),
			zap.Duration("retry_after", retryAfter),
		)
		return &RateLimitError{RetryAfter: retryAfter}
	}
	return nil
}

// Record counts one successful upstream call against the current window.
func (g *Guard) Record() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollWindow(g.nowFunc())
	g.count++
}

// Snapshot returns the current window state.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollWindow(g.nowFunc())
	return Snapshot{
		RequestCount: g.count,
		WindowStart:  g.windowStart,
		Blocked:      g.count >= g.ceiling,
	}
}

// rollWindow resets the counter when the window has elapsed. Caller must
// hold g.mu.
func (g *Guard) rollWindow(now time.Time) {
	if g.windowStart.IsZero() || now.Sub(g.windowStart) >= g.window {
		g.windowStart = now
		g.count = 0
	}
}
