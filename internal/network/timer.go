// Package network wraps the orchestrator client with the shared request
// timer and the retry loop. Everything that reaches the server goes through
// this package so rate-limit state is shared between the fetch and submit
// paths; do not replicate timing logic elsewhere
package network

import (
	"sync"
	"time"

	"nexusprover/internal/platform/config/raw"
)

// TimerConfig holds the pacing knobs for the shared request timer
type TimerConfig struct {
	MinInterval       time.Duration
	MaxRequests       int
	TimeWindow        time.Duration
	DefaultRetryDelay time.Duration
}

// DefaultTimerConfig is the production pacing profile
func DefaultTimerConfig() TimerConfig {
	return TimerConfig{
		MinInterval:       1 * time.Second,
		MaxRequests:       12,
		TimeWindow:        1 * time.Minute,
		DefaultRetryDelay: 2 * time.Second,
	}
}

// TimerConfigFromEnv is DefaultTimerConfig with NEXUS_-scoped overrides
// applied, for operators who need to slow a node down without rebuilding
func TimerConfigFromEnv() TimerConfig {
	rc := raw.New().Prefix("NEXUS_")
	def := DefaultTimerConfig()
	return TimerConfig{
		MinInterval:       rc.GetDuration("MIN_REQUEST_INTERVAL", def.MinInterval),
		MaxRequests:       rc.GetInt("MAX_REQUESTS_PER_WINDOW", def.MaxRequests),
		TimeWindow:        rc.GetDuration("REQUEST_WINDOW", def.TimeWindow),
		DefaultRetryDelay: rc.GetDuration("DEFAULT_RETRY_DELAY", def.DefaultRetryDelay),
	}
}

// RequestTimer is the unified rate limiter and retry scheduler. One instance
// decides whether any outbound attempt may proceed right now, and if not,
// how long to wait. A server-directed retry delay is the highest-priority
// gate and always wins over local pacing
type RequestTimer struct {
	mu               sync.Mutex
	cfg              TimerConfig
	lastRequestAt    time.Time
	windowRequests   []time.Time
	serverRetryUntil time.Time

	now func() time.Time // seam for tests
}

// NewRequestTimer constructs a timer with the given pacing
func NewRequestTimer(cfg TimerConfig) *RequestTimer {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 1
	}
	return &RequestTimer{cfg: cfg, now: time.Now}
}

// prune drops window entries older than TimeWindow. Callers hold mu
func (t *RequestTimer) prune(now time.Time) {
	cutoff := now.Add(-t.cfg.TimeWindow)
	i := 0
	for i < len(t.windowRequests) && !t.windowRequests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		t.windowRequests = append(t.windowRequests[:0], t.windowRequests[i:]...)
	}
}

// CanProceed reports whether an attempt may start now. An expired server
// retry deadline is cleared as a side effect
func (t *RequestTimer) CanProceed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()

	if !t.serverRetryUntil.IsZero() {
		if now.Before(t.serverRetryUntil) {
			return false
		}
		t.serverRetryUntil = time.Time{}
	}
	if !t.lastRequestAt.IsZero() && now.Sub(t.lastRequestAt) < t.cfg.MinInterval {
		return false
	}
	t.prune(now)
	return len(t.windowRequests) < t.cfg.MaxRequests
}

// TimeUntilNext returns zero when CanProceed holds, otherwise the longest of
// the remaining server delay, the remaining minimum interval, and the time
// until the oldest in-window request leaves the window
func (t *RequestTimer) TimeUntilNext() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()

	var wait time.Duration
	if t.serverRetryUntil.After(now) {
		wait = t.serverRetryUntil.Sub(now)
	}
	if !t.lastRequestAt.IsZero() {
		if d := t.cfg.MinInterval - now.Sub(t.lastRequestAt); d > wait {
			wait = d
		}
	}
	t.prune(now)
	if len(t.windowRequests) >= t.cfg.MaxRequests {
		oldest := t.windowRequests[0]
		if d := oldest.Add(t.cfg.TimeWindow).Sub(now); d > wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// RecordSuccess stamps the attempt and schedules the default pause before
// the next request. It never shortens a wait the server already imposed
func (t *RequestTimer) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.lastRequestAt = now
	t.windowRequests = append(t.windowRequests, now)

	until := now.Add(t.cfg.DefaultRetryDelay)
	if until.After(t.serverRetryUntil) {
		t.serverRetryUntil = until
	}
}

// RecordFailure stamps the attempt and applies the server's retry delay when
// one was provided. Server-supplied delays unconditionally overwrite local
// state; the default delay only ever extends it
func (t *RequestTimer) RecordFailure(serverDelay time.Duration, hasServerDelay bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.lastRequestAt = now
	t.windowRequests = append(t.windowRequests, now)

	if hasServerDelay {
		t.serverRetryUntil = now.Add(serverDelay)
		return
	}
	until := now.Add(t.cfg.DefaultRetryDelay)
	if until.After(t.serverRetryUntil) {
		t.serverRetryUntil = until
	}
}
