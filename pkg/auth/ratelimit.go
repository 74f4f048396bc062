package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether an authenticated identity may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds rate limit settings for one service tier.
type TierConfig struct {
	RequestsPerMinute int
}

// InProcessLimiter counts requests per subject in fixed one-minute
// windows, entirely in memory. Good enough for a single instance; a
// multi-instance deployment would need a shared backend.
type InProcessLimiter struct {
	tiers      map[string]TierConfig
	defaultRPM int

	mu      sync.Mutex
	windows map[string]*window
	sweeps  int
}

type window struct {
	count   int
	startAt time.Time
}

// NewInProcessLimiter creates a limiter with per-tier configuration.
// Tiers absent from the map fall back to defaultRPM.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		windows:    make(map[string]*window),
	}
}

// limitFor resolves the requests-per-minute budget for a tier.
func (l *InProcessLimiter) limitFor(tier string) int {
	if tc, ok := l.tiers[tier]; ok {
		return tc.RequestsPerMinute
	}
	return l.defaultRPM
}

// Allow returns ErrTooManyRequests once the identity's window budget is
// spent. A budget of zero or less means unlimited.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier
	if tier == "" {
		tier = "default"
	}
	rpm := l.limitFor(tier)
	if rpm <= 0 {
		return nil
	}

	key := identity.Subject + ":" + tier
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		l.windows[key] = &window{count: 1, startAt: now}
		return nil
	}
	if now.Sub(w.startAt) >= time.Minute {
		w.count, w.startAt = 1, now
		l.maybeSweep(now)
		return nil
	}

	w.count++
	if w.count > rpm {
		return ErrTooManyRequests
	}
	return nil
}

// maybeSweep drops windows idle for several minutes so one-off subjects
// do not accumulate forever. Runs at most every 256 rollovers.
func (l *InProcessLimiter) maybeSweep(now time.Time) {
	l.sweeps++
	if l.sweeps%256 != 0 {
		return
	}
	for key, w := range l.windows {
		if now.Sub(w.startAt) >= 5*time.Minute {
			delete(l.windows, key)
		}
	}
}
