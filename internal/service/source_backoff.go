package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const sourceBackoffKey = "source-backoff"

type backoffState struct {
	Until    time.Time `json:"until"`
	Failures int       `json:"failures"`
}

// SourceBackoff gates calls to the document source after rate limiting or a
// run in which every document failed on transport. State lives in redis when
// available so the API and scheduled CLI runs share it; the in-memory copy is
// used when the cache is disabled or unreachable.
type SourceBackoff struct {
	cache  *CacheService
	base   time.Duration
	max    time.Duration
	clock  func() time.Time
	logger *zap.Logger

	mu    sync.Mutex
	local backoffState
}

// NewSourceBackoff constructs the gate. base doubles after each consecutive failed run up to max.
func NewSourceBackoff(cache *CacheService, base, max time.Duration, logger *zap.Logger) *SourceBackoff {
	if base <= 0 {
		base = 15 * time.Minute
	}
	if max < base {
		max = base
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SourceBackoff{cache: cache, base: base, max: max, clock: time.Now, logger: logger}
}

// WithClock replaces the time source.
func (b *SourceBackoff) WithClock(clock func() time.Time) *SourceBackoff {
	if clock != nil {
		b.clock = clock
	}
	return b
}

// Allow reports whether the source may be called now. When it may not, until
// is the earliest instant it may be called again.
func (b *SourceBackoff) Allow(ctx context.Context) (until time.Time, ok bool) {
	state := b.load(ctx)
	if b.clock().Before(state.Until) {
		return state.Until, false
	}
	return time.Time{}, true
}

// RecordRateLimit closes the gate until reset. A zero reset falls back to the base delay.
func (b *SourceBackoff) RecordRateLimit(ctx context.Context, reset time.Time) {
	now := b.clock()
	if reset.IsZero() || !reset.After(now) {
		reset = now.Add(b.base)
	}
	state := b.load(ctx)
	if reset.After(state.Until) {
		state.Until = reset
	}
	b.store(ctx, state)
	b.logger.Warn("document source rate limited", zap.Time("retry_after", state.Until))
}

// RecordFailure closes the gate for an exponentially growing delay and returns its end.
func (b *SourceBackoff) RecordFailure(ctx context.Context) time.Time {
	state := b.load(ctx)
	delay := b.base
	for i := 0; i < state.Failures && delay < b.max; i++ {
		delay *= 2
	}
	if delay > b.max {
		delay = b.max
	}
	state.Failures++
	state.Until = b.clock().Add(delay)
	b.store(ctx, state)
	b.logger.Warn("document source unavailable, backing off",
		zap.Int("consecutive_failures", state.Failures),
		zap.Duration("delay", delay))
	return state.Until
}

// Reset opens the gate and forgets past failures.
func (b *SourceBackoff) Reset(ctx context.Context) {
	b.mu.Lock()
	changed := b.local != backoffState{}
	b.local = backoffState{}
	b.mu.Unlock()
	if err := b.cache.Invalidate(ctx, sourceBackoffKey); err != nil {
		b.logger.Debug("failed to clear shared backoff state", zap.Error(err))
	}
	if changed {
		b.logger.Info("document source backoff cleared")
	}
}

func (b *SourceBackoff) load(ctx context.Context) backoffState {
	var shared backoffState
	hit, err := b.cache.Get(ctx, sourceBackoffKey, &shared)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil && b.cache.Enabled() {
		// The shared entry is authoritative whenever redis answers.
		if !hit {
			shared = backoffState{}
		}
		b.local = shared
	}
	return b.local
}

func (b *SourceBackoff) store(ctx context.Context, state backoffState) {
	b.mu.Lock()
	b.local = state
	b.mu.Unlock()
	// Keep failure history around for a while after the gate reopens.
	ttl := state.Until.Sub(b.clock()) + b.max
	if err := b.cache.Set(ctx, sourceBackoffKey, state, ttl); err != nil {
		b.logger.Debug("failed to share backoff state", zap.Error(err))
	}
}
