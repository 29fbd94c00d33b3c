package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coursechat/internal/domain"
)

// rateLimited throttles Chat calls on a wrapped provider. All other Provider
// methods pass through.
type rateLimited struct {
	domain.Provider
	bucket *tokenBucket
	logger *slog.Logger
}

// WithRateLimit wraps p so each Chat call first takes a token from a bucket
// refilled at ratePerMinute. Waiting respects context cancellation.
func WithRateLimit(p domain.Provider, ratePerMinute int, logger *slog.Logger) domain.Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &rateLimited{
		Provider: p,
		bucket:   newTokenBucket(10, float64(ratePerMinute)),
		logger:   logger,
	}
}

func (r *rateLimited) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	start := time.Now()
	if err := r.bucket.wait(ctx); err != nil {
		return nil, err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		r.logger.Debug("rate limit delayed request", "provider", r.Provider.Name(), "waited", waited)
	}
	return r.Provider.Chat(ctx, req)
}

// tokenBucket is a simple token bucket. Tokens refill continuously at rate
// per second up to max.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastTime time.Time
}

func newTokenBucket(maxBurst int, ratePerMinute float64) *tokenBucket {
	if maxBurst <= 0 {
		maxBurst = 10
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 30
	}
	return &tokenBucket{
		tokens:   float64(maxBurst),
		max:      float64(maxBurst),
		rate:     ratePerMinute / 60.0,
		lastTime: time.Now(),
	}
}

func (b *tokenBucket) wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(b.lastTime).Seconds()
		b.tokens += elapsed * b.rate
		if b.tokens > b.max {
			b.tokens = b.max
		}
		b.lastTime = now

		if b.tokens >= 1.0 {
			b.tokens -= 1.0
			b.mu.Unlock()
			return nil
		}

		waitSec := (1.0 - b.tokens) / b.rate
		b.mu.Unlock()

		timer := time.NewTimer(time.Duration(waitSec * float64(time.Second)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
