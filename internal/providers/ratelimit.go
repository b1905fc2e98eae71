package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket over requests per minute. A 429 from the
// server empties the bucket and holds it closed for the Retry-After period.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	window            time.Duration

	tokens       float64
	lastUpdate   time.Time
	blockedUntil time.Time

	totalConsumed int64
	totalWaited   time.Duration
	last429Time   time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit"`
	TimeUntilToken  time.Duration `json:"time_until_token"`
	TotalConsumed   int64         `json:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited"`
	Last429Time     time.Time     `json:"last_429_time,omitempty"`
}

// NewRateLimiter creates a limiter with a full bucket. Non-positive rates
// default to 60 requests per minute.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		window:            time.Minute,
		tokens:            float64(requestsPerMinute),
		lastUpdate:        time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		r.refill(now)

		if r.tokens >= 1.0 && !now.Before(r.blockedUntil) {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}
		wait := r.untilToken(now)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			r.mu.Lock()
			r.totalWaited += wait
			r.mu.Unlock()
		}
	}
}

// TryConsume takes a token without blocking.
func (r *RateLimiter) TryConsume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.refill(now)
	if r.tokens >= 1.0 && !now.Before(r.blockedUntil) {
		r.tokens--
		r.totalConsumed++
		return true
	}
	return false
}

// Record429 drains the bucket. With a positive retryAfter no token is handed
// out until it has elapsed.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.last429Time = now
	r.tokens = 0
	if retryAfter > 0 {
		r.blockedUntil = now.Add(retryAfter)
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.refill(now)

	var until time.Duration
	if r.tokens < 1.0 || now.Before(r.blockedUntil) {
		until = r.untilToken(now)
	}
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.requestsPerMinute,
		TimeUntilToken:  until,
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
		Last429Time:     r.last429Time,
	}
}

// refill must be called with the lock held.
func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastUpdate)
	r.lastUpdate = now

	r.tokens += elapsed.Seconds() * r.perSecond()
	if r.tokens > float64(r.requestsPerMinute) {
		r.tokens = float64(r.requestsPerMinute)
	}
}

func (r *RateLimiter) untilToken(now time.Time) time.Duration {
	var wait time.Duration
	if r.tokens < 1.0 {
		wait = time.Duration((1.0 - r.tokens) / r.perSecond() * float64(time.Second))
	}
	if blocked := r.blockedUntil.Sub(now); blocked > wait {
		wait = blocked
	}
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

func (r *RateLimiter) perSecond() float64 {
	return float64(r.requestsPerMinute) / r.window.Seconds()
}
