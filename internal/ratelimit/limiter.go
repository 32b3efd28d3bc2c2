// Package ratelimit provides rate limiting for uploadPart calls using a
// token bucket algorithm.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter. It allows bursts up
// to maxTokens, then refills at refillRate tokens/second.
//
// Thread-safe: all mutable state is protected by a sync.Mutex. Supports a
// cooldown period (set via SetCooldown) during which all token acquisition
// blocks until the cooldown expires. Nothing in this module sets a
// cooldown or drains the bucket on its own; only callers of SetCooldown
// and Drain do.
type RateLimiter struct {
	tokens      float64
	maxTokens   float64
	refillRate  float64
	lastRefill  time.Time
	cooldownEnd time.Time
	mu          sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
//
//   - tokensPerSecond: rate at which tokens are added
//   - burstSize: maximum tokens that can accumulate
func NewRateLimiter(tokensPerSecond, burstSize float64) *RateLimiter {
	return &RateLimiter{
		tokens:     burstSize,
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
	}
}

// NewPartUploadRateLimiter creates the shared limiter used to pace
// concurrent uploadPart calls across every UploadController in the process.
func NewPartUploadRateLimiter() *RateLimiter {
	return NewRateLimiter(DefaultRatePerSec, DefaultBurstCapacity)
}

// TryAcquire attempts to acquire one token without blocking.
func (rl *RateLimiter) TryAcquire() bool {
	return rl.tryAcquire()
}

// TimeUntilNextToken returns the estimated time until the next token is
// available.
func (rl *RateLimiter) TimeUntilNextToken() time.Duration {
	return rl.timeUntilNextToken()
}

// Reconfigure changes the rate and burst parameters of a running limiter.
// If current tokens exceed the new burst, they are capped.
func (rl *RateLimiter) Reconfigure(rate, burst float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillRate = rate
	rl.maxTokens = burst
	if rl.tokens > burst {
		rl.tokens = burst
	}
}

// Wait blocks until a token is available or ctx is cancelled. If a
// cooldown is active (set via SetCooldown), Wait
// blocks until the cooldown expires before attempting to acquire a token.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if cooldown := rl.CooldownRemaining(); cooldown > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cooldown):
		}
	}

	if rl.tryAcquire() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if rl.tryAcquire() {
			return nil
		}

		waitDuration := rl.timeUntilNextToken()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitDuration):
		}
	}
}

func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

func (rl *RateLimiter) timeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	tokensNeeded := 1.0 - rl.tokens
	if tokensNeeded <= 0 {
		return 0
	}
	secondsNeeded := tokensNeeded / rl.refillRate
	return time.Duration(secondsNeeded * float64(time.Second))
}

// GetCurrentTokens returns the current number of tokens (for tests).
func (rl *RateLimiter) GetCurrentTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	tokens := rl.tokens + elapsed*rl.refillRate
	if tokens > rl.maxTokens {
		tokens = rl.maxTokens
	}
	return tokens
}

// Drain empties the token bucket to zero. Subsequent Wait calls block until
// tokens refill.
func (rl *RateLimiter) Drain() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = 0
	rl.lastRefill = time.Now()
}

// SetCooldown sets a cooldown period during which all Wait calls block.
// Uses merge semantics: an existing cooldown that extends further into the
// future is preserved (a shorter Retry-After cannot shorten an active
// cooldown).
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	newEnd := time.Now().Add(d)
	if newEnd.After(rl.cooldownEnd) {
		rl.cooldownEnd = newEnd
	}
}

// CooldownRemaining returns the time remaining on the active cooldown, or
// 0 if no cooldown is active.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.cooldownEnd.IsZero() {
		return 0
	}
	remaining := time.Until(rl.cooldownEnd)
	if remaining <= 0 {
		return 0
	}
	return remaining
}
