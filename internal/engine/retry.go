package engine

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// Classification is the outcome of RetryPolicy.Classify.
type Classification int

const (
	Permanent Classification = iota
	TransientClass
)

// Decision is the outcome of RetryPolicy.Decide.
type Decision struct {
	Retry        bool
	NextRetryAt  time.Time
	MoveToDLQ    bool
}

// RetryConfig holds the bounded-exponential-backoff-with-full-jitter parameters
// (configuration keys retry.maxAttempts, retry.baseDelayMs, retry.maxDelayMs).
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig mirrors sane defaults for a unit whose export call may
// transiently fail against an overloaded database or storage backend.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    2 * time.Minute,
	}
}

// RetryPolicy classifies unit execution errors and computes bounded
// exponential backoff with full jitter for the next attempt.
type RetryPolicy struct {
	cfg RetryConfig
}

func NewRetryPolicy(cfg RetryConfig) RetryPolicy {
	return RetryPolicy{cfg: cfg}
}

// Classify distinguishes a Transient error (wrapped via Transient(err)) from
// a Permanent one (anything else, including PanicError and JobTerminalError).
func (p RetryPolicy) Classify(err error) Classification {
	if IsRetryable(err) {
		return TransientClass
	}
	return Permanent
}

// NextAttempt computes nextRetryAt for the given attempt_count (the count
// already incremented by the claim that produced this failure), using
// bounded exponential backoff with full jitter:
//
//	raw   = min(maxDelay, baseDelay * 2^(attemptCount-1))
//	delay = uniform_random(0, raw)
func (p RetryPolicy) NextAttempt(attemptCount int, now time.Time) time.Time {
	return now.Add(p.backoff(attemptCount))
}

func (p RetryPolicy) backoff(attemptCount int) time.Duration {
	if attemptCount < 1 {
		attemptCount = 1
	}
	raw := float64(p.cfg.BaseDelay) * math.Pow(2, float64(attemptCount-1))
	if raw > float64(p.cfg.MaxDelay) {
		raw = float64(p.cfg.MaxDelay)
	}
	maxJitter := int64(raw)
	if maxJitter <= 0 {
		return p.cfg.BaseDelay
	}
	jitter, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
	if err != nil {
		return p.cfg.BaseDelay
	}
	return time.Duration(jitter.Int64())
}

// Decide applies the Classify → {Retry | DLQ} rule: Permanent always goes to
// DLQ; Transient retries while attemptCount < maxAttempts, otherwise DLQ.
func (p RetryPolicy) Decide(class Classification, attemptCount int, now time.Time) Decision {
	if class == Permanent {
		return Decision{MoveToDLQ: true}
	}
	if attemptCount < p.cfg.MaxAttempts {
		return Decision{Retry: true, NextRetryAt: p.NextAttempt(attemptCount, now)}
	}
	return Decision{MoveToDLQ: true}
}
