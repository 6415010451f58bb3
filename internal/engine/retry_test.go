package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Classify(t *testing.T) {
	p := NewRetryPolicy(DefaultRetryConfig())

	assert.Equal(t, TransientClass, p.Classify(Transient(errors.New("connection reset"))))
	assert.Equal(t, Permanent, p.Classify(errors.New("bad input")))
	assert.Equal(t, Permanent, p.Classify(PanicError{Value: "boom"}))
}

func TestRetryPolicy_Decide_PermanentAlwaysDLQ(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Minute})
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	decision := p.Decide(Permanent, 1, now)

	assert.True(t, decision.MoveToDLQ)
	assert.False(t, decision.Retry)
}

func TestRetryPolicy_Decide_TransientRetriesUntilMaxAttempts(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute})
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	first := p.Decide(TransientClass, 1, now)
	require.True(t, first.Retry)
	assert.False(t, first.MoveToDLQ)
	assert.True(t, first.NextRetryAt.After(now))

	exhausted := p.Decide(TransientClass, 3, now)
	assert.True(t, exhausted.MoveToDLQ)
	assert.False(t, exhausted.Retry)
}

func TestRetryPolicy_NextAttempt_BoundedByMaxDelay(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{MaxAttempts: 20, BaseDelay: time.Second, MaxDelay: 5 * time.Second})
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	for attempt := 1; attempt <= 10; attempt++ {
		next := p.NextAttempt(attempt, now)
		delay := next.Sub(now)
		assert.GreaterOrEqual(t, delay, time.Duration(0))
		assert.LessOrEqual(t, delay, 5*time.Second)
	}
}

func TestRetryPolicy_NextAttempt_ZeroOrNegativeAttemptTreatedAsOne(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Minute})
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	next := p.NextAttempt(0, now)
	assert.LessOrEqual(t, next.Sub(now), time.Second)
}
