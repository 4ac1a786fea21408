package chain

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := newBreaker(3, time.Minute, testLogEntry())

	b.failure(errors.New("boom"))
	b.failure(errors.New("boom"))
	state, failures, _, _ := b.snapshot()
	assert.Equal(t, BreakerClosed, state)
	assert.Equal(t, 2, failures)

	b.failure(errors.New("boom"))
	state, failures, openUntil, lastErr := b.snapshot()
	assert.Equal(t, BreakerOpen, state)
	assert.Equal(t, 3, failures)
	assert.False(t, openUntil.IsZero())
	assert.Equal(t, "boom", lastErr)
}

func TestBreakerFailsFastWhileOpen(t *testing.T) {
	now := time.Now()
	b := newBreaker(1, time.Minute, testLogEntry())
	b.now = func() time.Time { return now }

	b.failure(errors.New("down"))
	require.ErrorIs(t, b.allow(), ErrCircuitOpen)
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	now := time.Now()
	b := newBreaker(1, time.Minute, testLogEntry())
	b.now = func() time.Time { return now }

	b.failure(errors.New("down"))
	now = now.Add(2 * time.Minute)
	require.NoError(t, b.allow())

	state, _, _, _ := b.snapshot()
	assert.Equal(t, BreakerHalfOpen, state)
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	now := time.Now()
	b := newBreaker(1, time.Minute, testLogEntry())
	b.now = func() time.Time { return now }

	b.failure(errors.New("down"))
	now = now.Add(2 * time.Minute)
	require.NoError(t, b.allow())

	// One failed probe is enough; the circuit must not grant another free retry.
	b.failure(errors.New("still down"))
	state, _, openUntil, _ := b.snapshot()
	assert.Equal(t, BreakerOpen, state)
	assert.Equal(t, now.Add(time.Minute), openUntil)
	require.ErrorIs(t, b.allow(), ErrCircuitOpen)
}

func TestBreakerClosesOnSuccess(t *testing.T) {
	b := newBreaker(2, time.Minute, testLogEntry())
	b.failure(errors.New("flaky"))
	b.success()

	state, failures, openUntil, lastErr := b.snapshot()
	assert.Equal(t, BreakerClosed, state)
	assert.Zero(t, failures)
	assert.True(t, openUntil.IsZero())
	assert.Empty(t, lastErr)
}
