package chain

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrCircuitOpen = errors.New("rpc circuit open")

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// breaker is the client-private circuit state. It is never persisted: a fresh
// process must not inherit a stale outage verdict.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	log       *logrus.Entry

	state        BreakerState
	failureCount int
	openUntil    time.Time
	lastError    string

	now func() time.Time
}

func newBreaker(threshold int, cooldown time.Duration, log *logrus.Entry) *breaker {
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		log:       log,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// allow gates one call. While open and inside the cooldown window it fails
// fast; once the cooldown elapses it moves to half-open and admits exactly
// one probe.
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen {
		if b.now().Before(b.openUntil) {
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
	}
	return nil
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failureCount > 0 || b.state != BreakerClosed {
		b.log.WithField("failures", b.failureCount).Info("rpc circuit closed")
	}
	b.state = BreakerClosed
	b.failureCount = 0
	b.openUntil = time.Time{}
	b.lastError = ""
}

func (b *breaker) failure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastError = err.Error()

	// A failed half-open probe reopens immediately; it does not get the
	// threshold's worth of grace again.
	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.openUntil = b.now().Add(b.cooldown)
		b.log.WithField("lastError", b.lastError).Error("rpc circuit reopened after failed half-open probe")
		return
	}

	b.failureCount++
	if b.state != BreakerOpen && b.failureCount >= b.threshold {
		b.state = BreakerOpen
		b.openUntil = b.now().Add(b.cooldown)
		b.log.WithFields(logrus.Fields{
			"failures":  b.failureCount,
			"reopenAt":  b.openUntil,
			"lastError": b.lastError,
		}).Error("rpc circuit opened")
	}
}

func (b *breaker) failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

func (b *breaker) snapshot() (BreakerState, int, time.Time, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.failureCount, b.openUntil, b.lastError
}
