package chain

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CloakLink/CloakLinkSOL/internal/metrics"
)

const jitterRatio = 10 // percent

type Options struct {
	Endpoints         []string
	MaxRetries        int
	RetryDelay        time.Duration
	BackoffMax        time.Duration
	Timeout           time.Duration
	BreakerThreshold  int
	BreakerCooldown   time.Duration
	FailoverThreshold int
	CacheTTL          time.Duration
}

// Status is the read-only view of the client's resilience state. It crosses
// the package boundary by value; nothing outside the client can mutate the
// breaker through it.
type Status struct {
	Endpoint     string       `json:"endpoint"`
	State        BreakerState `json:"state"`
	FailureCount int          `json:"failureCount"`
	OpenUntil    *time.Time   `json:"openUntil,omitempty"`
	LastError    string       `json:"lastError,omitempty"`
}

// Client talks to one or more upstream RPC endpoints under retry, timeout,
// circuit-breaking, and round-robin failover, with a short-TTL read cache
// for transaction lookups.
type Client struct {
	opts    Options
	breaker *breaker
	cache   *txCache
	log     *logrus.Entry

	mu    sync.Mutex
	index int
	conn  transport

	connect func(endpoint string) transport
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(opts Options, log *logrus.Entry) (*Client, error) {
	endpoints := sanitizeEndpoints(opts.Endpoints)
	if len(endpoints) == 0 {
		return nil, errors.New("rpc endpoints is empty")
	}
	opts.Endpoints = endpoints
	if opts.FailoverThreshold <= 0 {
		opts.FailoverThreshold = 3
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = 5
	}

	c := &Client{
		opts:    opts,
		breaker: newBreaker(opts.BreakerThreshold, opts.BreakerCooldown, log),
		cache:   newTxCache(opts.CacheTTL),
		log:     log,
		connect: func(endpoint string) transport { return newRPCConn(endpoint) },
		sleep:   sleepCtx,
	}
	c.conn = c.connect(endpoints[0])
	log.WithField("endpoint", endpoints[0]).Info("connecting to rpc")
	return c, nil
}

func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, opts SignaturesOpts) ([]SignatureInfo, error) {
	var out []SignatureInfo
	err := c.execute(ctx, "getSignaturesForAddress", func(ctx context.Context, t transport) error {
		res, err := t.getSignaturesForAddress(ctx, address, opts)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetParsedTransaction returns the parsed transaction, or (nil, nil) when the
// ledger does not know the signature. Live cache entries bypass the
// breaker/retry path entirely.
func (c *Client) GetParsedTransaction(ctx context.Context, signature string) (*ParsedTransaction, error) {
	if tx, ok := c.cache.get(signature); ok {
		return tx, nil
	}

	var out *ParsedTransaction
	err := c.execute(ctx, "getTransaction", func(ctx context.Context, t transport) error {
		res, err := t.getTransaction(ctx, signature)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.cache.put(signature, out)
	return out, nil
}

func (c *Client) Status() Status {
	state, failures, openUntil, lastErr := c.breaker.snapshot()
	status := Status{
		Endpoint:     c.currentEndpoint(),
		State:        state,
		FailureCount: failures,
		LastError:    lastErr,
	}
	if !openUntil.IsZero() {
		status.OpenUntil = &openUntil
	}
	return status
}

func (c *Client) execute(ctx context.Context, method string, op func(ctx context.Context, t transport) error) error {
	if err := c.breaker.allow(); err != nil {
		return err
	}

	delay := c.opts.RetryDelay
	var lastErr error

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		endpoint, conn := c.current()
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		err := op(callCtx, conn)
		cancel()

		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metrics.RPCRequestsTotal.WithLabelValues(method, endpoint, outcome).Inc()
		metrics.RPCRequestDuration.WithLabelValues(method, endpoint, outcome).Observe(time.Since(start).Seconds())

		if err == nil {
			c.breaker.success()
			return nil
		}

		lastErr = err
		c.breaker.failure(err)
		if attempt == c.opts.MaxRetries {
			break
		}
		c.log.WithFields(logrus.Fields{
			"method":   method,
			"endpoint": endpoint,
			"attempt":  attempt + 1,
			"error":    err.Error(),
		}).Warn("rpc call failed")

		if c.shouldRotate() {
			c.rotate()
		}

		wait := delay
		if wait > c.opts.BackoffMax {
			wait = c.opts.BackoffMax
		}
		if err := c.sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
		delay *= 2
		if delay > c.opts.BackoffMax {
			delay = c.opts.BackoffMax
		}
	}

	return fmt.Errorf("rpc %s failed: %w", method, lastErr)
}

func (c *Client) current() (string, transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Endpoints[c.index], c.conn
}

func (c *Client) currentEndpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Endpoints[c.index]
}

func (c *Client) shouldRotate() bool {
	if len(c.opts.Endpoints) <= 1 {
		return false
	}
	return c.breaker.failures()%c.opts.FailoverThreshold == 0
}

// rotate moves to the next endpoint round-robin and rebuilds the connection.
func (c *Client) rotate() {
	c.mu.Lock()
	previous := c.opts.Endpoints[c.index]
	c.index = (c.index + 1) % len(c.opts.Endpoints)
	next := c.opts.Endpoints[c.index]
	c.conn = c.connect(next)
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"previousEndpoint": previous,
		"endpoint":         next,
		"failures":         c.breaker.failures(),
	}).Warn("rotated rpc endpoint after failures")
}

// withJitter adds up to 10% random delay so retries across instances do not
// synchronize into a storm.
func withJitter(d time.Duration) time.Duration {
	span := int64(d) / jitterRatio
	if span <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(span+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
