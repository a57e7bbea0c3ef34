// Package retry provides exponential-backoff-with-jitter retry for bridge
// dispatch operations, generalized from a retry client that originally retried a
// single close-position broker call into one that retries any operation.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config contains retry configuration parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultConfig provides sensible defaults for bridge dispatch retries.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
	Timeout:        10 * time.Second,
}

// Client retries an arbitrary operation with exponential backoff and jitter.
type Client struct {
	log    *logrus.Entry
	config Config
}

// NewClient builds a retry client, sanitizing nonsensical config values the same
// way the constructor it's descended from does.
func NewClient(log *logrus.Entry, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultConfig.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig.MaxBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &Client{log: log, config: cfg}
}

// Op is the operation being retried; a context-timeout error counts as a failed
// attempt just like any other error, never a special case.
type Op func(ctx context.Context) error

// Do runs op, retrying transient failures with exponential backoff and jitter up
// to config.MaxRetries times, bounded overall by config.Timeout.
func (c *Client) Do(ctx context.Context, label string, op Op) error {
	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	attempts := 0
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := opCtx.Err(); err != nil {
			return fmt.Errorf("%s timed out after %v: %w", label, c.config.Timeout, err)
		}

		err := op(opCtx)
		attempts++
		if err == nil {
			return nil
		}

		lastErr = err
		c.log.WithError(err).WithField("attempt", attempt+1).Warnf("%s attempt failed", label)

		if !isTransient(err) || attempt >= c.config.MaxRetries {
			break
		}

		select {
		case <-time.After(backoff):
			backoff = nextBackoff(backoff, c.config.MaxBackoff)
		case <-opCtx.Done():
			return fmt.Errorf("%s timed out during backoff: %w", label, opCtx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", label, attempts, lastErr)
}

func nextBackoff(current, max time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if backoff > max {
		backoff = max
	}
	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		if jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter)); err == nil {
			backoff += time.Duration(jitterVal.Int64())
		}
	}
	return backoff
}

var transientPatterns = []string{
	"timeout", "i/o timeout", "connection refused", "connection reset",
	"temporary failure", "temporarily unavailable", "server error", "rate limit",
	"429", "502", "503", "504", "network", "dns", "tcp", "no such host",
	"deadline exceeded", "tls handshake", "broken pipe", "eof",
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
