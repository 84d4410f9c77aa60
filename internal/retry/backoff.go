package retry

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// BackoffConfig contains configuration for exponential backoff
type BackoffConfig struct {
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
	MaxAttempts  int           `json:"max_attempts"`
	Jitter       bool          `json:"jitter"`
}

// DefaultBackoffConfig returns a sensible default configuration
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// Backoff implements exponential backoff with optional jitter
type Backoff struct {
	config BackoffConfig
}

// NewBackoff creates a new exponential backoff instance
func NewBackoff(config BackoffConfig) *Backoff {
	return &Backoff{
		config: config,
	}
}

// Retry executes the operation with exponential backoff retry logic
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt == b.config.MaxAttempts {
			break
		}

		delay := b.calculateDelay(attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// calculateDelay computes the delay for the given attempt with exponential backoff and optional jitter
func (b *Backoff) calculateDelay(attempt int) time.Duration {
	delay := float64(b.config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= b.config.Multiplier
	}

	if delay > float64(b.config.MaxDelay) {
		delay = float64(b.config.MaxDelay)
	}

	// ±25% randomness
	if b.config.Jitter {
		jitter := delay * 0.25
		randomValue := secureFloat64()
		delay += (randomValue - 0.5) * 2 * jitter

		if delay < 0 {
			delay = float64(b.config.InitialDelay)
		}
		if delay > float64(b.config.MaxDelay) {
			delay = float64(b.config.MaxDelay)
		}
	}

	return time.Duration(delay)
}

// GetNextDelay returns the delay that would be used for the given attempt (for testing/monitoring)
func (b *Backoff) GetNextDelay(attempt int) time.Duration {
	return b.calculateDelay(attempt)
}

// secureFloat64 generates a cryptographically secure float64 between 0 and 1
func secureFloat64() float64 {
	max := big.NewInt(0).SetUint64(math.MaxUint64)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Extremely unlikely; time-based fallback keeps retries moving
		return float64(time.Now().UnixNano()%1000000) / 1000000.0
	}

	return float64(n.Uint64()) / float64(math.MaxUint64)
}
