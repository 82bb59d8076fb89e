package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds retries of idempotent reads and paces e-mail redelivery.
type RetryConfig struct {
	// MaxAttempts counts the first try. 1 disables retries. Default 2.
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" mapstructure:"multiplier"`
	// JitterFraction spreads each delay by ±fraction.
	JitterFraction float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`

	// Retryable overrides IsTransient.
	Retryable func(err error) bool `yaml:"-" mapstructure:"-"`
	// Name labels retry log lines.
	Name string `yaml:"-" mapstructure:"-"`
}

// ReadRetry is the policy for external reads: a timeout-bounded call and a
// single retry.
func ReadRetry(name string) RetryConfig {
	return RetryConfig{
		Name:           name,
		MaxAttempts:    2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2,
		JitterFraction: 0.2,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	if c.Retryable == nil {
		c.Retryable = IsTransient
	}
	return c
}

// Do runs fn until it succeeds, fails permanently, the attempts run out or
// ctx is done. Only use it for idempotent calls.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for calls returning a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !cfg.Retryable(err) || attempt+1 >= cfg.MaxAttempts {
			return zero, err
		}

		delay := Backoff(attempt, cfg)
		zap.L().Warn("resilience: retrying",
			zap.String("call", cfg.Name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// Backoff returns the delay before retry number attempt+1 (attempt is zero
// based): InitialBackoff * Multiplier^attempt, capped at MaxBackoff, with jitter.
func Backoff(attempt int, cfg RetryConfig) time.Duration {
	cfg = cfg.withDefaults()
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	if cfg.JitterFraction > 0 {
		delay += (rand.Float64()*2 - 1) * delay * cfg.JitterFraction
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}
