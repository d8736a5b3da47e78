package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/emendo-dev/emendo/pkg/llm"
)

var _ llm.Provider = (*Provider)(nil)

// ProviderConfig tunes a [Provider]. Zero fields fall back to defaults.
type ProviderConfig struct {
	// MaxAttempts is how many times a batch request is tried before
	// the error is surfaced. Default: 3.
	MaxAttempts int

	// Backoff is the delay before the first retry; it doubles per
	// attempt. Default: 1s.
	Backoff time.Duration

	// Breaker configures the circuit breaker shared by all requests.
	Breaker BreakerConfig
}

// Provider wraps an [llm.Provider] with bounded retries and a circuit
// breaker. Retries cover transient failures inside one request; the
// breaker stops later requests from hammering a backend that keeps
// failing.
type Provider struct {
	inner       llm.Provider
	breaker     *Breaker
	maxAttempts int
	backoff     time.Duration
}

// NewProvider wraps inner.
func NewProvider(inner llm.Provider, cfg ProviderConfig) *Provider {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "llm"
	}
	return &Provider{
		inner:       inner,
		breaker:     NewBreaker(cfg.Breaker),
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
	}
}

// Complete forwards the request through the breaker, retrying failed
// attempts with doubling backoff. Context cancellation ends the retry
// loop immediately and is never retried.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	var resp *llm.Response
	err := p.breaker.Execute(func() error {
		var lastErr error
		delay := p.backoff
		for attempt := 0; attempt < p.maxAttempts; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
				delay *= 2
			}
			r, err := p.inner.Complete(ctx, req)
			if err == nil {
				resp = r
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			lastErr = err
		}
		return lastErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CountTokens delegates to the wrapped provider. Token counting is
// local arithmetic and needs neither retries nor the breaker.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return p.inner.CountTokens(messages)
}
