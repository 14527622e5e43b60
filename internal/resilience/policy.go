package resilience

import "context"

// Policy combines retries with a breaker. A nil Breaker disables it.
type Policy struct {
	Retry   RetryConfig
	Breaker *Breaker
}

// Call runs fn under p. Each attempt passes through the breaker, so an open
// circuit ends the retries with ErrOpen.
func Call[T any](ctx context.Context, p Policy, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := p.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = RetryLogger(operation)
	}
	return DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		if p.Breaker == nil {
			return fn(ctx)
		}
		return Execute(ctx, p.Breaker, fn)
	})
}
