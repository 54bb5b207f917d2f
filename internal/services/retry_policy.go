package services

import (
	"context"
	"time"

	"codebot/internal/config"
	"codebot/internal/observability"
	contextutils "codebot/internal/utils"
)

// ModelSelector holds the ordered model fallback chain for the active
// provider. The chain is fixed at construction and read-only afterwards.
type ModelSelector struct {
	chain []string
}

// NewModelSelector builds the fallback chain from the active provider's
// configured models, primary first
func NewModelSelector(cfg *config.Config) (result0 *ModelSelector, err error) {
	chain := cfg.ModelChain()
	if len(chain) == 0 {
		return nil, contextutils.WrapError(contextutils.ErrAIConfigInvalid, "active provider has no models configured")
	}
	return &ModelSelector{chain: chain}, nil
}

// Chain returns a copy of the ordered model identifiers
func (s *ModelSelector) Chain() []string {
	chain := make([]string, len(s.chain))
	copy(chain, s.chain)
	return chain
}

// Primary returns the first model in the chain
func (s *ModelSelector) Primary() string {
	return s.chain[0]
}

// RetryPolicy wraps AI capability calls with bounded retries. Only rate
// limiting is retried; attempt n backs off n times the base delay. Any other
// failure moves on immediately.
type RetryPolicy struct {
	maxAttempts int
	backoffBase time.Duration
	logger      *observability.Logger
}

// NewRetryPolicy creates a retry policy from configuration
func NewRetryPolicy(cfg *config.Config, logger *observability.Logger) *RetryPolicy {
	maxAttempts := cfg.AI.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = config.MaxRetryAttempts
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		backoffBase: config.RetryBackoffBase,
		logger:      logger,
	}
}

// Execute invokes call for each model in the selector's chain until one
// succeeds. Rate limited calls are retried in place with backoff; provider
// unavailability advances to the next model; every other failure propagates
// immediately. Exhausting the whole chain yields a terminal unavailable
// error. Attempts for a single request are strictly sequential.
func (p *RetryPolicy) Execute(ctx context.Context, selector *ModelSelector, call func(ctx context.Context, model string) (string, error)) (result0 string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "retry_policy")
	defer observability.FinishSpan(span, &err)

	for _, model := range selector.Chain() {
		var lastErr error
		for attempt := 1; attempt <= p.maxAttempts; attempt++ {
			span.SetAttributes(observability.AttributeModel(model), observability.AttributeAttempt(attempt))

			result, callErr := call(ctx, model)
			if callErr == nil {
				return result, nil
			}
			lastErr = callErr

			if !contextutils.IsRetryable(callErr) {
				break
			}
			if attempt == p.maxAttempts {
				break
			}

			p.logger.Warn(ctx, "AI call rate limited, backing off", map[string]interface{}{
				"model":   model,
				"attempt": attempt,
			})
			if waitErr := p.wait(ctx, attempt); waitErr != nil {
				return "", waitErr
			}
		}

		switch contextutils.GetErrorCode(lastErr) {
		case contextutils.ErrorCodeAIRateLimited, contextutils.ErrorCodeAIUnavailable:
			// Try the next model in the chain
		default:
			return "", lastErr
		}
	}

	return "", contextutils.WrapError(contextutils.ErrAIUnavailable, "all models exhausted after retries")
}

// wait sleeps for attempt times the base delay, honoring caller cancellation
func (p *RetryPolicy) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * p.backoffBase)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return contextutils.WrapError(contextutils.ErrAIUnavailable, "request cancelled during retry backoff")
	case <-timer.C:
		return nil
	}
}
