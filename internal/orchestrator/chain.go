package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyforge/internal/domain"
	"storyforge/internal/providers"
)

// TimeoutTable holds the per-attempt wall-clock budget for each provider
// class. The local CPU back-end gets the longest budget so a cold model
// load does not count as a failure.
type TimeoutTable struct {
	Cloud  time.Duration
	Vendor time.Duration
	Local  time.Duration
}

func (t TimeoutTable) For(kind providers.Kind) time.Duration {
	switch kind {
	case providers.KindLocal:
		return orDefault(t.Local, 2*time.Minute)
	case providers.KindVendor, providers.KindNativeMobile:
		return orDefault(t.Vendor, 30*time.Second)
	default:
		return orDefault(t.Cloud, 45*time.Second)
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

const backoffBase = 300 * time.Millisecond

// runTask executes one sub-task along the fallback chain: every candidate
// kind gets up to RetryAttempts attempts, each under its class timeout with
// exponential backoff in between. A timed-out attempt counts as a failure,
// not a crash; the underlying call is abandoned, not forcibly killed. When
// the chain is exhausted the error wraps domain.ErrProviderExhausted.
func (o *Orchestrator) runTask(ctx context.Context, policy providers.FallbackPolicy, task string, call func(context.Context, providers.Provider) error) error {
	var lastErr error
	failed := providers.KindNone

	for {
		kind, ok := o.selector.NextProvider(policy, failed)
		if !ok {
			if lastErr != nil {
				return fmt.Errorf("%s: %v: %w", task, lastErr, domain.ErrProviderExhausted)
			}
			return fmt.Errorf("%s: no viable provider: %w", task, domain.ErrProviderExhausted)
		}
		if failed != providers.KindNone {
			o.metrics.IncFallback(string(failed), string(kind))
			o.logger.Info().
				Str("task", task).
				Str("from", string(failed)).
				Str("to", string(kind)).
				Msg("orchestrator: falling back")
		}

		provider, err := o.pool.Get(kind)
		if err != nil {
			lastErr = err
			failed = kind
			continue
		}

		if err := o.attempt(ctx, kind, task, provider, call); err != nil {
			lastErr = err
			failed = kind
			continue
		}
		return nil
	}
}

// attempt runs the retry loop against a single provider kind.
func (o *Orchestrator) attempt(ctx context.Context, kind providers.Kind, task string, provider providers.Provider, call func(context.Context, providers.Provider) error) error {
	budget := o.cfg.Timeouts.For(kind)
	var lastErr error

	for attempt := 1; attempt <= o.cfg.RetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, budget)
		err := call(attemptCtx, provider)
		cancel()
		if err == nil {
			return nil
		}

		lastErr = err
		o.metrics.IncRetry(string(kind))
		event := o.logger.Warn().
			Str("task", task).
			Str("kind", string(kind)).
			Int("attempt", attempt)
		if errors.Is(err, context.DeadlineExceeded) {
			event.Dur("budget", budget).Msg("orchestrator: attempt timed out")
		} else {
			event.Err(err).Msg("orchestrator: attempt failed")
		}

		if attempt < o.cfg.RetryAttempts {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// sleepBackoff waits base*2^(attempt-1), giving up early when the parent
// context ends.
func sleepBackoff(ctx context.Context, attempt int) error {
	delay := backoffBase << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
