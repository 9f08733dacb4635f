package tenantauth

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/crmforge/tenantauth/internal/rate"
	"github.com/crmforge/tenantauth/keystore"
	"github.com/crmforge/tenantauth/revocation"
)

// infraGuard wraps backend work in a per-operation timeout and a shared
// circuit breaker. Only infrastructure failures feed the breaker: business
// outcomes (bad password, revoked token, rate limit) pass through without
// counting against it, so an attacker hammering wrong passwords can never
// open the circuit.
type infraGuard struct {
	cfg     InfraConfig
	breaker *gobreaker.CircuitBreaker
}

func newInfraGuard(cfg InfraConfig) *infraGuard {
	g := &infraGuard{cfg: cfg}

	if cfg.BreakerEnabled {
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "tenantauth-backend",
			Interval: cfg.BreakerInterval,
			Timeout:  cfg.BreakerOpenDuration,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
			},
		})
	}

	return g
}

// Do runs fn with the operation timeout applied. Infrastructure errors are
// recorded by the breaker and mapped to [ErrAuthUnavailable]; every other
// error returns to the caller untouched. An open circuit short-circuits fn
// entirely.
func (g *infraGuard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, g.cfg.OperationTimeout)
	defer cancel()

	if g.breaker == nil {
		err := fn(opCtx)
		if isInfraError(err) {
			return errors.Join(ErrAuthUnavailable, err)
		}
		return err
	}

	var bizErr error
	_, err := g.breaker.Execute(func() (interface{}, error) {
		err := fn(opCtx)
		if err == nil {
			return nil, nil
		}
		if isInfraError(err) {
			return nil, err
		}
		// Stash business errors so the breaker counts this call as a
		// success.
		bizErr = err
		return nil, nil
	})

	if err != nil {
		return errors.Join(ErrAuthUnavailable, err)
	}

	return bizErr
}

// isInfraError classifies failures that indicate the backend itself is
// unhealthy, as opposed to a legitimate negative answer from it.
func isInfraError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, rate.ErrRedisUnavailable) ||
		errors.Is(err, revocation.ErrRedisUnavailable) ||
		errors.Is(err, keystore.ErrRedisUnavailable) ||
		errors.Is(err, ErrAuthUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// timeNow is stubbed in tests that exercise expiry-sensitive paths.
var timeNow = time.Now
