package tenantauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/crmforge/tenantauth/token"
)

// Refresh exchanges a valid refresh token for a brand-new access/refresh
// pair. Refresh tokens are single-use: the presented token is atomically
// revoked before the new pair is issued, so a replayed token fails with
// [ErrTokenRevoked] no matter how the concurrent attempts interleave, and
// at most one of them ever receives tokens.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrTokenMalformed
	}

	var (
		pair   *TokenPair
		claims *token.Claims
	)
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		var flowErr error
		pair, claims, flowErr = e.refreshFlow(ctx, refreshToken)
		return flowErr
	})

	e.recordRefreshOutcome(ctx, claims, err)
	return pair, err
}

func (e *Engine) refreshFlow(ctx context.Context, refreshToken string) (*TokenPair, *token.Claims, error) {
	claims, err := e.tokens.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		return nil, nil, mapTokenError(err)
	}

	user, err := e.userProvider.GetUserByID(ctx, claims.TenantID, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, claims, ErrInvalidCredentials
		}
		return nil, claims, fmt.Errorf("%w: user lookup: %v", ErrAuthUnavailable, err)
	}

	// A user moved between tenants invalidates every outstanding token
	// minted under the old tenant.
	if user.TenantID != claims.TenantID {
		return nil, claims, ErrTenantMismatch
	}

	if err := statusError(user.Status); err != nil {
		return nil, claims, err
	}

	// Claim the presented token before issuing anything. Losing the claim
	// means another request already rotated with this token; treat the
	// presentation as reuse.
	won, err := e.revocations.Claim(ctx, string(token.KindRefresh), claims.TokenID(), claims.RemainingTTL(timeNow()))
	if err != nil {
		return nil, claims, err
	}
	if !won {
		e.metricInc(MetricRefreshReuseDetected)
		return nil, claims, ErrTokenRevoked
	}

	pair, err := e.issuePair(user.ID, user.TenantID)
	if err != nil {
		return nil, claims, err
	}

	return pair, claims, nil
}

func (e *Engine) recordRefreshOutcome(ctx context.Context, claims *token.Claims, err error) {
	var userID, tenantID, tokenID string
	if claims != nil {
		userID, tenantID, tokenID = claims.UserID, claims.TenantID, claims.TokenID()
	}

	switch {
	case err == nil:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, userID, tenantID, tokenID, nil, nil)
	case errors.Is(err, ErrTokenRevoked):
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, userID, tenantID, tokenID, err, nil)
	case errors.Is(err, ErrAuthUnavailable):
		e.metricInc(MetricInfraFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, tenantID, tokenID, err, nil)
	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, tenantID, tokenID, err, nil)
	}
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case err != nil:
		return ErrTokenMalformed
	default:
		return nil
	}
}
