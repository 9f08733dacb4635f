package tenantauth

import (
	"context"
	"errors"
	"time"

	"github.com/crmforge/tenantauth/token"
)

// Logout revokes an access/refresh token pair. Each token is blacklisted
// for exactly its remaining lifetime; tokens that already expired need no
// entry and are skipped. Both tokens must belong to the same user and
// tenant.
//
// Logout is idempotent: revoking an already-revoked pair succeeds.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	var userID, tenantID string
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		access, err := e.parseForLogout(accessToken, token.KindAccess)
		if err != nil {
			return err
		}
		refresh, err := e.parseForLogout(refreshToken, token.KindRefresh)
		if err != nil {
			return err
		}

		switch {
		case access != nil && refresh != nil:
			if access.UserID != refresh.UserID || access.TenantID != refresh.TenantID {
				return ErrTokenMalformed
			}
		case access == nil && refresh == nil:
			// Both expired: nothing to revoke, logout trivially succeeds.
			return nil
		}

		now := timeNow()
		if err := e.revokeClaims(ctx, access, now); err != nil {
			return err
		}
		if err := e.revokeClaims(ctx, refresh, now); err != nil {
			return err
		}

		if access != nil {
			userID, tenantID = access.UserID, access.TenantID
		} else {
			userID, tenantID = refresh.UserID, refresh.TenantID
		}
		return nil
	})

	switch {
	case err == nil:
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, userID, tenantID, "", nil, nil)
	case errors.Is(err, ErrAuthUnavailable):
		e.metricInc(MetricInfraFailure)
		e.emitAudit(ctx, auditEventLogout, false, "", "", "", err, nil)
	default:
		e.emitAudit(ctx, auditEventLogout, false, "", "", "", err, nil)
	}

	return err
}

// parseForLogout returns the token's claims, or nil for a token whose only
// defect is being expired. Malformed tokens are rejected outright.
func (e *Engine) parseForLogout(tokenStr string, kind token.Kind) (*token.Claims, error) {
	claims, err := e.tokens.Verify(tokenStr, kind)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, nil
		}
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (e *Engine) revokeClaims(ctx context.Context, claims *token.Claims, now time.Time) error {
	if claims == nil {
		return nil
	}
	if err := e.revocations.Revoke(ctx, claims.Kind, claims.TokenID(), claims.RemainingTTL(now)); err != nil {
		return err
	}
	e.metricInc(MetricTokenRevoked)
	return nil
}

// ValidateAccess checks an access token end to end: signature, expiry, kind,
// and the revocation blacklist. This is the request hot path; it costs one
// parse plus one Redis existence check.
//
// Infrastructure failure fails closed: a token that cannot be checked
// against the blacklist is not accepted.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*ValidationResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := timeNow()
	result, err := e.validateAccess(ctx, accessToken)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))

	if err != nil {
		if errors.Is(err, ErrAuthUnavailable) {
			e.metricInc(MetricInfraFailure)
		}
		e.metricInc(MetricValidateFailure)
		return nil, err
	}

	e.metricInc(MetricValidateSuccess)
	return result, nil
}

func (e *Engine) validateAccess(ctx context.Context, accessToken string) (*ValidationResult, error) {
	claims, err := e.tokens.Verify(accessToken, token.KindAccess)
	if err != nil {
		return nil, mapTokenError(err)
	}

	var revoked bool
	err = e.guard.Do(ctx, func(ctx context.Context) error {
		var checkErr error
		revoked, checkErr = e.revocations.IsRevoked(ctx, claims.Kind, claims.TokenID())
		return checkErr
	})
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return &ValidationResult{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		TokenID:  claims.TokenID(),
	}, nil
}

// ValidateToken is the boolean form of [Engine.ValidateAccess]. Any failure,
// including backend unavailability, reports false.
func (e *Engine) ValidateToken(ctx context.Context, accessToken string) bool {
	_, err := e.ValidateAccess(ctx, accessToken)
	return err == nil
}
