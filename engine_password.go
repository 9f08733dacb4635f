package tenantauth

import (
	"context"
	"errors"
	"fmt"
)

// ChangePassword replaces the user's password after verifying the current
// one. The new password must satisfy the configured minimum length and must
// differ from the current password.
//
// Outstanding tokens are not revoked here; clients that want a global
// sign-out after a password change call [Engine.Logout] per session.
func (e *Engine) ChangePassword(ctx context.Context, tenantID, userID, currentPassword, newPassword string) error {
	if e == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}

	err := e.guard.Do(ctx, func(ctx context.Context) error {
		if len(newPassword) < e.config.Password.MinLength {
			return ErrPasswordPolicy
		}
		if newPassword == currentPassword {
			return ErrPasswordReuse
		}

		user, err := e.lookupUser(ctx, tenantID, userID)
		if err != nil {
			return err
		}
		if err := statusError(user.Status); err != nil {
			return err
		}

		ok, err := e.passwordHash.Verify(currentPassword, user.PasswordHash)
		if err != nil {
			return fmt.Errorf("%w: password verify: %v", ErrAuthUnavailable, err)
		}
		if !ok {
			return ErrInvalidCredentials
		}

		newHash, err := e.passwordHash.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("%w: password hash: %v", ErrAuthUnavailable, err)
		}

		if err := e.userProvider.UpdatePasswordHash(ctx, tenantID, userID, newHash); err != nil {
			return fmt.Errorf("%w: update password: %v", ErrAuthUnavailable, err)
		}

		// A successful change clears any accumulated login throttling for
		// the account's email.
		if user.Email != "" {
			_ = e.rateLimiter.Reset(ctx, tenantID, user.Email)
			_ = e.userProvider.ResetFailedLogins(ctx, tenantID, userID)
		}
		return nil
	})

	if err == nil {
		e.metricInc(MetricPasswordChangeSuccess)
		e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, tenantID, "", nil, nil)
	} else {
		if errors.Is(err, ErrAuthUnavailable) {
			e.metricInc(MetricInfraFailure)
		}
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, tenantID, "", err, nil)
	}

	return err
}
