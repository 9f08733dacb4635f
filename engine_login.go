package tenantauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/crmforge/tenantauth/internal/rate"
	"github.com/crmforge/tenantauth/token"
)

// Login authenticates a user by tenant, email, and password. On success it
// returns an access/refresh token pair. When the account has MFA enabled
// the credential check still runs, but instead of tokens the result carries
// MFARequired with a nil error; complete the login through [Engine.LoginWithMFA].
//
// Unknown email and wrong password both return [ErrInvalidCredentials].
// Backend outages return [ErrAuthUnavailable], never a credential error.
func (e *Engine) Login(ctx context.Context, tenantID, email, password string) (*LoginResult, error) {
	return e.login(ctx, tenantID, email, password, "", false)
}

// LoginWithMFA authenticates with credentials plus a TOTP code. Accounts
// without MFA enabled may pass an empty code.
func (e *Engine) LoginWithMFA(ctx context.Context, tenantID, email, password, code string) (*LoginResult, error) {
	return e.login(ctx, tenantID, email, password, code, true)
}

func (e *Engine) login(ctx context.Context, tenantID, email, pw, mfaCode string, mfaProvided bool) (*LoginResult, error) {
	if e == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}
	if tenantID == "" || email == "" || pw == "" {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	var result *LoginResult
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		var flowErr error
		result, flowErr = e.loginFlow(ctx, tenantID, email, pw, mfaCode, mfaProvided)
		return flowErr
	})

	e.recordLoginOutcome(ctx, tenantID, email, result, err)
	return result, err
}

// loginFlow is the ordered login state machine. The rate limiter is checked
// before any user lookup so a throttled principal learns nothing about
// account existence, and account status is checked only after the password
// verifies so status values do not leak to guessers.
func (e *Engine) loginFlow(ctx context.Context, tenantID, email, pw, mfaCode string, mfaProvided bool) (*LoginResult, error) {
	if err := e.rateLimiter.Check(ctx, tenantID, email); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return nil, ErrLoginRateLimited
		}
		return nil, err
	}

	user, err := e.userProvider.GetUserByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Unknown principals still consume an attempt, keeping the
			// limiter's behavior identical for existing and missing accounts.
			return nil, e.failAttempt(ctx, tenantID, email, "", ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%w: user lookup: %v", ErrAuthUnavailable, err)
	}
	if user.TenantID != tenantID {
		return nil, e.failAttempt(ctx, tenantID, email, "", ErrInvalidCredentials)
	}

	ok, err := e.passwordHash.Verify(pw, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("%w: password verify: %v", ErrAuthUnavailable, err)
	}
	if !ok {
		return nil, e.failAttempt(ctx, tenantID, email, user.ID, ErrInvalidCredentials)
	}

	if err := statusError(user.Status); err != nil {
		return nil, err
	}

	if user.MFAEnabled {
		if !mfaProvided || mfaCode == "" {
			return &LoginResult{
				UserID:      user.ID,
				TenantID:    user.TenantID,
				MFARequired: true,
			}, nil
		}
		if err := e.verifyMFACode(ctx, user, mfaCode); err != nil {
			if errors.Is(err, ErrMFAInvalid) {
				return nil, e.failAttempt(ctx, tenantID, email, user.ID, err)
			}
			return nil, err
		}
		e.metricInc(MetricMFASuccess)
		e.emitAudit(ctx, auditEventMFASuccess, true, user.ID, tenantID, "", nil, nil)
	}

	// Success path: clear throttling state before issuing tokens.
	if err := e.rateLimiter.Reset(ctx, tenantID, email); err != nil {
		return nil, err
	}
	_ = e.userProvider.ResetFailedLogins(ctx, tenantID, user.ID)

	e.maybeUpgradeHash(ctx, user, pw)

	pair, err := e.issuePair(user.ID, user.TenantID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UserID:       user.ID,
		TenantID:     user.TenantID,
	}, nil
}

// failAttempt charges one attempt against the limiter and the account's
// observational counter, then returns cause. A limiter crossing its budget
// on this attempt upgrades the error to rate-limited.
func (e *Engine) failAttempt(ctx context.Context, tenantID, email, userID string, cause error) error {
	if err := e.rateLimiter.Increment(ctx, tenantID, email); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return cause
		}
		return err
	}
	if userID != "" {
		_ = e.userProvider.RecordFailedLogin(ctx, tenantID, userID)
	}
	return cause
}

func (e *Engine) verifyMFACode(ctx context.Context, user *UserRecord, code string) error {
	if user.MFASecret == "" {
		return ErrMFANotEnabled
	}

	secret, err := e.tenantKeys.DecryptField(ctx, user.TenantID, user.MFASecret)
	if err != nil {
		return fmt.Errorf("%w: mfa secret: %v", ErrAuthUnavailable, err)
	}

	ok, err := e.totp.VerifyCode(secret, code, timeNow())
	if err != nil {
		return fmt.Errorf("%w: mfa verify: %v", ErrAuthUnavailable, err)
	}
	if !ok {
		return ErrMFAInvalid
	}

	return nil
}

// maybeUpgradeHash transparently re-hashes the password when the stored
// hash uses weaker parameters than currently configured. Best-effort: the
// login already succeeded.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user *UserRecord, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}

	needs, err := e.passwordHash.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	newHash, err := e.passwordHash.Hash(pw)
	if err != nil {
		return
	}
	_ = e.userProvider.UpdatePasswordHash(ctx, user.TenantID, user.ID, newHash)
}

func (e *Engine) issuePair(userID, tenantID string) (*TokenPair, error) {
	access, _, err := e.tokens.Issue(token.KindAccess, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue access token: %v", ErrAuthUnavailable, err)
	}
	refresh, _, err := e.tokens.Issue(token.KindRefresh, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue refresh token: %v", ErrAuthUnavailable, err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (e *Engine) recordLoginOutcome(ctx context.Context, tenantID, email string, result *LoginResult, err error) {
	switch {
	case err == nil && result != nil && result.MFARequired:
		e.metricInc(MetricMFARequired)
		e.emitAudit(ctx, auditEventMFARequired, true, result.UserID, tenantID, "", nil, nil)
	case err == nil && result != nil:
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, result.UserID, tenantID, "", nil, nil)
	case errors.Is(err, ErrLoginRateLimited):
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", tenantID, "", err, func() map[string]string {
			return map[string]string{"principal": email}
		})
	case errors.Is(err, ErrMFAInvalid):
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, "", tenantID, "", err, nil)
	case errors.Is(err, ErrAuthUnavailable):
		e.metricInc(MetricInfraFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", tenantID, "", err, nil)
	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", tenantID, "", err, nil)
	}
}

func statusError(status AccountStatus) error {
	switch status {
	case AccountActive:
		return nil
	case AccountPending:
		return ErrAccountPending
	case AccountSuspended:
		return ErrAccountSuspended
	case AccountInactive:
		return ErrAccountInactive
	case AccountLocked:
		return ErrAccountLocked
	default:
		return ErrAccountInactive
	}
}
