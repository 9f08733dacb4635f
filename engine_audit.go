package tenantauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventMFARequired           = "mfa_required"
	auditEventMFASuccess            = "mfa_success"
	auditEventMFAFailure            = "mfa_failure"
	auditEventMFAProvisioned        = "mfa_provisioned"
	auditEventMFAEnabled            = "mfa_enabled"
	auditEventMFADisabled           = "mfa_disabled"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventRefreshReuseDetected  = "refresh_reuse_detected"
	auditEventLogout                = "logout"
	auditEventTokenRevoked          = "token_revoked"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventKeyRotation           = "tenant_key_rotation"
	auditEventSweepCompleted        = "blacklist_sweep_completed"
)

type auditErrorCode string

const (
	auditErrInvalidCredentials auditErrorCode = "invalid_credentials"
	auditErrRateLimited        auditErrorCode = "rate_limited"
	auditErrAccountStatus      auditErrorCode = "account_status"
	auditErrTokenExpired       auditErrorCode = "token_expired"
	auditErrTokenInvalid       auditErrorCode = "invalid_token"
	auditErrTokenRevoked       auditErrorCode = "token_revoked"
	auditErrTenantMismatch     auditErrorCode = "tenant_mismatch"
	auditErrMFARequired        auditErrorCode = "mfa_required"
	auditErrMFAInvalid         auditErrorCode = "mfa_invalid"
	auditErrPasswordPolicy     auditErrorCode = "password_policy"
	auditErrPasswordReuse      auditErrorCode = "password_reuse"
	auditErrUnavailable        auditErrorCode = "backend_unavailable"
	auditErrInternal           auditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tenantID string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TenantID:  tenantID,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := classifyAuditError(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func classifyAuditError(err error) auditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrAccountPending),
		errors.Is(err, ErrAccountSuspended),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrAccountLocked):
		return auditErrAccountStatus
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrTokenMalformed):
		return auditErrTokenInvalid
	case errors.Is(err, ErrTenantMismatch):
		return auditErrTenantMismatch
	case errors.Is(err, ErrMFARequired):
		return auditErrMFARequired
	case errors.Is(err, ErrMFAInvalid),
		errors.Is(err, ErrMFANotEnabled),
		errors.Is(err, ErrMFAAlreadyEnabled):
		return auditErrMFAInvalid
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrAuthUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
