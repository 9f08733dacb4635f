package tenantauth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	// The two cases are deliberately indistinguishable to prevent account
	// enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned when the tenant+principal pair has
	// exceeded its login attempt budget for the current window.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrUserNotFound is returned by UserProvider implementations when no
	// record matches. The engine never surfaces it from Login.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountPending is returned for accounts awaiting activation.
	ErrAccountPending = errors.New("account pending activation")
	// ErrAccountSuspended is returned for administratively suspended accounts.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrAccountInactive is returned for deactivated accounts.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountLocked is returned for administratively locked accounts.
	ErrAccountLocked = errors.New("account locked")

	// ErrTokenExpired is returned when a presented token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when a token cannot be parsed or its
	// signature does not verify against the kind-specific secret.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenRevoked is returned when the token id is present in the
	// revocation registry, including the loser of a refresh rotation race.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTenantMismatch is returned when a refresh token's tenant claim no
	// longer matches the user's current tenant.
	ErrTenantMismatch = errors.New("token tenant mismatch")

	// ErrMFARequired signals that the account has MFA enabled and no code was
	// supplied. Callers should prompt for a code, not treat this as failure.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFAInvalid is returned when the supplied one-time code does not
	// verify within the configured skew window.
	ErrMFAInvalid = errors.New("invalid mfa code")
	// ErrMFANotEnabled is returned for MFA operations on accounts without a
	// provisioned secret.
	ErrMFANotEnabled = errors.New("mfa not enabled")
	// ErrMFAAlreadyEnabled is returned when provisioning MFA for an account
	// that already has it active.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")

	// ErrPasswordPolicy is returned when a new password violates the
	// configured policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when a password change supplies the
	// current password as the new one.
	ErrPasswordReuse = errors.New("new password must be different from current password")

	// ErrAuthUnavailable is the infrastructure error category: store
	// timeouts, Redis outages, and an open circuit breaker all surface as
	// this, distinct from every credential-shaped failure.
	ErrAuthUnavailable = errors.New("authentication backend unavailable")
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build completed.
	ErrEngineNotReady = errors.New("engine not initialized")
)
