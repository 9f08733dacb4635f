package tenantauth

import "context"

// AccountStatus represents the lifecycle state of a user account. Only
// active accounts may authenticate.
type AccountStatus uint8

const (
	AccountActive AccountStatus = iota
	AccountPending
	AccountSuspended
	AccountInactive
	AccountLocked
)

// String returns the lowercase name of the status, used in audit events.
func (s AccountStatus) String() string {
	switch s {
	case AccountActive:
		return "active"
	case AccountPending:
		return "pending"
	case AccountSuspended:
		return "suspended"
	case AccountInactive:
		return "inactive"
	case AccountLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// UserRecord is the account record returned by [UserProvider]. MFASecret
// holds the keystore envelope of the TOTP secret, never the plaintext.
type UserRecord struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash string
	Status       AccountStatus
	MFAEnabled   bool
	MFASecret    string
	FailedLogins int
}

// UserProvider is the interface callers implement to connect the engine to
// their user database. Lookups are always tenant-scoped: a user id or email
// from one tenant must never resolve a record from another.
//
// Implementations return [ErrUserNotFound] when no record matches; the
// engine maps it to an enumeration-safe failure before it reaches clients.
// Any other error is treated as an infrastructure failure.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, tenantID, email string) (*UserRecord, error)
	GetUserByID(ctx context.Context, tenantID, userID string) (*UserRecord, error)
	UpdatePasswordHash(ctx context.Context, tenantID, userID, newHash string) error

	// StoreMFASecret persists the encrypted TOTP secret envelope; enabling
	// happens separately via SetMFAEnabled once the user proves possession.
	StoreMFASecret(ctx context.Context, tenantID, userID, envelope string) error
	SetMFAEnabled(ctx context.Context, tenantID, userID string, enabled bool) error

	// RecordFailedLogin and ResetFailedLogins maintain an observational
	// failure counter on the account. The Redis rate limiter is the
	// authoritative throttle; the engine calls these best-effort and does
	// not fail the login path when they error.
	RecordFailedLogin(ctx context.Context, tenantID, userID string) error
	ResetFailedLogins(ctx context.Context, tenantID, userID string) error
}

// TokenPair is an access/refresh token pair issued together.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by [Engine.Login] and [Engine.LoginWithMFA].
// When MFARequired is set the credential check passed but no tokens were
// issued; the caller should collect a one-time code and retry through
// LoginWithMFA.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	TenantID     string
	MFARequired  bool
}

// MFAProvision holds the plaintext TOTP secret and otpauth:// URI returned
// by [Engine.ProvisionMFA]. The secret exists only in this value; what the
// engine persists is the tenant-key-encrypted envelope.
type MFAProvision struct {
	SecretBase32 string
	URI          string
}

// ValidationResult carries the claims of a successfully validated access
// token.
type ValidationResult struct {
	UserID   string
	TenantID string
	TokenID  string
}
