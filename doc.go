// Package tenantauth provides a tenant-isolated authentication engine with
// signed JWT access/refresh token pairs, Redis-backed token revocation,
// per-tenant login rate limiting, and per-tenant field-level encryption for
// MFA secrets.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tenantauth is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (LoginResult, TokenPair, AuditEvent, MetricsSnapshot).
// Token signing lives in the token sub-package, tenant key management in
// keystore, blacklist bookkeeping in revocation, and login throttling under
// internal/rate.
//
// # What this package must NOT do
//
//   - Expose Redis clients or raw key material in its public API.
//   - Persist user records itself; credential storage is always the caller's
//     [UserProvider].
//   - Report infrastructure failures as credential failures: a Redis outage
//     surfaces as [ErrAuthUnavailable], never as [ErrInvalidCredentials].
//
// # Performance contract
//
// ValidateToken is the hot path. It performs one token parse plus at most one
// Redis existence check. Login, Refresh, and Logout are allowed a handful of
// Redis round-trips each.
package tenantauth
