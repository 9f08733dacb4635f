// Package token issues and verifies the signed access and refresh tokens
// used by the tenantauth engine.
//
// Access and refresh tokens are both self-contained JWTs (HMAC-SHA256) but
// are signed with independent secrets, enforced at [NewManager] time, so
// knowledge of one secret never allows forging tokens of the other kind.
package token
