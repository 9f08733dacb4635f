// Package internaldefs holds the shared metric name table used by the
// exporter packages. It is not part of the public API surface.
package internaldefs

import (
	tenantauth "github.com/crmforge/tenantauth"
)

// CounterDef maps an engine counter to an exported metric name.
type CounterDef struct {
	ID   tenantauth.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to an exported metric name.
type HistogramDef struct {
	ID   tenantauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: tenantauth.MetricLoginSuccess, Name: "tenantauth_login_success_total", Help: "Successful login attempts."},
	{ID: tenantauth.MetricLoginFailure, Name: "tenantauth_login_failure_total", Help: "Failed login attempts."},
	{ID: tenantauth.MetricLoginRateLimited, Name: "tenantauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: tenantauth.MetricMFARequired, Name: "tenantauth_mfa_required_total", Help: "Login flows requiring an MFA code."},
	{ID: tenantauth.MetricMFASuccess, Name: "tenantauth_mfa_success_total", Help: "Successful MFA verifications."},
	{ID: tenantauth.MetricMFAFailure, Name: "tenantauth_mfa_failure_total", Help: "Failed MFA verifications."},
	{ID: tenantauth.MetricRefreshSuccess, Name: "tenantauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: tenantauth.MetricRefreshFailure, Name: "tenantauth_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: tenantauth.MetricRefreshReuseDetected, Name: "tenantauth_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: tenantauth.MetricLogout, Name: "tenantauth_logout_total", Help: "Logout operations."},
	{ID: tenantauth.MetricTokenRevoked, Name: "tenantauth_token_revoked_total", Help: "Tokens written to the revocation blacklist."},
	{ID: tenantauth.MetricValidateSuccess, Name: "tenantauth_validate_success_total", Help: "Access tokens validated successfully."},
	{ID: tenantauth.MetricValidateFailure, Name: "tenantauth_validate_failure_total", Help: "Access token validations that failed."},
	{ID: tenantauth.MetricPasswordChangeSuccess, Name: "tenantauth_password_change_success_total", Help: "Successful password changes."},
	{ID: tenantauth.MetricPasswordChangeFailure, Name: "tenantauth_password_change_failure_total", Help: "Failed password change attempts."},
	{ID: tenantauth.MetricKeyRotation, Name: "tenantauth_key_rotation_total", Help: "Tenant key rotations."},
	{ID: tenantauth.MetricInfraFailure, Name: "tenantauth_infra_failure_total", Help: "Operations failed by backend unavailability."},
}

var HistogramDefs = []HistogramDef{
	{ID: tenantauth.MetricValidateLatency, Name: "tenantauth_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBoundSuffix holds the metric-name-safe encodings of the bucket
// upper bounds, last entry being +Inf.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative counts, the
// form histogram backends expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
