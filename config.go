package tenantauth

import (
	"bytes"
	"errors"
	"time"
)

// Config is the full engine configuration. Populate it before calling
// [Builder.Build]; it is treated as immutable afterwards.
type Config struct {
	Token       TokenConfig
	RateLimit   RateLimitConfig
	Password    PasswordConfig
	MFA         MFAConfig
	Keys        KeysConfig
	Infra       InfraConfig
	Maintenance MaintenanceConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls JWT issuance. AccessSecret and RefreshSecret sign
// their respective token kinds and must be distinct 32+ byte values.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig controls the per-tenant login throttle.
type RateLimitConfig struct {
	MaxLoginAttempts int
	Window           time.Duration
}

// PasswordConfig holds the Argon2id cost parameters plus the engine's
// password policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength      int
	UpgradeOnLogin bool
}

// MFAConfig controls TOTP verification.
type MFAConfig struct {
	Issuer string
	Digits int
	Period time.Duration
	// Skew is how many periods either side of now a code is accepted in.
	Skew int
}

// KeysConfig controls the per-tenant encryption key store.
type KeysConfig struct {
	// CacheTTL bounds staleness of the process-local key cache. Zero
	// disables caching.
	CacheTTL time.Duration
}

/*
====================================
INFRA CONFIG
====================================
*/

// InfraConfig controls how the engine treats its Redis and UserProvider
// dependencies when they degrade.
type InfraConfig struct {
	// OperationTimeout caps each engine operation's backend work.
	OperationTimeout time.Duration

	// Breaker settings feed the circuit breaker guarding backend calls.
	// Only infrastructure failures trip it; credential failures never do.
	BreakerEnabled      bool
	BreakerMaxFailures  uint32
	BreakerOpenDuration time.Duration
	BreakerInterval     time.Duration
}

// MaintenanceConfig controls the background blacklist sweeper.
type MaintenanceConfig struct {
	SweepEnabled  bool
	SweepInterval time.Duration
}

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and the validate-latency
// histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration [New] starts from. Token secrets
// are intentionally absent and must be supplied by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  5 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "tenantauth",
			Leeway:     30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxLoginAttempts: 5,
			Window:           15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      10,
			UpgradeOnLogin: true,
		},
		MFA: MFAConfig{
			Issuer: "tenantauth",
			Digits: 6,
			Period: 30 * time.Second,
			Skew:   1,
		},
		Keys: KeysConfig{
			CacheTTL: time.Minute,
		},
		Infra: InfraConfig{
			OperationTimeout:    5 * time.Second,
			BreakerEnabled:      true,
			BreakerMaxFailures:  5,
			BreakerOpenDuration: 30 * time.Second,
			BreakerInterval:     time.Minute,
		},
		Maintenance: MaintenanceConfig{
			SweepEnabled:  false,
			SweepInterval: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate checks the configuration for internal consistency. Called by
// [Builder.Build]; exposed for callers who assemble Config by hand.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must be >= AccessTTL")
	}
	if len(c.Token.AccessSecret) < 32 {
		return errors.New("Token AccessSecret must be >= 32 bytes")
	}
	if len(c.Token.RefreshSecret) < 32 {
		return errors.New("Token RefreshSecret must be >= 32 bytes")
	}
	if bytes.Equal(c.Token.AccessSecret, c.Token.RefreshSecret) {
		return errors.New("Token AccessSecret and RefreshSecret must differ")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Rate limiting
	if c.RateLimit.MaxLoginAttempts < 1 {
		return errors.New("RateLimit MaxLoginAttempts must be >= 1")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// MFA
	if c.MFA.Digits != 6 && c.MFA.Digits != 8 {
		return errors.New("MFA Digits must be 6 or 8")
	}
	if c.MFA.Period < 15*time.Second || c.MFA.Period > 2*time.Minute {
		return errors.New("MFA Period must be between 15s and 2m")
	}
	if c.MFA.Skew < 0 || c.MFA.Skew > 2 {
		return errors.New("MFA Skew must be between 0 and 2")
	}

	// Keys
	if c.Keys.CacheTTL < 0 {
		return errors.New("Keys CacheTTL must be >= 0")
	}

	// Infra
	if c.Infra.OperationTimeout <= 0 {
		return errors.New("Infra OperationTimeout must be > 0")
	}
	if c.Infra.BreakerEnabled {
		if c.Infra.BreakerMaxFailures < 1 {
			return errors.New("Infra BreakerMaxFailures must be >= 1")
		}
		if c.Infra.BreakerOpenDuration <= 0 {
			return errors.New("Infra BreakerOpenDuration must be > 0")
		}
	}

	// Maintenance
	if c.Maintenance.SweepEnabled && c.Maintenance.SweepInterval <= 0 {
		return errors.New("Maintenance SweepInterval must be > 0 when sweeping is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
