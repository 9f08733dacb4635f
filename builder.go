package tenantauth

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/crmforge/tenantauth/internal/rate"
	"github.com/crmforge/tenantauth/keystore"
	"github.com/crmforge/tenantauth/password"
	"github.com/crmforge/tenantauth/revocation"
	"github.com/crmforge/tenantauth/token"
)

// Builder assembles an [Engine]. A Builder is single-use: Build returns an
// error on the second call.
type Builder struct {
	config       Config
	redis        redis.UniversalClient
	userProvider UserProvider
	auditSink    AuditSink

	built bool
}

// New returns a [Builder] seeded with defaults. Callers must still supply
// token secrets, a Redis client, and a [UserProvider].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithTokenSecrets sets the signing secrets for the two token kinds.
func (b *Builder) WithTokenSecrets(accessSecret, refreshSecret []byte) *Builder {
	b.config.Token.AccessSecret = accessSecret
	b.config.Token.RefreshSecret = refreshSecret
	return b
}

// WithRedis sets the Redis client backing revocation, rate limiting, and
// tenant keys.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the caller's user database adapter.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the destination for audit events. Implies nothing
// about Audit.Enabled; set that in the config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the sub-systems, and returns a
// ready [Engine].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		tokens:       tokens,
		revocations:  revocation.New(b.redis),
		rateLimiter:  rate.New(b.redis, rate.Config{MaxAttempts: cfg.RateLimit.MaxLoginAttempts, Window: cfg.RateLimit.Window}),
		tenantKeys:   keystore.New(b.redis, keystore.Config{CacheTTL: cfg.Keys.CacheTTL}),
		passwordHash: hasher,
		totp:         newTOTPManager(cfg.MFA),
		guard:        newInfraGuard(cfg.Infra),
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		userProvider: b.userProvider,
	}

	if cfg.Maintenance.SweepEnabled {
		engine.sweeper = newSweeper(engine.revocations, cfg.Maintenance.SweepInterval, func(swept int, err error) {
			engine.emitAudit(context.Background(), auditEventSweepCompleted, err == nil, "", "", "", err, func() map[string]string {
				return map[string]string{"swept": strconv.Itoa(swept)}
			})
		})
	}

	b.built = true

	return engine, nil
}
