package tenantauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/crmforge/tenantauth/password"
)

const testPassword = "correct-horse-battery"

type mockUserProvider struct {
	mu    sync.Mutex
	users map[string]UserRecord // tenant + "/" + email
	byID  map[string]string     // tenant + "/" + id -> email key

	lookupErr error

	getByEmailCalls     int
	getByIDCalls        int
	updatePasswordCalls int
	recordFailedCalls   int
	resetFailedCalls    int
	storeMFACalls       int
	setMFAEnabledCalls  int
}

func newMockProvider() *mockUserProvider {
	return &mockUserProvider{
		users: make(map[string]UserRecord),
		byID:  make(map[string]string),
	}
}

func (m *mockUserProvider) putUser(u UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := u.TenantID + "/" + u.Email
	m.users[key] = u
	m.byID[u.TenantID+"/"+u.ID] = key
}

func (m *mockUserProvider) user(tenantID, userID string) (UserRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.byID[tenantID+"/"+userID]
	if !ok {
		return UserRecord{}, false
	}
	u, ok := m.users[key]
	return u, ok
}

func (m *mockUserProvider) GetUserByEmail(_ context.Context, tenantID, email string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByEmailCalls++

	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	u, ok := m.users[tenantID+"/"+email]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := u
	return &copied, nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, tenantID, userID string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIDCalls++

	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	key, ok := m.byID[tenantID+"/"+userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := m.users[key]
	copied := u
	return &copied, nil
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, tenantID, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePasswordCalls++
	return m.mutate(tenantID, userID, func(u *UserRecord) { u.PasswordHash = newHash })
}

func (m *mockUserProvider) StoreMFASecret(_ context.Context, tenantID, userID, envelope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeMFACalls++
	return m.mutate(tenantID, userID, func(u *UserRecord) { u.MFASecret = envelope })
}

func (m *mockUserProvider) SetMFAEnabled(_ context.Context, tenantID, userID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setMFAEnabledCalls++
	return m.mutate(tenantID, userID, func(u *UserRecord) { u.MFAEnabled = enabled })
}

func (m *mockUserProvider) RecordFailedLogin(_ context.Context, tenantID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordFailedCalls++
	return m.mutate(tenantID, userID, func(u *UserRecord) { u.FailedLogins++ })
}

func (m *mockUserProvider) ResetFailedLogins(_ context.Context, tenantID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetFailedCalls++
	return m.mutate(tenantID, userID, func(u *UserRecord) { u.FailedLogins = 0 })
}

// mutate requires m.mu held.
func (m *mockUserProvider) mutate(tenantID, userID string, fn func(*UserRecord)) error {
	key, ok := m.byID[tenantID+"/"+userID]
	if !ok {
		return ErrUserNotFound
	}
	u := m.users[key]
	fn(&u)
	m.users[key] = u
	return nil
}

func testEngineConfig() Config {
	cfg := defaultConfig()
	cfg.Token.AccessSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("fedcba9876543210fedcba9876543210")
	cfg.Token.Leeway = 0
	// Cheap Argon2 parameters keep the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.RateLimit.MaxLoginAttempts = 3
	cfg.RateLimit.Window = time.Minute
	cfg.Metrics.Enabled = true
	return cfg
}

type testHarness struct {
	engine   *Engine
	provider *mockUserProvider
	redis    *miniredis.Miniredis
	hasher   *password.Hasher
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	provider := newMockProvider()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	return &testHarness{engine: engine, provider: provider, redis: mr, hasher: hasher}
}

// seedUser stores an active account with the standard test password.
func (h *testHarness) seedUser(t *testing.T, tenantID, userID, email string) {
	t.Helper()

	hash, err := h.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("seed hash: %v", err)
	}
	h.provider.putUser(UserRecord{
		ID:           userID,
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: hash,
		Status:       AccountActive,
	})
}

func (h *testHarness) mustLogin(t *testing.T, tenantID, email string) *LoginResult {
	t.Helper()

	result, err := h.engine.Login(context.Background(), tenantID, email, testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.MFARequired {
		t.Fatal("unexpected MFA challenge")
	}
	return result
}

func TestBuilderValidation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	if _, err := New().WithRedis(rdb).Build(); err == nil {
		t.Fatal("Build without user provider succeeded")
	}
	if _, err := New().WithUserProvider(newMockProvider()).Build(); err == nil {
		t.Fatal("Build without redis succeeded")
	}

	cfg := testEngineConfig()
	cfg.Token.RefreshSecret = cfg.Token.AccessSecret
	_, err := New().WithConfig(cfg).WithRedis(rdb).WithUserProvider(newMockProvider()).Build()
	if err == nil {
		t.Fatal("Build with identical token secrets succeeded")
	}

	b := New().WithConfig(testEngineConfig()).WithRedis(rdb).WithUserProvider(newMockProvider())
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("second Build on same builder succeeded")
	}
}

func TestConfigValidate(t *testing.T) {
	mutations := []func(*Config){
		func(c *Config) { c.Token.AccessTTL = 0 },
		func(c *Config) { c.Token.RefreshTTL = time.Second },
		func(c *Config) { c.RateLimit.MaxLoginAttempts = 0 },
		func(c *Config) { c.RateLimit.Window = 0 },
		func(c *Config) { c.Password.MinLength = 4 },
		func(c *Config) { c.MFA.Digits = 7 },
		func(c *Config) { c.Infra.OperationTimeout = 0 },
	}

	for i, mutate := range mutations {
		cfg := testEngineConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("mutation %d: invalid config accepted", i)
		}
	}

	cfg := testEngineConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestEngineNilSafety(t *testing.T) {
	var e *Engine

	if _, err := e.Login(context.Background(), "t", "e", "p"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("nil engine Login: %v", err)
	}
	if _, err := e.Refresh(context.Background(), "tok"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("nil engine Refresh: %v", err)
	}
	if err := e.Logout(context.Background(), "a", "r"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("nil engine Logout: %v", err)
	}
	e.Close()
}
