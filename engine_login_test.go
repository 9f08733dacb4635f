package tenantauth

import (
	"context"
	"errors"
	"testing"

	"github.com/crmforge/tenantauth/password"
)

func TestLoginSuccess(t *testing.T) {
	h := newTestEngine(t, nil)
	h.seedUser(t, "tenant-a", "user-1", "alice@example.com")

	result := h.mustLogin(t, "tenant-a", "alice@example.com")

	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("missing tokens on successful login")
	}
	if result.UserID != "user-1" || result.TenantID != "tenant-a" {
		t.Fatalf("result identity = %s/%s", result.UserID, result.TenantID)
	}
	if !h.engine.ValidateToken(context.Background(), result.AccessToken) {
		t.Fatal("freshly issued access token does not validate")
	}
	if h.engine.metrics.Value(MetricLoginSuccess) != 1 {
		t.Fatal("login success not counted")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := newTestEngine(t, nil)
	h.seedUser(t, "tenant-a", "user-1", "alice@example.com")

	_, err := h.engine.Login(context.Background(), "tenant-a", "alice@example.com", "wrong-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}

	// The account's observational counter was charged.
	u, _ := h.provider.user("tenant-a", "user-1")
	if u.FailedLogins != 1 {
		t.Fatalf("FailedLogins = %d, want 1", u.FailedLogins)
	}
}

func TestLoginUnknownUserIndistinguishable(t *testing.T) {
	h := newTestEngine(t, nil)
	h.seedUser(t, "tenant-a", "user-1", "alice@example.com")

	_, wrongPw := h.engine.Login(context.Background(), "tenant-a", "alice@example.com", "wrong-password")
	_, unknown := h.engine.Login(context.Background(), "tenant-a", "nobody@example.com", "wrong-password")

	if !errors.Is(wrongPw, ErrInvalidCredentials) || !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("errors differ: %v vs %v", wrongPw, unknown)
	}
	if wrongPw.Error() != unknown.Error() {
		t.Fatalf("error text leaks account existence: %q vs %q", wrongPw, unknown)
	}
}

func TestLoginTenantScoping(t *testing.T) {
	h := newTestEngine(t, nil)
	h.seedUser(t, "tenant-a", "user-1", "alice@example.com")

	// Correct credentials under the wrong tenant never authenticate.
	_, err := h.engine.Login(context.Background(), "tenant-b", "alice@example.com", testPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginRateLimiting(t *testing.T) {
	h := newTestEngine(t, nil)
	h.seedUser(t, "tenant-a", "user-1", "alice@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.engine.Login(ctx, "tenant-a", "alice@example.com", "wrong-password"); err == nil {
			t.Fatalf("attempt %d succeeded", i)
		}
	}

	// Budget exhausted: even the correct password is rejected with the
	// rate-limit error, before any credential work happens.
	lookupsBefore := h.provider.getByEmailCalls
	_, err := h.engine.Login(ctx, "tenant-a", "alice@example.com", testPassword)
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("want ErrLoginRateLimited, got %v", err)
	}
	if h.provider.getByEmailCalls != lookupsBefore {
		t.Fatal("rate-limited login still hit the user provider")
	}
	if h.engine.metrics.Value(MetricLoginRateLimited) == 0 {
		t.Fatal("rate-limited login not counted")
	}
}

func TestLoginRateLimitIsPerTenant(t *testing.T) {
	h := newTestEngine(t, nil)
	h.seedUser(t, "tenant-a", "user-1", "alice@example.com")
	h.seedUser(t, "tenant-b", "user-2", "alice@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = h.engine.Login(ctx, "tenant-a", "alice@example.com", "wrong-password")
	}

	// Same principal under tenant-b has an untouched budget.
	if _, err := h.engine.Login(ctx, "tenant-b", "alice@example.com", testPassword); err != nil {
		t.Fatalf("tenant-b login throttled by tenant-a: %v", err)
	}
}

func TestLoginSuccessResetsRateWindow(t *testing.T) {
	h := newTestEngine(t, nil)
	h.seedUser(t, "tenant-a", "user-1", "alice@example.com")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = h.engine.Login(ctx, "tenant-a", "alice@example.com", "wrong-password")
	}
	h.mustLogin(t, "tenant-a", "alice@example.com")

	// The observational counter was reset too.
	u, _ := h.provider.user("tenant-a", "user-1")
	if u.FailedLogins != 0 {
		t.Fatalf("FailedLogins after success = %d, want 0", u.FailedLogins)
	}

	// Full budget available again.
	for i := 0; i < 2; i++ {
		_, _ = h.engine.Login(ctx, "tenant-a", "alice@example.com", "wrong-password")
	}
	if _, err := h.engine.Login(ctx, "tenant-a", "alice@example.com", testPassword); err != nil {
		t.Fatalf("budget not reset by earlier success: %v", err)
	}
}

func TestLoginAccountStatusGates(t *testing.T) {
	cases := []struct {
		status AccountStatus
		want   error
	}{
		{AccountPending, ErrAccountPending},
		{AccountSuspended, ErrAccountSuspended},
		{AccountInactive, ErrAccountInactive},
		{AccountLocked, ErrAccountLocked},
	}

	for _, tc := range cases {
		t.Run(tc.status.String(), func(t *testing.T) {
			h := newTestEngine(t, nil)
			hash, err := h.hasher.Hash(testPassword)
			if err != nil {
				t.Fatal(err)
			}
			h.provider.putUser(UserRecord{
				ID:           "user-1",
				TenantID:     "tenant-a",
				Email:        "alice@example.com",
				PasswordHash: hash,
				Status:       tc.status,
			})

			_, err = h.engine.Login(context.Background(), "tenant-a", "alice@example.com", testPassword)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}

			// Status only surfaces with correct credentials; a wrong
			// password stays a credential error.
			_, err = h.engine.Login(context.Background(), "tenant-a", "alice@example.com", "wrong-password")
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("status leaked through wrong password: %v", err)
			}
		})
	}
}

func TestLoginEmptyInputs(t *testing.T) {
	h := newTestEngine(t, nil)

	for _, args := range [][3]string{
		{"", "alice@example.com", testPassword},
		{"tenant-a", "", testPassword},
		{"tenant-a", "alice@example.com", ""},
	} {
		_, err := h.engine.Login(context.Background(), args[0], args[1], args[2])
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%q,%q,...): want ErrInvalidCredentials, got %v", args[0], args[1], err)
		}
	}
}

func TestLoginInfraFailureIsNotCredentialFailure(t *testing.T) {
	h := newTestEngine(t, nil)
	h.seedUser(t, "tenant-a", "user-1", "alice@example.com")

	h.redis.Close()

	_, err := h.engine.Login(context.Background(), "tenant-a", "alice@example.com", testPassword)
	if !errors.Is(err, ErrAuthUnavailable) {
		t.Fatalf("want ErrAuthUnavailable, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("infra failure presented as credential failure")
	}
}

func TestLoginProviderFailureIsUnavailable(t *testing.T) {
	h := newTestEngine(t, nil)
	h.provider.lookupErr = errors.New("database connection refused")

	_, err := h.engine.Login(context.Background(), "tenant-a", "alice@example.com", testPassword)
	if !errors.Is(err, ErrAuthUnavailable) {
		t.Fatalf("want ErrAuthUnavailable, got %v", err)
	}
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	h := newTestEngine(t, func(c *Config) {
		// Engine hashes stronger than the seeded hash below.
		c.Password.Memory = 16 * 1024
		c.Password.Time = 2
	})

	weak, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatal(err)
	}
	weakHash, err := weak.Hash(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	h.provider.putUser(UserRecord{
		ID:           "user-1",
		TenantID:     "tenant-a",
		Email:        "alice@example.com",
		PasswordHash: weakHash,
		Status:       AccountActive,
	})
	before, _ := h.provider.user("tenant-a", "user-1")

	h.mustLogin(t, "tenant-a", "alice@example.com")

	after, _ := h.provider.user("tenant-a", "user-1")
	if after.PasswordHash == before.PasswordHash {
		t.Fatal("weak hash not upgraded on login")
	}
	if h.provider.updatePasswordCalls == 0 {
		t.Fatal("UpdatePasswordHash never called")
	}

	// The upgraded hash still verifies.
	h.mustLogin(t, "tenant-a", "alice@example.com")
}
