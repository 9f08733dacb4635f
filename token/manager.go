package token

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes the two token families. Each kind has its own TTL and
// its own signing secret.
type Kind string

const (
	// KindAccess is the short-lived credential presented on every request.
	KindAccess Kind = "access"
	// KindRefresh is the longer-lived credential used solely to obtain a new
	// token pair. Refresh tokens are single-use; the engine revokes them on
	// rotation.
	KindRefresh Kind = "refresh"
)

const minSecretBytes = 32

var (
	// ErrInvalidClaims is returned by Issue when required claim fields are
	// missing.
	ErrInvalidClaims = errors.New("missing required claims")
	// ErrExpired is returned by Verify when the token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned by Verify when the token cannot be parsed.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature is returned by Verify when the signature does not match
	// the kind-specific secret.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrWrongKind is returned by Verify when a structurally valid token
	// carries a kind claim other than the requested one.
	ErrWrongKind = errors.New("token kind mismatch")
)

// Config holds token manager tuning parameters. AccessSecret and
// RefreshSecret MUST differ; NewManager rejects equal or short secrets.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Leeway        time.Duration
}

// Claims is the decoded payload of an issued token. TokenID (the jti) is
// unique per issuance and is the key used by the revocation registry.
type Claims struct {
	UserID   string `json:"uid"`
	TenantID string `json:"tid"`
	Kind     string `json:"knd"`
	jwt.RegisteredClaims
}

// TokenID returns the unique id assigned to this token at issuance.
func (c *Claims) TokenID() string {
	return c.ID
}

// RemainingTTL reports how long the token stays valid from now. Zero or
// negative means already expired.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// Manager signs and verifies tokens of both kinds. It is immutable after
// construction and safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates the configuration and returns a [Manager].
// Construction fails when either TTL is non-positive, either secret is
// shorter than 32 bytes, or both kinds share the same secret.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be > 0")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AccessSecret) < minSecretBytes {
		return nil, errors.New("access secret must be >= 32 bytes")
	}
	if len(cfg.RefreshSecret) < minSecretBytes {
		return nil, errors.New("refresh secret must be >= 32 bytes")
	}
	if len(cfg.AccessSecret) == len(cfg.RefreshSecret) &&
		subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, errors.New("access and refresh secrets must be independent")
	}

	return &Manager{config: cfg}, nil
}

// Issue creates a signed token of the given kind carrying the user and
// tenant claims plus a fresh token id. Returns the compact token string and
// the claims embedded in it.
func (m *Manager) Issue(kind Kind, userID, tenantID string) (string, *Claims, error) {
	if userID == "" || tenantID == "" {
		return "", nil, ErrInvalidClaims
	}

	ttl, secret, err := m.kindParams(kind)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		TenantID: tenantID,
		Kind:     string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// Verify parses and validates a token string against the secret of the
// requested kind. The kind claim inside the token must also match.
func (m *Manager) Verify(tokenStr string, kind Kind) (*Claims, error) {
	_, secret, err := m.kindParams(kind)
	if err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Kind != string(kind) {
		return nil, ErrWrongKind
	}
	if claims.UserID == "" || claims.TenantID == "" || claims.ID == "" {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

func (m *Manager) kindParams(kind Kind) (time.Duration, []byte, error) {
	switch kind {
	case KindAccess:
		return m.config.AccessTTL, m.config.AccessSecret, nil
	case KindRefresh:
		return m.config.RefreshTTL, m.config.RefreshSecret, nil
	default:
		return 0, nil, fmt.Errorf("unknown token kind %q", kind)
	}
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	default:
		return ErrMalformed
	}
}
