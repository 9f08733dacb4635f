package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrUnknownTenantKey is returned when an envelope references a key
	// version the tenant does not have (never created, or already purged).
	ErrUnknownTenantKey = errors.New("unknown tenant key version")
	// ErrDecryptionFailed is returned when the envelope is corrupt or fails
	// authentication. It never reveals which.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const (
	keySize     = 32
	envelopeVer = 1
	// envelope layout: ver(1) keyVersion(4 BE) nonce(12) ciphertext(..)
	envelopeHeader = 1 + 4 + 12
)

// getOrCreateScript initializes the tenant hash with a version-1 key when it
// does not exist yet, and returns the active version either way.
// KEYS[1] = tenant hash, ARGV[1] = fresh key material, ARGV[2] = unix now.
var getOrCreateLua = redis.NewScript(`
local active = redis.call('HGET', KEYS[1], 'active')
if active then
  return tonumber(active)
end
redis.call('HSET', KEYS[1], 'active', '1', 'v:1', ARGV[1], 'created:1', ARGV[2])
return 1
`)

// rotateScript installs a new key as the next version and promotes it to
// active, keeping every prior version in the hash.
// KEYS[1] = tenant hash, ARGV[1] = fresh key material, ARGV[2] = unix now.
var rotateLua = redis.NewScript(`
local active = redis.call('HGET', KEYS[1], 'active')
if not active then
  return {err='not_found'}
end
local next = tonumber(active) + 1
redis.call('HSET', KEYS[1], 'active', tostring(next), 'v:' .. next, ARGV[1], 'created:' .. next, ARGV[2])
return next
`)

// Config holds key store tuning parameters.
type Config struct {
	// CacheTTL bounds how stale the process-local key cache may get. Zero
	// disables caching entirely.
	CacheTTL time.Duration
}

type tenantKeys struct {
	active    uint32
	keys      map[uint32][]byte
	fetchedAt time.Time
}

// Store manages tenant keys and encrypts/decrypts individual field values.
// Safe for concurrent use.
type Store struct {
	redis  redis.UniversalClient
	config Config

	mu    sync.RWMutex
	cache map[string]*tenantKeys
}

// New creates a key [Store] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Store {
	return &Store{
		redis:  redisClient,
		config: cfg,
		cache:  make(map[string]*tenantKeys),
	}
}

func tenantKeyHash(tenantID string) string {
	return "tenantkey:" + tenantID
}

// GetOrCreate ensures the tenant has key material, minting a version-1 key
// on first use, and returns the active version number. Concurrent first
// calls for the same tenant converge on one key.
func (s *Store) GetOrCreate(ctx context.Context, tenantID string) (uint32, error) {
	material := make([]byte, keySize)
	if _, err := rand.Read(material); err != nil {
		return 0, fmt.Errorf("generate tenant key: %w", err)
	}

	now := strconv.FormatInt(time.Now().Unix(), 10)
	active, err := getOrCreateLua.Run(ctx, s.redis, []string{tenantKeyHash(tenantID)}, material, now).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	s.invalidate(tenantID)
	return uint32(active), nil
}

// Rotate mints a new key version for the tenant and makes it active. Prior
// versions are retained so existing ciphertexts remain decryptable.
// The tenant must already have key material (via GetOrCreate).
func (s *Store) Rotate(ctx context.Context, tenantID string) (uint32, error) {
	material := make([]byte, keySize)
	if _, err := rand.Read(material); err != nil {
		return 0, fmt.Errorf("generate tenant key: %w", err)
	}

	now := strconv.FormatInt(time.Now().Unix(), 10)
	next, err := rotateLua.Run(ctx, s.redis, []string{tenantKeyHash(tenantID)}, material, now).Int64()
	if err != nil {
		if strings.Contains(err.Error(), "not_found") {
			return 0, ErrUnknownTenantKey
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	s.invalidate(tenantID)
	return uint32(next), nil
}

// EncryptField seals a plaintext value with the tenant's active key and
// returns a self-describing envelope string. The tenant must have key
// material; call GetOrCreate first when in doubt.
func (s *Store) EncryptField(ctx context.Context, tenantID string, plaintext []byte) (string, error) {
	keys, err := s.load(ctx, tenantID)
	if err != nil {
		return "", err
	}

	key, ok := keys.keys[keys.active]
	if !ok {
		return "", ErrUnknownTenantKey
	}

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	envelope := make([]byte, envelopeHeader, envelopeHeader+len(plaintext)+aead.Overhead())
	envelope[0] = envelopeVer
	binary.BigEndian.PutUint32(envelope[1:5], keys.active)
	copy(envelope[5:], nonce)

	// Bind the envelope header as additional data so version and nonce
	// cannot be swapped between ciphertexts.
	sealed := aead.Seal(envelope, nonce, plaintext, envelope[:envelopeHeader])

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptField opens an envelope produced by EncryptField, using whichever
// key version the envelope names.
func (s *Store) DecryptField(ctx context.Context, tenantID, envelope string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(raw) < envelopeHeader || raw[0] != envelopeVer {
		return nil, ErrDecryptionFailed
	}

	version := binary.BigEndian.Uint32(raw[1:5])
	nonce := raw[5:envelopeHeader]

	keys, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	key, ok := keys.keys[version]
	if !ok {
		// A version newer than the cached view may have been minted by a
		// rotation elsewhere; refetch once before giving up.
		keys, err = s.fetch(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if key, ok = keys.keys[version]; !ok {
			return nil, ErrUnknownTenantKey
		}
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, raw[envelopeHeader:], raw[:envelopeHeader])
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// ActiveVersion returns the tenant's current active key version.
func (s *Store) ActiveVersion(ctx context.Context, tenantID string) (uint32, error) {
	keys, err := s.load(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return keys.active, nil
}

func (s *Store) load(ctx context.Context, tenantID string) (*tenantKeys, error) {
	if s.config.CacheTTL > 0 {
		s.mu.RLock()
		cached, ok := s.cache[tenantID]
		s.mu.RUnlock()
		if ok && time.Since(cached.fetchedAt) < s.config.CacheTTL {
			return cached, nil
		}
	}

	return s.fetch(ctx, tenantID)
}

func (s *Store) fetch(ctx context.Context, tenantID string) (*tenantKeys, error) {
	fields, err := s.redis.HGetAll(ctx, tenantKeyHash(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	activeStr, ok := fields["active"]
	if !ok {
		return nil, ErrUnknownTenantKey
	}
	active, err := strconv.ParseUint(activeStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("corrupt tenant key record for %s: %v", tenantID, err)
	}

	keys := make(map[uint32][]byte)
	for field, value := range fields {
		if !strings.HasPrefix(field, "v:") {
			continue
		}
		version, err := strconv.ParseUint(field[2:], 10, 32)
		if err != nil || len(value) != keySize {
			return nil, fmt.Errorf("corrupt tenant key record for %s", tenantID)
		}
		keys[uint32(version)] = []byte(value)
	}

	entry := &tenantKeys{
		active:    uint32(active),
		keys:      keys,
		fetchedAt: time.Now(),
	}

	if s.config.CacheTTL > 0 {
		s.mu.Lock()
		s.cache[tenantID] = entry
		s.mu.Unlock()
	}

	return entry, nil
}

func (s *Store) invalidate(tenantID string) {
	s.mu.Lock()
	delete(s.cache, tenantID)
	s.mu.Unlock()
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
