package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/formhub/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// RevocationStore invalidates access tokens before they expire
type RevocationStore interface {
	// RevokeToken revokes a single token by its JTI for ttl
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeUserTokens rejects every token of the user issued up to now.
	// ttl should cover the longest remaining token lifetime.
	RevokeUserTokens(ctx context.Context, userID string, ttl time.Duration) error
	IsUserTokenRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

const revocationKeyPrefix = "formhub:revoked:"

// RedisRevocationStore implements RevocationStore using Redis
type RedisRevocationStore struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisRevocationStore creates a revocation store over an existing client
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{
		client:    client,
		keyPrefix: revocationKeyPrefix,
		now:       time.Now,
	}
}

func (s *RedisRevocationStore) jtiKey(jti string) string {
	return s.keyPrefix + "jti:" + jti
}

func (s *RedisRevocationStore) userKey(userID string) string {
	return s.keyPrefix + "user:" + userID
}

// RevokeToken stores the JTI until the token would have expired anyway
func (s *RedisRevocationStore) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks if a token's JTI was revoked
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// RevokeUserTokens stores the current Unix time as the user's cut-off
func (s *RedisRevocationStore) RevokeUserTokens(ctx context.Context, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.userKey(userID), s.now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}

// IsUserTokenRevoked reports whether a token was issued before the user's cut-off second
func (s *RedisRevocationStore) IsUserTokenRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	raw, err := s.client.Get(ctx, s.userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user token revocation: %w", err)
	}

	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse revocation timestamp: %w", err)
	}
	return issuedAt.Unix() < cutoff, nil
}

var _ RevocationStore = (*RedisRevocationStore)(nil)

// MemoryRevocationStore keeps revocations in process memory.
// Revocations are lost on restart and not shared between instances.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	tokens  map[string]time.Time // jti -> expiry
	cutoffs map[string]time.Time // user -> cut-off
	now     func() time.Time
}

// NewMemoryRevocationStore creates an empty in-memory store
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		tokens:  make(map[string]time.Time),
		cutoffs: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock replaces the time source
func (s *MemoryRevocationStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// RevokeToken revokes a JTI for ttl
func (s *MemoryRevocationStore) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[jti] = s.now().Add(ttl)
	return nil
}

// IsRevoked checks if a JTI is revoked and not yet expired
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.tokens[jti]
	if !ok {
		return false, nil
	}
	if s.now().After(expiry) {
		delete(s.tokens, jti)
		return false, nil
	}
	return true, nil
}

// RevokeUserTokens records the cut-off for the user.
// Second precision matches the iat claim.
func (s *MemoryRevocationStore) RevokeUserTokens(_ context.Context, userID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs[userID] = s.now().Truncate(time.Second)
	return nil
}

// IsUserTokenRevoked reports whether a token was issued before the cut-off second
func (s *MemoryRevocationStore) IsUserTokenRevoked(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff, ok := s.cutoffs[userID]
	if !ok {
		return false, nil
	}
	return issuedAt.Truncate(time.Second).Before(cutoff), nil
}

var _ RevocationStore = (*MemoryRevocationStore)(nil)
