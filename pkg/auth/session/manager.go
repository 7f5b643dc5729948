// Package session keeps refresh sessions in redis, one per access-token jti.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	redisclient "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type sessionStore interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// record is the value stored per access id. Only a digest of the refresh
// token is kept so a redis dump cannot be replayed against /auth/refresh.
type record struct {
	UserID    uuid.UUID `json:"userId"`
	TokenHash string    `json:"tokenHash"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// Manager issues, rotates and revokes refresh sessions.
type Manager struct {
	store sessionStore
	ttl   time.Duration
	now   func() time.Time
}

// AccessSessionChecker is the read-only surface the auth middleware needs.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager requires a refresh TTL longer than the access-token TTL.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	if access := auth.TTL(cfg); ttl <= access {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, access)
	}
	return &Manager{store: client, ttl: ttl, now: time.Now}, nil
}

// Generate opens a session for userID under accessID and returns the refresh token.
func (m *Manager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", fmt.Errorf("access id is required")
	}
	if userID == uuid.Nil {
		return "", fmt.Errorf("user id is required")
	}
	return m.open(ctx, userID, accessID)
}

// Rotate exchanges a refresh token for a new access id and refresh token. Each
// refresh token works once: concurrent rotations of the same token race on
// GETDEL and only the winner gets a new session.
func (m *Manager) Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return "", "", ErrInvalidRefreshToken
	}
	key := m.store.AccessSessionKey(oldAccessID)

	var stored record
	found, err := m.store.GetJSON(ctx, key, &stored)
	if err != nil {
		return "", "", fmt.Errorf("load session: %w", err)
	}
	if !found || stored.UserID != userID || !matches(stored.TokenHash, provided) {
		return "", "", ErrInvalidRefreshToken
	}

	if _, err := m.store.GetDel(ctx, key); err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", "", ErrInvalidRefreshToken
		}
		return "", "", fmt.Errorf("consume session: %w", err)
	}

	newAccessID := NewAccessID()
	token, err := m.open(ctx, userID, newAccessID)
	if err != nil {
		return "", "", err
	}
	return newAccessID, token, nil
}

// Revoke ends the session; revoking an unknown id is not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession reports whether accessID still has a live session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	var rec record
	return m.store.GetJSON(ctx, m.store.AccessSessionKey(accessID), &rec)
}

// NewAccessID returns the identifier used as both JWT jti and session key.
func NewAccessID() string {
	return uuid.NewString()
}

func (m *Manager) open(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	rec := record{UserID: userID, TokenHash: digest(token), IssuedAt: m.now().UTC()}
	if err := m.store.SetJSON(ctx, m.store.AccessSessionKey(accessID), rec, m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func matches(storedHash, provided string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(digest(provided))) == 1
}
