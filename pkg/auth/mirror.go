package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound is returned by a SessionMirror that holds no entry
var ErrSessionNotFound = errors.New("session not found")

// SessionMirror is a second-tier session store shared by all replicas, so
// that a token verified on one instance is not verified again on another
// within its refresh window.
type SessionMirror interface {
	Load(ctx context.Context, token string) (*Principal, time.Time, error)
	Save(ctx context.Context, token string, p *Principal, verifiedAt, expiresAt time.Time) error
	Delete(ctx context.Context, token string) error
}

const sessionKeyPrefix = "gatehouse:session:"

type mirroredSession struct {
	Principal  *Principal `json:"principal"`
	VerifiedAt time.Time  `json:"verified_at"`
}

// RedisMirror stores sessions in Redis keyed by the token hash
type RedisMirror struct {
	client *redis.Client
	ttlCap time.Duration
	now    func() time.Time
}

// NewRedisMirror creates a mirror whose entries live at most ttlCap
func NewRedisMirror(client *redis.Client, ttlCap time.Duration) *RedisMirror {
	if ttlCap <= 0 {
		ttlCap = time.Hour
	}
	return &RedisMirror{client: client, ttlCap: ttlCap, now: time.Now}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + HashToken(token)
}

// Load returns the mirrored principal and when it was verified
func (m *RedisMirror) Load(ctx context.Context, token string) (*Principal, time.Time, error) {
	key := sessionKey(token)

	data, err := m.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, time.Time{}, ErrSessionNotFound
	} else if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis get failed: %w", err)
	}

	var s mirroredSession
	if err := json.Unmarshal(data, &s); err != nil || s.Principal == nil {
		m.client.Del(ctx, key)
		return nil, time.Time{}, ErrSessionNotFound
	}

	return s.Principal, s.VerifiedAt, nil
}

// Save stores the session until the token expires, capped at the TTL cap.
// Tokens already past their expiry are not stored.
func (m *RedisMirror) Save(ctx context.Context, token string, p *Principal, verifiedAt, expiresAt time.Time) error {
	ttl := m.ttlCap
	if !expiresAt.IsZero() {
		remaining := expiresAt.Sub(m.now())
		if remaining <= 0 {
			return nil
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	data, err := json.Marshal(mirroredSession{Principal: p, VerifiedAt: verifiedAt})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return m.client.Set(ctx, sessionKey(token), data, ttl).Err()
}

// Delete removes the mirrored session
func (m *RedisMirror) Delete(ctx context.Context, token string) error {
	return m.client.Del(ctx, sessionKey(token)).Err()
}
