package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobboard-bot/internal/models"
)

const (
	RateLimitWindowTTL = 1 * time.Minute
	SessionTTL         = 30 * time.Minute
)

func RateLimitKey(userID int64) string {
	return fmt.Sprintf("ratelimit:user:%d", userID)
}

func SessionKey(userID int64) string {
	return fmt.Sprintf("session:user:%d", userID)
}

func (c *Cache) IncrementUserRateLimit(ctx context.Context, userID int64) (int64, error) {
	return c.IncrementWithExpiry(ctx, RateLimitKey(userID), RateLimitWindowTTL)
}

// SessionStore keeps dialogue sessions in Redis. Every write refreshes the
// TTL, so abandoned conversations expire on their own.
type SessionStore struct {
	cache *Cache
	ttl   time.Duration
}

func NewSessionStore(cache *Cache, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &SessionStore{cache: cache, ttl: ttl}
}

// Get returns nil without error when the user has no session.
func (s *SessionStore) Get(ctx context.Context, userID int64) (*models.Session, error) {
	var session models.Session

	err := s.cache.Get(ctx, SessionKey(userID), &session)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	return &session, nil
}

func (s *SessionStore) Put(ctx context.Context, session *models.Session) error {
	if err := s.cache.Set(ctx, SessionKey(session.UserID), session, s.ttl); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, userID int64) error {
	if err := s.cache.Delete(ctx, SessionKey(userID)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
