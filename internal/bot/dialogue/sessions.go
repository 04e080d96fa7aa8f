package dialogue

import (
	"context"
	"sync"
	"time"

	"jobboard-bot/internal/clock"
	"jobboard-bot/internal/models"
)

const (
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 10000
)

// SessionStore persists dialogue sessions between messages. Get returns
// nil without error when the user has no session.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*models.Session, error)
	Put(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, userID int64) error
}

// MemorySessions is a process-local SessionStore. Sessions idle longer
// than the TTL are dropped, and when the table is full the least recently
// updated session is evicted.
type MemorySessions struct {
	mu       sync.Mutex
	clock    clock.Clock
	ttl      time.Duration
	max      int
	sessions map[int64]*models.Session
}

func NewMemorySessions(clk clock.Clock, ttl time.Duration, max int) *MemorySessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if max <= 0 {
		max = DefaultMaxSessions
	}

	return &MemorySessions{
		clock:    clk,
		ttl:      ttl,
		max:      max,
		sessions: make(map[int64]*models.Session),
	}
}

func (m *MemorySessions) Get(_ context.Context, userID int64) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}

	if m.expired(s, m.clock.Now()) {
		delete(m.sessions, userID)
		return nil, nil
	}

	return copySession(s), nil
}

func (m *MemorySessions) Put(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.UserID]; !exists && len(m.sessions) >= m.max {
		m.evict()
	}

	m.sessions[session.UserID] = copySession(session)
	return nil
}

func (m *MemorySessions) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
	return nil
}

func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// evict drops expired sessions, then the oldest one if still full.
// Callers hold mu.
func (m *MemorySessions) evict() {
	now := m.clock.Now()

	var (
		oldestID int64
		oldest   time.Time
		found    bool
	)
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			continue
		}
		if !found || s.UpdatedAt.Before(oldest) {
			oldestID, oldest, found = id, s.UpdatedAt, true
		}
	}

	if found && len(m.sessions) >= m.max {
		delete(m.sessions, oldestID)
	}
}

func (m *MemorySessions) expired(s *models.Session, now time.Time) bool {
	return now.Sub(s.UpdatedAt) > m.ttl
}

func copySession(s *models.Session) *models.Session {
	cp := *s

	if s.Job != nil {
		job := *s.Job
		cp.Job = &job
	}

	if s.Subscription != nil {
		sub := *s.Subscription
		sub.ExcludeKeywords = append(models.StringList(nil), s.Subscription.ExcludeKeywords...)
		sub.CompanyBlacklist = append(models.StringList(nil), s.Subscription.CompanyBlacklist...)
		cp.Subscription = &sub
	}

	return &cp
}
