// Package memory is an in-memory implementation of the criteria store.
// Safe for concurrent access. Intended for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"jobboard-bot/internal/clock"
	"jobboard-bot/internal/models"
)

type notifiedKey struct {
	userID int64
	jobID  int64
}

type Store struct {
	mu    sync.RWMutex
	clock clock.Clock

	users         map[int64]*models.User
	jobs          map[int64]*models.JobPosting
	subscriptions map[int64]*models.Subscription
	applications  map[int64]*models.Application
	notified      map[notifiedKey]time.Time

	nextJobID          int64
	nextSubscriptionID int64
	nextApplicationID  int64

	failures map[string]error
}

func New(clk clock.Clock) *Store {
	return &Store{
		clock:         clk,
		users:         make(map[int64]*models.User),
		jobs:          make(map[int64]*models.JobPosting),
		subscriptions: make(map[int64]*models.Subscription),
		applications:  make(map[int64]*models.Application),
		notified:      make(map[notifiedKey]time.Time),
		failures:      make(map[string]error),
	}
}

// FailOn makes every later call of the named method return err wrapped as
// a data access error. A nil err clears the failure.
func (m *Store) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

func (m *Store) failure(method string) error {
	if err, ok := m.failures[method]; ok {
		return fmt.Errorf("%s: %w: %w", method, models.ErrDataAccess, err)
	}
	return nil
}

// Users

func (m *Store) GetOrCreateUser(_ context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("GetOrCreateUser"); err != nil {
		return nil, err
	}

	existing, ok := m.users[user.ID]
	if !ok {
		cp := *user
		cp.CreatedAt = m.clock.Now()
		m.users[user.ID] = &cp
		out := cp
		return &out, nil
	}

	existing.Username = user.Username
	existing.FirstName = user.FirstName
	existing.LastName = user.LastName
	out := *existing
	return &out, nil
}

func (m *Store) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// Jobs

func (m *Store) QueryJobs(_ context.Context, filter models.JobFilter) ([]models.JobPosting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("QueryJobs"); err != nil {
		return nil, err
	}

	var jobs []models.JobPosting
	for _, j := range m.jobs {
		if filter.ActiveOnly && !j.Active {
			continue
		}
		if filter.CreatedSince != nil && j.CreatedAt.Before(*filter.CreatedSince) {
			continue
		}
		if filter.CreatedBefore != nil && !j.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		if filter.EmployerID != 0 && j.EmployerID != filter.EmployerID {
			continue
		}
		jobs = append(jobs, *j)
	}

	sort.Slice(jobs, func(a, b int) bool {
		if !jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			if filter.OrderBy == models.OrderCreatedAsc {
				return jobs[a].CreatedAt.Before(jobs[b].CreatedAt)
			}
			return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
		}
		if filter.OrderBy == models.OrderCreatedAsc {
			return jobs[a].ID < jobs[b].ID
		}
		return jobs[a].ID > jobs[b].ID
	})

	if filter.Limit > 0 && len(jobs) > filter.Limit {
		jobs = jobs[:filter.Limit]
	}

	return jobs, nil
}

func (m *Store) GetJob(_ context.Context, jobID int64) (*models.JobPosting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

// SaveJob keeps a preset CreatedAt so tests can place jobs in time.
func (m *Store) SaveJob(_ context.Context, job *models.JobPosting) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("SaveJob"); err != nil {
		return err
	}

	now := m.clock.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if job.ID == 0 {
		m.nextJobID++
		job.ID = m.nextJobID
	} else if _, ok := m.jobs[job.ID]; !ok {
		return models.ErrNotFound
	}

	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *Store) CountJobs(_ context.Context, activeOnly bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, j := range m.jobs {
		if !activeOnly || j.Active {
			n++
		}
	}
	return n, nil
}

// Subscriptions

func (m *Store) ActiveSubscriptions(_ context.Context, freq models.Frequency) ([]models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("ActiveSubscriptions"); err != nil {
		return nil, err
	}

	var subs []models.Subscription
	for _, s := range m.subscriptions {
		if s.Frequency == freq && s.Active && !s.Paused {
			subs = append(subs, copySubscription(s))
		}
	}
	sortSubscriptions(subs)
	return subs, nil
}

func (m *Store) ExpiredSubscriptions(_ context.Context, now time.Time) ([]models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("ExpiredSubscriptions"); err != nil {
		return nil, err
	}

	var subs []models.Subscription
	for _, s := range m.subscriptions {
		if s.Active && s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			subs = append(subs, copySubscription(s))
		}
	}
	sortSubscriptions(subs)
	return subs, nil
}

func (m *Store) SubscriptionsByUser(_ context.Context, userID int64) ([]models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("SubscriptionsByUser"); err != nil {
		return nil, err
	}

	var subs []models.Subscription
	for _, s := range m.subscriptions {
		if s.UserID == userID && s.Active {
			subs = append(subs, copySubscription(s))
		}
	}
	sortSubscriptions(subs)
	return subs, nil
}

func (m *Store) GetSubscription(_ context.Context, id int64) (*models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subscriptions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := copySubscription(s)
	return &cp, nil
}

func (m *Store) CountSubscriptions(_ context.Context, filter models.SubscriptionFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("CountSubscriptions"); err != nil {
		return 0, err
	}

	n := 0
	for _, s := range m.subscriptions {
		if filter.ActiveOnly && (!s.Active || s.Paused) {
			continue
		}
		if filter.Frequency != "" && s.Frequency != filter.Frequency {
			continue
		}
		n++
	}
	return n, nil
}

func (m *Store) SaveSubscription(_ context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("SaveSubscription"); err != nil {
		return err
	}

	now := m.clock.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}

	if sub.ID == 0 {
		m.nextSubscriptionID++
		sub.ID = m.nextSubscriptionID
	} else if _, ok := m.subscriptions[sub.ID]; !ok {
		return models.ErrNotFound
	}

	cp := copySubscription(sub)
	m.subscriptions[sub.ID] = &cp
	return nil
}

// RecordNotification applies delivery bookkeeping to the stored row only.
func (m *Store) RecordNotification(_ context.Context, id int64, at time.Time, jobs int, lastJobID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("RecordNotification"); err != nil {
		return err
	}

	s, ok := m.subscriptions[id]
	if !ok {
		return models.ErrNotFound
	}
	s.MarkNotified(at, jobs, lastJobID)
	return nil
}

func (m *Store) SetSubscriptionPaused(_ context.Context, id int64, paused bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("SetSubscriptionPaused"); err != nil {
		return err
	}

	s, ok := m.subscriptions[id]
	if !ok {
		return models.ErrNotFound
	}
	if paused {
		s.Pause(at)
	} else {
		s.Resume(at)
	}
	return nil
}

func (m *Store) DeactivateSubscription(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("DeactivateSubscription"); err != nil {
		return err
	}

	s, ok := m.subscriptions[id]
	if !ok {
		return models.ErrNotFound
	}
	s.Deactivate(at)
	return nil
}

func (m *Store) DeleteSubscription(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscriptions[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.subscriptions, id)
	return nil
}

// Applications

func (m *Store) CountApplications(_ context.Context, jobID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("CountApplications"); err != nil {
		return 0, err
	}

	n := 0
	for _, a := range m.applications {
		if a.JobID == jobID {
			n++
		}
	}
	return n, nil
}

func (m *Store) CreateApplication(_ context.Context, app *models.Application) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("CreateApplication"); err != nil {
		return false, err
	}

	for _, a := range m.applications {
		if a.JobID == app.JobID && a.ApplicantID == app.ApplicantID {
			return false, nil
		}
	}

	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}
	m.nextApplicationID++
	app.ID = m.nextApplicationID
	app.CreatedAt = m.clock.Now()

	cp := *app
	m.applications[app.ID] = &cp
	return true, nil
}

// Notified jobs

func (m *Store) UnnotifiedJobIDs(_ context.Context, userID int64, jobIDs []int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("UnnotifiedJobIDs"); err != nil {
		return nil, err
	}

	out := make([]int64, 0, len(jobIDs))
	for _, id := range jobIDs {
		if _, seen := m.notified[notifiedKey{userID, id}]; !seen {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *Store) MarkJobsNotified(_ context.Context, userID int64, jobIDs []int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("MarkJobsNotified"); err != nil {
		return err
	}

	for _, id := range jobIDs {
		key := notifiedKey{userID, id}
		if _, ok := m.notified[key]; !ok {
			m.notified[key] = at
		}
	}
	return nil
}

func (m *Store) PruneNotified(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("PruneNotified"); err != nil {
		return 0, err
	}

	var n int64
	for key, at := range m.notified {
		if at.Before(before) {
			delete(m.notified, key)
			n++
		}
	}
	return n, nil
}

func copySubscription(s *models.Subscription) models.Subscription {
	cp := *s
	if s.ExcludeKeywords != nil {
		cp.ExcludeKeywords = append(models.StringList(nil), s.ExcludeKeywords...)
	}
	if s.CompanyBlacklist != nil {
		cp.CompanyBlacklist = append(models.StringList(nil), s.CompanyBlacklist...)
	}
	return cp
}

func sortSubscriptions(subs []models.Subscription) {
	sort.Slice(subs, func(a, b int) bool { return subs[a].ID < subs[b].ID })
}
