package models

import (
	"fmt"
	"strings"
	"time"
)

type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
)

const (
	DefaultMaxPerDay = 10

	immediateLookback = time.Hour
	day               = 24 * time.Hour
	week              = 7 * day
)

var FrequencyDisplayNames = map[Frequency]string{
	FrequencyImmediate: "🔔 Немедленно",
	FrequencyDaily:     "📅 Ежедневно",
	FrequencyWeekly:    "📆 Еженедельно",
}

var frequencyAliases = map[string]Frequency{
	"immediate":   FrequencyImmediate,
	"немедленно":  FrequencyImmediate,
	"сразу":       FrequencyImmediate,
	"daily":       FrequencyDaily,
	"ежедневно":   FrequencyDaily,
	"weekly":      FrequencyWeekly,
	"еженедельно": FrequencyWeekly,
}

// Frequencies lists every cadence in scheduling order.
func Frequencies() []Frequency {
	return []Frequency{FrequencyImmediate, FrequencyDaily, FrequencyWeekly}
}

// ParseFrequency accepts the canonical value, a Russian label or the
// keyboard caption ("📅 Ежедневно").
func ParseFrequency(text string) (Frequency, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for f, display := range FrequencyDisplayNames {
		if normalized == strings.ToLower(display) {
			return f, nil
		}
	}

	if f, ok := frequencyAliases[normalized]; ok {
		return f, nil
	}

	return "", fmt.Errorf("unknown frequency %q", text)
}

func (f Frequency) Valid() bool {
	_, ok := FrequencyDisplayNames[f]
	return ok
}

func (f Frequency) DisplayName() string {
	if name, ok := FrequencyDisplayNames[f]; ok {
		return name
	}
	return string(f)
}

type Subscription struct {
	ID     int64  `db:"id"`
	UserID int64  `db:"user_id"`
	Name   string `db:"name"`

	Keywords         string     `db:"keywords"`
	Location         string     `db:"location"`
	Company          string     `db:"company"`
	MinSalary        *int       `db:"min_salary"`
	RemoteOnly       bool       `db:"only_remote"`
	FeaturedOnly     bool       `db:"only_featured"`
	ExcludeKeywords  StringList `db:"exclude_keywords"`
	CompanyBlacklist StringList `db:"company_blacklist"`

	Frequency Frequency  `db:"frequency"`
	Active    bool       `db:"is_active"`
	Paused    bool       `db:"is_paused"`
	ExpiresAt *time.Time `db:"expires_at"`

	LastNotifiedAt    *time.Time `db:"last_notified_at"`
	LastNotifiedJobID *int64     `db:"last_notified_job_id"`
	NotificationsSent int        `db:"notifications_sent"`
	JobsFound         int        `db:"jobs_found"`
	MaxPerDay         int        `db:"max_per_day"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewSubscription returns an active, unpaused subscription with defaults.
func NewSubscription(userID int64, name string, frequency Frequency) *Subscription {
	return &Subscription{
		UserID:    userID,
		Name:      name,
		Frequency: frequency,
		Active:    true,
		MaxPerDay: DefaultMaxPerDay,
	}
}

func (s *Subscription) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// ShouldSendNotification reports whether the subscription is due for
// delivery at now.
func (s *Subscription) ShouldSendNotification(now time.Time) bool {
	if !s.Active || s.Paused || s.IsExpired(now) {
		return false
	}

	if s.Frequency == FrequencyImmediate {
		return true
	}

	if s.LastNotifiedAt == nil {
		return true
	}

	elapsed := now.Sub(*s.LastNotifiedAt)

	switch s.Frequency {
	case FrequencyDaily:
		return elapsed >= day
	case FrequencyWeekly:
		return elapsed >= week
	default:
		return false
	}
}

// Since is the lower bound of the job creation window evaluated at now.
func (s *Subscription) Since(now time.Time) time.Time {
	switch s.Frequency {
	case FrequencyImmediate:
		if s.LastNotifiedAt != nil {
			return *s.LastNotifiedAt
		}
		return now.Add(-immediateLookback)
	case FrequencyWeekly:
		return now.Add(-week)
	default:
		return now.Add(-day)
	}
}

// Limit is the maximum number of jobs surfaced by one notification.
func (s *Subscription) Limit() int {
	if s.MaxPerDay <= 0 {
		return DefaultMaxPerDay
	}
	return s.MaxPerDay
}

// MarkNotified updates delivery bookkeeping. LastNotifiedAt never moves
// backwards.
func (s *Subscription) MarkNotified(now time.Time, jobs int, lastJobID int64) {
	if s.LastNotifiedAt == nil || now.After(*s.LastNotifiedAt) {
		t := now
		s.LastNotifiedAt = &t
	}

	if lastJobID > 0 && (s.LastNotifiedJobID == nil || lastJobID > *s.LastNotifiedJobID) {
		id := lastJobID
		s.LastNotifiedJobID = &id
	}

	s.NotificationsSent++
	s.JobsFound += jobs
	s.UpdatedAt = now
}

func (s *Subscription) Pause(now time.Time) {
	s.Paused = true
	s.UpdatedAt = now
}

func (s *Subscription) Resume(now time.Time) {
	s.Paused = false
	s.UpdatedAt = now
}

func (s *Subscription) Deactivate(now time.Time) {
	s.Active = false
	s.UpdatedAt = now
}

// Summary is a short human-readable description of the criteria.
func (s *Subscription) Summary() string {
	var parts []string

	if s.Keywords != "" {
		parts = append(parts, "Ключевые слова: "+s.Keywords)
	}
	if s.Location != "" {
		parts = append(parts, "Местоположение: "+s.Location)
	}
	if s.Company != "" {
		parts = append(parts, "Компания: "+s.Company)
	}
	if s.MinSalary != nil {
		parts = append(parts, fmt.Sprintf("Зарплата от: %s руб.", FormatAmount(*s.MinSalary)))
	}
	if s.RemoteOnly {
		parts = append(parts, "Только удалённая работа")
	}
	if s.FeaturedOnly {
		parts = append(parts, "Только избранные")
	}
	if len(s.ExcludeKeywords) > 0 {
		parts = append(parts, "Исключить: "+strings.Join(s.ExcludeKeywords, ", "))
	}
	if len(s.CompanyBlacklist) > 0 {
		parts = append(parts, "Без компаний: "+strings.Join(s.CompanyBlacklist, ", "))
	}

	if len(parts) == 0 {
		return "Все вакансии"
	}
	return strings.Join(parts, "; ")
}

// SubscriptionFilter narrows subscription counts.
type SubscriptionFilter struct {
	ActiveOnly bool // active and not paused
	Frequency  Frequency
}
