package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func TestShouldSendNotification(t *testing.T) {
	tests := []struct {
		name   string
		freq   Frequency
		modify func(s *Subscription)
		want   bool
	}{
		{"immediate", FrequencyImmediate, nil, true},
		{"immediate just notified", FrequencyImmediate, func(s *Subscription) { s.LastNotifiedAt = timePtr(now) }, true},
		{"daily never notified", FrequencyDaily, nil, true},
		{"daily exactly a day", FrequencyDaily, func(s *Subscription) { s.LastNotifiedAt = timePtr(now.Add(-24 * time.Hour)) }, true},
		{"daily within a day", FrequencyDaily, func(s *Subscription) { s.LastNotifiedAt = timePtr(now.Add(-23 * time.Hour)) }, false},
		{"weekly six days", FrequencyWeekly, func(s *Subscription) { s.LastNotifiedAt = timePtr(now.Add(-6 * 24 * time.Hour)) }, false},
		{"weekly seven days", FrequencyWeekly, func(s *Subscription) { s.LastNotifiedAt = timePtr(now.Add(-7 * 24 * time.Hour)) }, true},
		{"unknown frequency", Frequency("hourly"), func(s *Subscription) { s.LastNotifiedAt = timePtr(now.Add(-48 * time.Hour)) }, false},
		{"inactive", FrequencyImmediate, func(s *Subscription) { s.Active = false }, false},
		{"paused never notified", FrequencyDaily, func(s *Subscription) { s.Paused = true }, false},
		{
			"paused long ago notified",
			FrequencyWeekly,
			func(s *Subscription) {
				s.Paused = true
				s.LastNotifiedAt = timePtr(now.Add(-30 * 24 * time.Hour))
			},
			false,
		},
		{"expired immediate", FrequencyImmediate, func(s *Subscription) { s.ExpiresAt = timePtr(now.Add(-time.Second)) }, false},
		{
			"expired long ago notified",
			FrequencyDaily,
			func(s *Subscription) {
				s.ExpiresAt = timePtr(now.Add(-time.Hour))
				s.LastNotifiedAt = timePtr(now.Add(-72 * time.Hour))
			},
			false,
		},
		{"expires later", FrequencyDaily, func(s *Subscription) { s.ExpiresAt = timePtr(now.Add(time.Hour)) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := NewSubscription(1, "test", tt.freq)
			if tt.modify != nil {
				tt.modify(sub)
			}
			assert.Equal(t, tt.want, sub.ShouldSendNotification(now))
		})
	}
}

func TestIsExpired(t *testing.T) {
	sub := NewSubscription(1, "test", FrequencyDaily)
	assert.False(t, sub.IsExpired(now))

	sub.ExpiresAt = timePtr(now)
	assert.False(t, sub.IsExpired(now))
	assert.True(t, sub.IsExpired(now.Add(time.Nanosecond)))
}

func TestSince(t *testing.T) {
	last := now.Add(-10 * time.Minute)

	tests := []struct {
		name string
		freq Frequency
		last *time.Time
		want time.Time
	}{
		{"immediate first run", FrequencyImmediate, nil, now.Add(-time.Hour)},
		{"immediate after notification", FrequencyImmediate, &last, last},
		{"daily", FrequencyDaily, &last, now.Add(-24 * time.Hour)},
		{"weekly", FrequencyWeekly, nil, now.Add(-7 * 24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := NewSubscription(1, "test", tt.freq)
			sub.LastNotifiedAt = tt.last
			assert.Equal(t, tt.want, sub.Since(now))
		})
	}
}

func TestMarkNotified(t *testing.T) {
	sub := NewSubscription(1, "test", FrequencyImmediate)

	sub.MarkNotified(now, 3, 7)
	require.NotNil(t, sub.LastNotifiedAt)
	assert.Equal(t, now, *sub.LastNotifiedAt)
	require.NotNil(t, sub.LastNotifiedJobID)
	assert.Equal(t, int64(7), *sub.LastNotifiedJobID)

	// an older delivery never rewinds the bookkeeping
	sub.MarkNotified(now.Add(-time.Minute), 1, 5)
	assert.Equal(t, now, *sub.LastNotifiedAt)
	assert.Equal(t, int64(7), *sub.LastNotifiedJobID)

	sub.MarkNotified(now.Add(time.Minute), 2, 0)
	assert.Equal(t, now.Add(time.Minute), *sub.LastNotifiedAt)
	assert.Equal(t, int64(7), *sub.LastNotifiedJobID)

	assert.Equal(t, 3, sub.NotificationsSent)
	assert.Equal(t, 6, sub.JobsFound)
}

func TestLimit(t *testing.T) {
	sub := NewSubscription(1, "test", FrequencyDaily)
	assert.Equal(t, DefaultMaxPerDay, sub.Limit())

	sub.MaxPerDay = 3
	assert.Equal(t, 3, sub.Limit())

	sub.MaxPerDay = 0
	assert.Equal(t, DefaultMaxPerDay, sub.Limit())

	sub.MaxPerDay = -1
	assert.Equal(t, DefaultMaxPerDay, sub.Limit())
}

func TestPauseResumeDeactivate(t *testing.T) {
	sub := NewSubscription(1, "test", FrequencyImmediate)

	sub.Pause(now)
	assert.True(t, sub.Paused)
	assert.Equal(t, now, sub.UpdatedAt)

	sub.Resume(now.Add(time.Minute))
	assert.False(t, sub.Paused)
	assert.True(t, sub.ShouldSendNotification(now))

	sub.Deactivate(now)
	assert.False(t, sub.Active)
	assert.False(t, sub.ShouldSendNotification(now))
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		input string
		want  Frequency
	}{
		{"immediate", FrequencyImmediate},
		{"Немедленно", FrequencyImmediate},
		{"сразу", FrequencyImmediate},
		{"🔔 Немедленно", FrequencyImmediate},
		{"daily", FrequencyDaily},
		{"  ЕЖЕДНЕВНО ", FrequencyDaily},
		{"📅 Ежедневно", FrequencyDaily},
		{"weekly", FrequencyWeekly},
		{"еженедельно", FrequencyWeekly},
		{"📆 Еженедельно", FrequencyWeekly},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFrequency(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}

	for _, input := range []string{"", "hourly", "каждый час"} {
		_, err := ParseFrequency(input)
		assert.Error(t, err, input)
	}

	assert.False(t, Frequency("hourly").Valid())
	assert.Equal(t, "hourly", Frequency("hourly").DisplayName())
	assert.Equal(t, "📅 Ежедневно", FrequencyDaily.DisplayName())
}

func TestSummary(t *testing.T) {
	sub := NewSubscription(1, "test", FrequencyDaily)
	assert.Equal(t, "Все вакансии", sub.Summary())

	floor := 150000
	sub.Keywords = "go"
	sub.MinSalary = &floor
	sub.RemoteOnly = true
	sub.ExcludeKeywords = StringList{"php", "1c"}

	assert.Equal(t,
		"Ключевые слова: go; Зарплата от: 150 000 руб.; Только удалённая работа; Исключить: php, 1c",
		sub.Summary(),
	)
}

func TestSalaryRange(t *testing.T) {
	lo, hi := 100000, 1500000

	assert.Equal(t, "100 000 - 1 500 000 руб.", (&JobPosting{SalaryMin: &lo, SalaryMax: &hi}).SalaryRange())
	assert.Equal(t, "от 100 000 руб.", (&JobPosting{SalaryMin: &lo}).SalaryRange())
	assert.Equal(t, "до 1 500 000 руб.", (&JobPosting{SalaryMax: &hi}).SalaryRange())
	assert.Equal(t, "по договорённости", (&JobPosting{}).SalaryRange())
	assert.Equal(t, "-1 000", FormatAmount(-1000))
	assert.Equal(t, "999", FormatAmount(999))
}

func TestStringList(t *testing.T) {
	var empty StringList
	v, err := empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var l StringList
	require.NoError(t, l.Scan([]byte(`["php","1c"]`)))
	assert.Equal(t, StringList{"php", "1c"}, l)

	require.NoError(t, l.Scan(nil))
	assert.Nil(t, l)

	assert.Error(t, l.Scan(42))
	assert.Error(t, l.Scan("not json"))
}
