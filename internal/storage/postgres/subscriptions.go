package postgres

import (
	"context"
	"time"

	"jobboard-bot/internal/models"

	"github.com/gocraft/dbr/v2"
	"go.uber.org/zap"
)

var subscriptionColumns = []string{
	"user_id", "name", "keywords", "location", "company", "min_salary",
	"only_remote", "only_featured", "exclude_keywords", "company_blacklist",
	"frequency", "is_active", "is_paused", "expires_at", "last_notified_at",
	"last_notified_job_id", "notifications_sent", "jobs_found", "max_per_day",
	"created_at", "updated_at",
}

// ActiveSubscriptions returns active, unpaused subscriptions of the given
// frequency.
func (s *Store) ActiveSubscriptions(ctx context.Context, freq models.Frequency) ([]models.Subscription, error) {
	var subs []models.Subscription

	_, err := s.sess.
		Select("*").
		From("subscriptions").
		Where("frequency = ? AND is_active = ? AND is_paused = ?", string(freq), true, false).
		OrderAsc("id").
		LoadContext(ctx, &subs)

	if err != nil {
		s.logger.Error("failed to get active subscriptions",
			zap.String("frequency", string(freq)),
			zap.Error(err),
		)
		return nil, dataErr("active subscriptions", err)
	}

	return subs, nil
}

// ExpiredSubscriptions returns active subscriptions whose expiry is before now.
func (s *Store) ExpiredSubscriptions(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription

	_, err := s.sess.
		Select("*").
		From("subscriptions").
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		LoadContext(ctx, &subs)

	if err != nil {
		s.logger.Error("failed to get expired subscriptions", zap.Error(err))
		return nil, dataErr("expired subscriptions", err)
	}

	return subs, nil
}

func (s *Store) SubscriptionsByUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	var subs []models.Subscription

	_, err := s.sess.
		Select("*").
		From("subscriptions").
		Where("user_id = ? AND is_active = ?", userID, true).
		OrderAsc("created_at").
		LoadContext(ctx, &subs)

	if err != nil {
		s.logger.Error("failed to get user subscriptions",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil, dataErr("subscriptions by user", err)
	}

	return subs, nil
}

func (s *Store) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	var sub models.Subscription

	err := s.sess.
		Select("*").
		From("subscriptions").
		Where("id = ?", id).
		LoadOneContext(ctx, &sub)

	if err == dbr.ErrNotFound {
		return nil, models.ErrNotFound
	}

	if err != nil {
		s.logger.Error("failed to get subscription",
			zap.Int64("subscription_id", id),
			zap.Error(err),
		)
		return nil, dataErr("get subscription", err)
	}

	return &sub, nil
}

func (s *Store) CountSubscriptions(ctx context.Context, filter models.SubscriptionFilter) (int, error) {
	var count int

	stmt := s.sess.Select("COUNT(*)").From("subscriptions")
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ? AND is_paused = ?", true, false)
	}
	if filter.Frequency != "" {
		stmt = stmt.Where("frequency = ?", string(filter.Frequency))
	}

	if err := stmt.LoadOneContext(ctx, &count); err != nil {
		s.logger.Error("failed to count subscriptions", zap.Error(err))
		return 0, dataErr("count subscriptions", err)
	}

	return count, nil
}

// SaveSubscription inserts a new subscription (ID == 0) or updates every
// mutable field of an existing one. Background updates go through
// RecordNotification and the flag setters instead.
func (s *Store) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}

	if sub.ID == 0 {
		err := s.sess.
			InsertInto("subscriptions").
			Columns(subscriptionColumns...).
			Record(sub).
			Returning("id").
			LoadContext(ctx, &sub.ID)

		if err != nil {
			s.logger.Error("failed to create subscription",
				zap.Int64("user_id", sub.UserID),
				zap.Error(err),
			)
			return dataErr("create subscription", err)
		}

		s.logger.Info("subscription created",
			zap.Int64("subscription_id", sub.ID),
			zap.Int64("user_id", sub.UserID),
			zap.String("frequency", string(sub.Frequency)),
		)
		return nil
	}

	_, err := s.sess.
		Update("subscriptions").
		Set("name", sub.Name).
		Set("keywords", sub.Keywords).
		Set("location", sub.Location).
		Set("company", sub.Company).
		Set("min_salary", sub.MinSalary).
		Set("only_remote", sub.RemoteOnly).
		Set("only_featured", sub.FeaturedOnly).
		Set("exclude_keywords", sub.ExcludeKeywords).
		Set("company_blacklist", sub.CompanyBlacklist).
		Set("frequency", string(sub.Frequency)).
		Set("is_active", sub.Active).
		Set("is_paused", sub.Paused).
		Set("expires_at", sub.ExpiresAt).
		Set("last_notified_at", sub.LastNotifiedAt).
		Set("last_notified_job_id", sub.LastNotifiedJobID).
		Set("notifications_sent", sub.NotificationsSent).
		Set("jobs_found", sub.JobsFound).
		Set("max_per_day", sub.MaxPerDay).
		Set("updated_at", sub.UpdatedAt).
		Where("id = ?", sub.ID).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to update subscription",
			zap.Int64("subscription_id", sub.ID),
			zap.Error(err),
		)
		return dataErr("update subscription", err)
	}

	return nil
}

// RecordNotification updates delivery bookkeeping in place. Counters are
// incremented by the database and last_notified_at never moves backwards,
// so concurrent deliveries for one subscription both count.
func (s *Store) RecordNotification(ctx context.Context, id int64, at time.Time, jobs int, lastJobID int64) error {
	stmt := s.sess.
		Update("subscriptions").
		Set("last_notified_at", dbr.Expr("GREATEST(last_notified_at, ?)", at)).
		Set("notifications_sent", dbr.Expr("notifications_sent + 1")).
		Set("jobs_found", dbr.Expr("jobs_found + ?", jobs)).
		Set("updated_at", dbr.Expr("GREATEST(updated_at, ?)", at)).
		Where("id = ?", id)

	if lastJobID > 0 {
		stmt = stmt.Set("last_notified_job_id", dbr.Expr("GREATEST(last_notified_job_id, ?)", lastJobID))
	}

	result, err := stmt.ExecContext(ctx)
	if err != nil {
		s.logger.Error("failed to record notification",
			zap.Int64("subscription_id", id),
			zap.Error(err),
		)
		return dataErr("record notification", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (s *Store) SetSubscriptionPaused(ctx context.Context, id int64, paused bool, at time.Time) error {
	return s.updateSubscriptionFlag(ctx, id, "is_paused", paused, at)
}

func (s *Store) DeactivateSubscription(ctx context.Context, id int64, at time.Time) error {
	return s.updateSubscriptionFlag(ctx, id, "is_active", false, at)
}

func (s *Store) updateSubscriptionFlag(ctx context.Context, id int64, column string, value bool, at time.Time) error {
	result, err := s.sess.
		Update("subscriptions").
		Set(column, value).
		Set("updated_at", at).
		Where("id = ?", id).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to update subscription",
			zap.Int64("subscription_id", id),
			zap.String("column", column),
			zap.Error(err),
		)
		return dataErr("update subscription "+column, err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, id int64) error {
	result, err := s.sess.
		DeleteFrom("subscriptions").
		Where("id = ?", id).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to delete subscription",
			zap.Int64("subscription_id", id),
			zap.Error(err),
		)
		return dataErr("delete subscription", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}

	s.logger.Info("subscription deleted", zap.Int64("subscription_id", id))
	return nil
}
