package handlers

import (
	"context"
	"time"

	"jobboard-bot/internal/bot/dialogue"
	"jobboard-bot/internal/bot/scheduler"
	"jobboard-bot/internal/clock"
	"jobboard-bot/internal/config"
	"jobboard-bot/internal/models"
	"jobboard-bot/internal/notify"

	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// Store is the part of the criteria store the handlers use.
type Store interface {
	GetOrCreateUser(ctx context.Context, user *models.User) (*models.User, error)
	CountUsers(ctx context.Context) (int, error)

	QueryJobs(ctx context.Context, filter models.JobFilter) ([]models.JobPosting, error)
	GetJob(ctx context.Context, jobID int64) (*models.JobPosting, error)
	CountJobs(ctx context.Context, activeOnly bool) (int, error)
	CreateApplication(ctx context.Context, app *models.Application) (bool, error)

	SubscriptionsByUser(ctx context.Context, userID int64) ([]models.Subscription, error)
	GetSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	SetSubscriptionPaused(ctx context.Context, id int64, paused bool, at time.Time) error
	DeleteSubscription(ctx context.Context, id int64) error
}

// Context contains deps for all handlers
type Context struct {
	Store     Store
	Dialogue  *dialogue.Machine
	Scheduler *scheduler.Scheduler
	Notifier  notify.Dispatcher
	Config    *config.Config
	Clock     clock.Clock
	Logger    *zap.Logger
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}
