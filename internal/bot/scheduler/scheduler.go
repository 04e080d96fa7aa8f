// Package scheduler delivers subscription notifications on immediate,
// daily and weekly cadences and runs the nightly cleanup.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"jobboard-bot/internal/bot/utils"
	"jobboard-bot/internal/clock"
	"jobboard-bot/internal/config"
	"jobboard-bot/internal/matcher"
	"jobboard-bot/internal/models"
	"jobboard-bot/internal/notify"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	TriggerImmediate = "immediate"
	TriggerDaily     = "daily"
	TriggerWeekly    = "weekly"
	TriggerCleanup   = "cleanup"
)

const newJobQueueSize = 64

// Store is the part of the criteria store the scheduler reads and updates.
type Store interface {
	ActiveSubscriptions(ctx context.Context, freq models.Frequency) ([]models.Subscription, error)
	ExpiredSubscriptions(ctx context.Context, now time.Time) ([]models.Subscription, error)
	CountSubscriptions(ctx context.Context, filter models.SubscriptionFilter) (int, error)
	RecordNotification(ctx context.Context, id int64, at time.Time, jobs int, lastJobID int64) error
	DeactivateSubscription(ctx context.Context, id int64, at time.Time) error
	QueryJobs(ctx context.Context, filter models.JobFilter) ([]models.JobPosting, error)
	SaveJob(ctx context.Context, job *models.JobPosting) error
	CountApplications(ctx context.Context, jobID int64) (int, error)
	UnnotifiedJobIDs(ctx context.Context, userID int64, jobIDs []int64) ([]int64, error)
	MarkJobsNotified(ctx context.Context, userID int64, jobIDs []int64, at time.Time) error
	PruneNotified(ctx context.Context, before time.Time) (int64, error)
}

type trigger struct {
	name     string
	schedule cron.Schedule
	next     time.Time
	run      func(ctx context.Context, now time.Time, log *zap.Logger)
}

// Stats is a snapshot of subscription counts and delivery totals.
type Stats struct {
	TotalSubscriptions  int
	ActiveSubscriptions int
	PerCadence          map[models.Frequency]int
	Running             bool
	JobsSurfaced        int64
}

type Scheduler struct {
	store      Store
	dispatcher notify.Dispatcher
	clock      clock.Clock
	cfg        config.Schedule
	logger     *zap.Logger

	// mu serializes trigger passes and new-job evaluation.
	mu       sync.Mutex
	triggers []*trigger
	newJobs  chan *models.JobPosting

	running      atomic.Bool
	jobsSurfaced atomic.Int64
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

func New(
	store Store,
	dispatcher notify.Dispatcher,
	clk clock.Clock,
	cfg config.Schedule,
	logger *zap.Logger,
) (*Scheduler, error) {
	s := &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		clock:      clk,
		cfg:        cfg,
		logger:     logger,
		newJobs:    make(chan *models.JobPosting, newJobQueueSize),
	}

	specs := []struct {
		name string
		expr string
		run  func(ctx context.Context, now time.Time, log *zap.Logger)
	}{
		{TriggerImmediate, cfg.Immediate, s.cadence(models.FrequencyImmediate)},
		{TriggerDaily, cfg.Daily, s.cadence(models.FrequencyDaily)},
		{TriggerWeekly, cfg.Weekly, s.cadence(models.FrequencyWeekly)},
		{TriggerCleanup, cfg.Cleanup, s.cleanup},
	}

	now := clk.Now()
	for _, spec := range specs {
		schedule, err := cron.ParseStandard(cfg.Spec(spec.expr))
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s schedule %q: %v", models.ErrConfiguration, spec.name, spec.expr, err)
		}
		s.triggers = append(s.triggers, &trigger{
			name:     spec.name,
			schedule: schedule,
			next:     schedule.Next(now),
			run:      spec.run,
		})
	}

	return s, nil
}

// Start launches the polling loop. It returns at once; call Stop to end
// the loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)

	s.logger.Info("notification scheduler started",
		zap.Duration("poll_interval", s.cfg.PollInterval),
	)
}

// Stop ends the loop after the current pass completes.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	close(s.stopCh)
	s.wg.Wait()

	s.logger.Info("notification scheduler stopped")
}

func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.running.Store(false)
			s.logger.Info("notification scheduler context done")
			return
		case <-stop:
			return
		case <-ticker.C:
			if !s.running.Load() {
				return
			}
			s.RunPending(ctx)
		case job := <-s.newJobs:
			s.notifyQueued(ctx, job)
		}
	}
}

// EnqueueNewJob hands a freshly created job to the polling loop for
// evaluation against immediate subscriptions. Returns false when nothing
// was queued; a job dropped on a full queue is left to the immediate pass.
func (s *Scheduler) EnqueueNewJob(job *models.JobPosting) bool {
	if job == nil {
		return false
	}

	cp := *job
	select {
	case s.newJobs <- &cp:
		return true
	default:
		s.logger.Warn("new job queue full", zap.Int64("job_id", job.ID))
		return false
	}
}

func (s *Scheduler) notifyQueued(ctx context.Context, job *models.JobPosting) {
	if _, err := s.NotifyNewJob(ctx, job); err != nil {
		s.logger.Error("failed to evaluate new job",
			zap.Int64("job_id", job.ID),
			zap.Error(err),
		)
	}
}

// RunPending runs every trigger whose next fire time has passed, then
// schedules its next firing. Triggers see their scheduled fire time as now,
// so wake-up jitter never shortens a daily or weekly interval. Returns the
// names of the triggers that ran.
func (s *Scheduler) RunPending(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	var fired []string
	for _, t := range s.triggers {
		if now.Before(t.next) {
			continue
		}

		runID := uuid.NewString()
		log := s.logger.With(
			zap.String("trigger", t.name),
			zap.String("run_id", runID),
		)

		s.runTrigger(ctx, t, t.next, log)
		t.next = t.schedule.Next(now)
		fired = append(fired, t.name)

		log.Debug("trigger rescheduled", zap.Time("next", t.next))
	}

	return fired
}

// NextRun reports when the named trigger fires next.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.triggers {
		if t.name == name {
			return t.next, true
		}
	}
	return time.Time{}, false
}

func (s *Scheduler) runTrigger(ctx context.Context, t *trigger, now time.Time, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic recovered in trigger",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	start := time.Now()
	t.run(ctx, now, log)

	log.Info("trigger finished", zap.Duration("duration", time.Since(start)))
}

func (s *Scheduler) cadence(freq models.Frequency) func(context.Context, time.Time, *zap.Logger) {
	return func(ctx context.Context, now time.Time, log *zap.Logger) {
		s.processFrequency(ctx, freq, now, log)
	}
}

func (s *Scheduler) processFrequency(ctx context.Context, freq models.Frequency, now time.Time, log *zap.Logger) {
	subs, err := s.store.ActiveSubscriptions(ctx, freq)
	if err != nil {
		log.Error("failed to get subscriptions", zap.Error(err))
		return
	}

	var due, notified, surfaced int
	for i := range subs {
		sub := &subs[i]
		if !sub.ShouldSendNotification(now) {
			continue
		}
		due++

		n, err := s.processSubscription(ctx, sub, now)
		if err != nil {
			log.Error("failed to process subscription",
				zap.Int64("subscription_id", sub.ID),
				zap.Int64("user_id", sub.UserID),
				zap.Error(err),
			)
			continue
		}

		if n > 0 {
			notified++
			surfaced += n
		}
	}

	log.Info("subscriptions processed",
		zap.String("frequency", string(freq)),
		zap.Int("total", len(subs)),
		zap.Int("due", due),
		zap.Int("notified", notified),
		zap.Int("jobs", surfaced),
	)
}

// processSubscription evaluates one subscription and delivers at most one
// message. Returns the number of jobs surfaced.
func (s *Scheduler) processSubscription(ctx context.Context, sub *models.Subscription, now time.Time) (int, error) {
	since := sub.Since(now)

	candidates, err := s.store.QueryJobs(ctx, models.JobFilter{
		ActiveOnly:   true,
		CreatedSince: &since,
		OrderBy:      models.OrderCreatedDesc,
	})
	if err != nil {
		return 0, fmt.Errorf("query jobs: %w", err)
	}

	matched := matcher.Filter(candidates, sub)
	if len(matched) == 0 {
		return 0, nil
	}

	fresh, err := s.unnotified(ctx, sub.UserID, matched)
	if err != nil {
		return 0, err
	}

	sortNewestFirst(fresh)
	if limit := sub.Limit(); len(fresh) > limit {
		fresh = fresh[:limit]
	}

	if len(fresh) == 0 {
		return 0, nil
	}

	if err := s.deliver(ctx, sub, fresh, now); err != nil {
		return 0, err
	}

	return len(fresh), nil
}

// unnotified drops jobs already surfaced to the user by any subscription.
func (s *Scheduler) unnotified(ctx context.Context, userID int64, jobs []models.JobPosting) ([]models.JobPosting, error) {
	ids := make([]int64, len(jobs))
	for i := range jobs {
		ids[i] = jobs[i].ID
	}

	fresh, err := s.store.UnnotifiedJobIDs(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("filter notified jobs: %w", err)
	}

	keep := make(map[int64]bool, len(fresh))
	for _, id := range fresh {
		keep[id] = true
	}

	out := make([]models.JobPosting, 0, len(fresh))
	for _, j := range jobs {
		if keep[j.ID] {
			out = append(out, j)
		}
	}
	return out, nil
}

// deliver sends one message for jobs and records the delivery. Nothing is
// recorded when the send fails.
func (s *Scheduler) deliver(ctx context.Context, sub *models.Subscription, jobs []models.JobPosting, now time.Time) error {
	msg := utils.FormatJobNotification(sub, jobs)
	if err := s.dispatcher.Send(ctx, sub.UserID, msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	ids := make([]int64, len(jobs))
	var maxID int64
	for i := range jobs {
		ids[i] = jobs[i].ID
		if jobs[i].ID > maxID {
			maxID = jobs[i].ID
		}
	}

	s.jobsSurfaced.Add(int64(len(jobs)))

	// Record dedup entries even if the subscription update fails so the
	// same jobs are not sent twice.
	err := multierr.Append(
		s.store.RecordNotification(ctx, sub.ID, now, len(jobs), maxID),
		s.store.MarkJobsNotified(ctx, sub.UserID, ids, now),
	)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	s.logger.Debug("notification sent",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("user_id", sub.UserID),
		zap.Int("jobs", len(jobs)),
	)

	return nil
}

// NotifyNewJob evaluates a freshly created job against immediate
// subscriptions without waiting for the next trigger. Returns how many
// users were notified. Blocks while a trigger pass is running.
func (s *Scheduler) NotifyNewJob(ctx context.Context, job *models.JobPosting) (int, error) {
	if job == nil || !job.Active {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.store.ActiveSubscriptions(ctx, models.FrequencyImmediate)
	if err != nil {
		return 0, fmt.Errorf("get immediate subscriptions: %w", err)
	}

	now := s.clock.Now()
	notified := 0
	for i := range subs {
		sub := &subs[i]
		if !sub.ShouldSendNotification(now) || !matcher.Matches(job, sub) {
			continue
		}

		fresh, err := s.unnotified(ctx, sub.UserID, []models.JobPosting{*job})
		if err != nil {
			s.logger.Error("failed to check notified jobs",
				zap.Int64("subscription_id", sub.ID),
				zap.Error(err),
			)
			continue
		}
		if len(fresh) == 0 {
			continue
		}

		if err := s.deliver(ctx, sub, fresh, now); err != nil {
			s.logger.Error("failed to notify about new job",
				zap.Int64("job_id", job.ID),
				zap.Int64("subscription_id", sub.ID),
				zap.Error(err),
			)
			continue
		}
		notified++
	}

	s.logger.Info("new job evaluated",
		zap.Int64("job_id", job.ID),
		zap.Int("candidates", len(subs)),
		zap.Int("notified", notified),
	)

	return notified, nil
}

func (s *Scheduler) cleanup(ctx context.Context, now time.Time, log *zap.Logger) {
	expired, err := s.expireSubscriptions(ctx, now)
	if err != nil {
		log.Error("failed to expire subscriptions", zap.Error(err))
	}

	stale, err := s.deactivateStaleJobs(ctx, now.Add(-s.cfg.StaleJobAge))
	if err != nil {
		log.Error("failed to deactivate stale jobs", zap.Error(err))
	}

	pruned, err := s.store.PruneNotified(ctx, now.Add(-s.cfg.NotifiedRetention))
	if err != nil {
		log.Error("failed to prune notified jobs", zap.Error(err))
	}

	log.Info("cleanup finished",
		zap.Int("expired_subscriptions", expired),
		zap.Int("stale_jobs", stale),
		zap.Int64("pruned_notifications", pruned),
	)
}

func (s *Scheduler) expireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	subs, err := s.store.ExpiredSubscriptions(ctx, now)
	if err != nil {
		return 0, err
	}

	var errs error
	n := 0
	for i := range subs {
		if err := s.store.DeactivateSubscription(ctx, subs[i].ID, now); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		n++
	}
	return n, errs
}

// deactivateStaleJobs closes active postings created before cutoff that
// never received an application.
func (s *Scheduler) deactivateStaleJobs(ctx context.Context, cutoff time.Time) (int, error) {
	jobs, err := s.store.QueryJobs(ctx, models.JobFilter{
		ActiveOnly:    true,
		CreatedBefore: &cutoff,
		OrderBy:       models.OrderCreatedAsc,
	})
	if err != nil {
		return 0, err
	}

	var errs error
	n := 0
	for i := range jobs {
		count, err := s.store.CountApplications(ctx, jobs[i].ID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if count > 0 {
			continue
		}

		jobs[i].Active = false
		if err := s.store.SaveJob(ctx, &jobs[i]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		n++
	}
	return n, errs
}

// SendTestNotification sends a test message to a single user.
func (s *Scheduler) SendTestNotification(ctx context.Context, userID int64, text string) error {
	if err := s.dispatcher.Send(ctx, userID, utils.FormatTestNotification(text)); err != nil {
		return fmt.Errorf("send test notification: %w", err)
	}

	s.logger.Info("test notification sent", zap.Int64("user_id", userID))
	return nil
}

func (s *Scheduler) Statistics(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		PerCadence:   make(map[models.Frequency]int),
		Running:      s.Running(),
		JobsSurfaced: s.jobsSurfaced.Load(),
	}

	var err error
	if stats.TotalSubscriptions, err = s.store.CountSubscriptions(ctx, models.SubscriptionFilter{}); err != nil {
		return nil, fmt.Errorf("count subscriptions: %w", err)
	}

	if stats.ActiveSubscriptions, err = s.store.CountSubscriptions(ctx, models.SubscriptionFilter{ActiveOnly: true}); err != nil {
		return nil, fmt.Errorf("count active subscriptions: %w", err)
	}

	for _, freq := range models.Frequencies() {
		n, err := s.store.CountSubscriptions(ctx, models.SubscriptionFilter{ActiveOnly: true, Frequency: freq})
		if err != nil {
			return nil, fmt.Errorf("count %s subscriptions: %w", freq, err)
		}
		stats.PerCadence[freq] = n
	}

	return stats, nil
}

func sortNewestFirst(jobs []models.JobPosting) {
	sort.SliceStable(jobs, func(a, b int) bool {
		if !jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
		}
		return jobs[a].ID > jobs[b].ID
	})
}
