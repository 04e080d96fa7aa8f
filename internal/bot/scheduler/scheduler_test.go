package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"jobboard-bot/internal/clock"
	"jobboard-bot/internal/config"
	"jobboard-bot/internal/models"
	"jobboard-bot/internal/notify"
	"jobboard-bot/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Monday, one minute before the daily trigger.
var epoch = time.Date(2024, 3, 4, 8, 59, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	rec   *notify.Recorder
	clk   *clock.FakeClock
	sched *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.Fake(epoch)
	store := memory.New(clk)
	rec := notify.NewRecorder()

	sched, err := New(store, rec, clk, config.Default().Schedule, zap.NewNop())
	require.NoError(t, err)

	return &fixture{store: store, rec: rec, clk: clk, sched: sched}
}

func (f *fixture) addJob(t *testing.T, title string, age time.Duration) *models.JobPosting {
	t.Helper()

	job := &models.JobPosting{
		EmployerID: 900,
		Title:      title,
		Company:    "Acme",
		Location:   "Москва",
		Active:     true,
		CreatedAt:  f.clk.Now().Add(-age),
	}
	require.NoError(t, f.store.SaveJob(context.Background(), job))
	return job
}

func (f *fixture) addSub(t *testing.T, userID int64, freq models.Frequency, keywords string) *models.Subscription {
	t.Helper()

	sub := models.NewSubscription(userID, keywords, freq)
	sub.Keywords = keywords
	require.NoError(t, f.store.SaveSubscription(context.Background(), sub))
	return sub
}

// useDispatcher rebuilds the scheduler around d. Call before moving the
// clock.
func (f *fixture) useDispatcher(t *testing.T, d notify.Dispatcher) {
	t.Helper()

	sched, err := New(f.store, d, f.clk, config.Default().Schedule, zap.NewNop())
	require.NoError(t, err)
	f.sched = sched
}

// sendHook runs fn before handing each message to the recorder.
type sendHook struct {
	*notify.Recorder
	fn func(recipientID int64)
}

func (h *sendHook) Send(ctx context.Context, recipientID int64, msg notify.Message) error {
	if h.fn != nil {
		h.fn(recipientID)
	}
	return h.Recorder.Send(ctx, recipientID, msg)
}

func (f *fixture) reload(t *testing.T, id int64) *models.Subscription {
	t.Helper()

	sub, err := f.store.GetSubscription(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func TestNewComputesNextRuns(t *testing.T) {
	f := newFixture(t)

	tests := map[string]time.Time{
		TriggerImmediate: epoch.Add(5 * time.Minute),
		TriggerDaily:     time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		TriggerWeekly:    time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		TriggerCleanup:   time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC),
	}

	for name, want := range tests {
		next, ok := f.sched.NextRun(name)
		require.True(t, ok, name)
		assert.Equal(t, want, next, name)
	}

	_, ok := f.sched.NextRun("hourly")
	assert.False(t, ok)
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	clk := clock.Fake(epoch)
	cfg := config.Default().Schedule
	cfg.Weekly = "every monday"

	_, err := New(memory.New(clk), notify.NewRecorder(), clk, cfg, zap.NewNop())
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestRunPendingFiresOnlyDueTriggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Empty(t, f.sched.RunPending(ctx))

	f.clk.Advance(time.Minute)
	assert.Equal(t, []string{TriggerDaily}, f.sched.RunPending(ctx))
	assert.Empty(t, f.sched.RunPending(ctx))

	next, _ := f.sched.NextRun(TriggerDaily)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), next)

	f.clk.Advance(4 * time.Minute)
	assert.Equal(t, []string{TriggerImmediate}, f.sched.RunPending(ctx))

	next, _ = f.sched.NextRun(TriggerImmediate)
	assert.Equal(t, epoch.Add(10*time.Minute), next)
}

func TestDailyDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.addSub(t, 1, models.FrequencyDaily, "golang")

	var newest int64
	for i := 0; i < 7; i++ {
		job := f.addJob(t, fmt.Sprintf("Golang developer %d", i), time.Duration(i+1)*time.Hour)
		if job.ID > newest {
			newest = job.ID
		}
	}
	f.addJob(t, "Golang lead", 30*time.Hour)
	f.addJob(t, "Java developer", time.Hour)

	f.clk.Advance(time.Minute)
	f.sched.RunPending(ctx)

	sent := f.rec.SentTo(1)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "«golang»: 7")
	assert.Contains(t, sent[0].Text, "1. Golang developer 0")
	assert.Contains(t, sent[0].Text, "…и ещё 2 вакансии")
	assert.NotContains(t, sent[0].Text, "Golang lead")

	stored := f.reload(t, sub.ID)
	assert.Equal(t, 1, stored.NotificationsSent)
	assert.Equal(t, 7, stored.JobsFound)
	require.NotNil(t, stored.LastNotifiedAt)
	assert.Equal(t, f.clk.Now(), *stored.LastNotifiedAt)
	require.NotNil(t, stored.LastNotifiedJobID)
	assert.Equal(t, newest, *stored.LastNotifiedJobID)

	stats, err := f.sched.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.JobsSurfaced)
}

func TestMaxPerDayTruncatesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := models.NewSubscription(1, "go", models.FrequencyDaily)
	sub.Keywords = "go"
	sub.MaxPerDay = 2
	require.NoError(t, f.store.SaveSubscription(ctx, sub))

	oldest := f.addJob(t, "go 1", 5*time.Hour)
	middle := f.addJob(t, "go 2", 3*time.Hour)
	newest := f.addJob(t, "go 3", time.Hour)

	f.clk.Advance(time.Minute)
	f.sched.RunPending(ctx)

	sent := f.rec.SentTo(1)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "1. go 3")
	assert.Contains(t, sent[0].Text, "2. go 2")
	assert.NotContains(t, sent[0].Text, "go 1")

	ids, err := f.store.UnnotifiedJobIDs(ctx, 1, []int64{oldest.ID, middle.ID, newest.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{oldest.ID}, ids)
}

func TestSingleJobNotification(t *testing.T) {
	f := newFixture(t)

	f.addSub(t, 1, models.FrequencyDaily, "rust")
	job := f.addJob(t, "Rust engineer", time.Hour)

	f.clk.Advance(time.Minute)
	f.sched.RunPending(context.Background())

	sent := f.rec.SentTo(1)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Новая вакансия по подписке")
	assert.Equal(t, fmt.Sprintf("job_apply:%d", job.ID), sent[0].Buttons[0].Data)
}

func TestDailyNotDueWithinADay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := models.NewSubscription(1, "go", models.FrequencyDaily)
	last := epoch.Add(-23 * time.Hour)
	sub.LastNotifiedAt = &last
	require.NoError(t, f.store.SaveSubscription(ctx, sub))
	f.addJob(t, "go", time.Hour)

	f.clk.Advance(time.Minute)
	f.sched.RunPending(ctx)

	assert.Empty(t, f.rec.Sent())
}

func TestImmediateWindowStartsAtLastNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := models.NewSubscription(1, "go", models.FrequencyImmediate)
	last := epoch.Add(-10 * time.Minute)
	sub.LastNotifiedAt = &last
	require.NoError(t, f.store.SaveSubscription(ctx, sub))

	f.addJob(t, "old go job", 20*time.Minute)
	f.addJob(t, "new go job", 5*time.Minute)

	f.clk.Advance(5 * time.Minute)
	assert.Equal(t, []string{TriggerImmediate, TriggerDaily}, f.sched.RunPending(ctx))

	sent := f.rec.SentTo(1)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "new go job")
	assert.NotContains(t, sent[0].Text, "old go job")
}

func TestDailyCadenceIgnoresWakeUpJitter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.addSub(t, 1, models.FrequencyDaily, "go")
	f.addJob(t, "go one", time.Hour)

	f.clk.Set(time.Date(2024, 3, 4, 9, 0, 0, int(2*time.Millisecond), time.UTC))
	assert.Contains(t, f.sched.RunPending(ctx), TriggerDaily)
	require.Len(t, f.rec.SentTo(1), 1)

	f.clk.Set(time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC))
	f.addJob(t, "go two", 0)

	// woke a millisecond earlier than yesterday
	f.clk.Set(time.Date(2024, 3, 5, 9, 0, 0, int(time.Millisecond), time.UTC))
	assert.Contains(t, f.sched.RunPending(ctx), TriggerDaily)

	sent := f.rec.SentTo(1)
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Text, "go two")

	stored := f.reload(t, sub.ID)
	require.NotNil(t, stored.LastNotifiedAt)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), *stored.LastNotifiedAt)
}

func TestNoDuplicateAcrossCadences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addSub(t, 1, models.FrequencyImmediate, "python")
	f.addSub(t, 1, models.FrequencyDaily, "python")
	f.addJob(t, "Python developer", 10*time.Minute)

	f.clk.Advance(time.Minute)
	assert.Equal(t, []string{TriggerDaily}, f.sched.RunPending(ctx))
	require.Len(t, f.rec.SentTo(1), 1)

	f.clk.Advance(4 * time.Minute)
	assert.Equal(t, []string{TriggerImmediate}, f.sched.RunPending(ctx))
	assert.Len(t, f.rec.SentTo(1), 1)
}

func TestDispatchFailureLeavesBookkeeping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	failing := f.addSub(t, 1, models.FrequencyDaily, "go")
	healthy := f.addSub(t, 2, models.FrequencyDaily, "go")
	job := f.addJob(t, "go developer", time.Hour)
	f.rec.Fail[1] = true

	f.clk.Advance(time.Minute)
	f.sched.RunPending(ctx)

	assert.Empty(t, f.rec.SentTo(1))
	assert.Len(t, f.rec.SentTo(2), 1)

	stored := f.reload(t, failing.ID)
	assert.Nil(t, stored.LastNotifiedAt)
	assert.Zero(t, stored.NotificationsSent)

	ids, err := f.store.UnnotifiedJobIDs(ctx, 1, []int64{job.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{job.ID}, ids)

	assert.Equal(t, 1, f.reload(t, healthy.ID).NotificationsSent)

	// the failed subscription is still due on the next pass
	delete(f.rec.Fail, 1)
	f.sched.processFrequency(ctx, models.FrequencyDaily, f.clk.Now(), zap.NewNop())
	assert.Len(t, f.rec.SentTo(1), 1)
	assert.Len(t, f.rec.SentTo(2), 1)
}

func TestJobCreatedDuringDeliveryIsCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	queued := false
	f.useDispatcher(t, &sendHook{Recorder: f.rec, fn: func(int64) {
		if queued {
			return
		}
		queued = true
		f.clk.Advance(time.Minute)
		assert.True(t, f.sched.EnqueueNewJob(f.addJob(t, "go two", 0)))
	}})

	sub := f.addSub(t, 1, models.FrequencyImmediate, "go")
	f.addJob(t, "go one", 10*time.Minute)

	f.clk.Advance(5 * time.Minute)
	f.sched.RunPending(ctx)
	require.Len(t, f.rec.SentTo(1), 1)

	select {
	case job := <-f.sched.newJobs:
		f.sched.notifyQueued(ctx, job)
	default:
		t.Fatal("new job was not queued")
	}

	sent := f.rec.SentTo(1)
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Text, "go two")

	stored := f.reload(t, sub.ID)
	assert.Equal(t, 2, stored.NotificationsSent)
	assert.Equal(t, 2, stored.JobsFound)
	require.NotNil(t, stored.LastNotifiedAt)
	assert.Equal(t, f.clk.Now(), *stored.LastNotifiedAt)
}

func TestPauseDuringDeliveryIsKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var sub *models.Subscription
	f.useDispatcher(t, &sendHook{Recorder: f.rec, fn: func(int64) {
		assert.NoError(t, f.store.SetSubscriptionPaused(ctx, sub.ID, true, f.clk.Now()))
	}})

	sub = f.addSub(t, 1, models.FrequencyDaily, "go")
	f.addJob(t, "go developer", time.Hour)

	f.clk.Advance(time.Minute)
	f.sched.RunPending(ctx)
	require.Len(t, f.rec.SentTo(1), 1)

	stored := f.reload(t, sub.ID)
	assert.True(t, stored.Paused)
	assert.Equal(t, 1, stored.NotificationsSent)
}

func TestDataAccessFailureSkipsSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addSub(t, 1, models.FrequencyDaily, "go")
	f.addJob(t, "go developer", time.Hour)
	f.store.FailOn("UnnotifiedJobIDs", errors.New("connection reset"))

	f.clk.Advance(time.Minute)
	assert.Equal(t, []string{TriggerDaily}, f.sched.RunPending(ctx))
	assert.Empty(t, f.rec.Sent())

	f.store.FailOn("UnnotifiedJobIDs", nil)
	f.store.FailOn("ActiveSubscriptions", errors.New("connection reset"))
	f.clk.Advance(4 * time.Minute)
	assert.Equal(t, []string{TriggerImmediate}, f.sched.RunPending(ctx))
}

type panickingStore struct {
	*memory.Store
}

func (panickingStore) QueryJobs(context.Context, models.JobFilter) ([]models.JobPosting, error) {
	panic("driver bug")
}

func TestPanicInTriggerIsRecovered(t *testing.T) {
	clk := clock.Fake(epoch)
	store := panickingStore{memory.New(clk)}
	rec := notify.NewRecorder()

	sched, err := New(store, rec, clk, config.Default().Schedule, zap.NewNop())
	require.NoError(t, err)

	sub := models.NewSubscription(1, "go", models.FrequencyDaily)
	require.NoError(t, store.SaveSubscription(context.Background(), sub))

	clk.Advance(time.Minute)
	assert.NotPanics(t, func() {
		assert.Equal(t, []string{TriggerDaily}, sched.RunPending(context.Background()))
	})

	next, _ := sched.NextRun(TriggerDaily)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), next)
}

func TestCleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expiry := epoch.Add(time.Hour)
	expiring := models.NewSubscription(1, "old", models.FrequencyDaily)
	expiring.ExpiresAt = &expiry
	require.NoError(t, f.store.SaveSubscription(ctx, expiring))
	keeper := f.addSub(t, 2, models.FrequencyWeekly, "")

	stale := f.addJob(t, "stale", 100*24*time.Hour)
	applied := f.addJob(t, "applied", 100*24*time.Hour)
	recent := f.addJob(t, "recent", 10*24*time.Hour)
	_, err := f.store.CreateApplication(ctx, &models.Application{JobID: applied.ID, ApplicantID: 5})
	require.NoError(t, err)

	require.NoError(t, f.store.MarkJobsNotified(ctx, 2, []int64{recent.ID}, epoch.Add(-40*24*time.Hour)))
	require.NoError(t, f.store.MarkJobsNotified(ctx, 2, []int64{applied.ID}, epoch))

	f.clk.Set(time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC))
	assert.Contains(t, f.sched.RunPending(ctx), TriggerCleanup)

	assert.False(t, f.reload(t, expiring.ID).Active)
	assert.True(t, f.reload(t, keeper.ID).Active)

	for job, active := range map[int64]bool{stale.ID: false, applied.ID: true, recent.ID: true} {
		got, err := f.store.GetJob(ctx, job)
		require.NoError(t, err)
		assert.Equal(t, active, got.Active, job)
	}

	ids, err := f.store.UnnotifiedJobIDs(ctx, 2, []int64{recent.ID, applied.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{recent.ID}, ids)
}

func TestCleanupContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.addJob(t, "stale", 100*24*time.Hour)
	require.NoError(t, f.store.MarkJobsNotified(ctx, 1, []int64{stale.ID}, epoch.Add(-40*24*time.Hour)))
	f.store.FailOn("ExpiredSubscriptions", errors.New("timeout"))
	f.store.FailOn("CountApplications", errors.New("timeout"))

	f.clk.Set(time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC))
	f.sched.RunPending(ctx)

	got, err := f.store.GetJob(ctx, stale.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)

	ids, err := f.store.UnnotifiedJobIDs(ctx, 1, []int64{stale.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{stale.ID}, ids)
}

func TestNotifyNewJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addSub(t, 1, models.FrequencyImmediate, "kotlin")
	f.addSub(t, 2, models.FrequencyImmediate, "swift")
	f.addSub(t, 4, models.FrequencyDaily, "kotlin")
	paused := models.NewSubscription(3, "kotlin", models.FrequencyImmediate)
	paused.Keywords = "kotlin"
	paused.Paused = true
	require.NoError(t, f.store.SaveSubscription(ctx, paused))

	job := f.addJob(t, "Kotlin developer", 0)

	n, err := f.sched.NotifyNewJob(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.rec.SentTo(1), 1)
	assert.Empty(t, f.rec.SentTo(2))
	assert.Empty(t, f.rec.SentTo(3))
	assert.Empty(t, f.rec.SentTo(4))

	n, err = f.sched.NotifyNewJob(ctx, job)
	require.NoError(t, err)
	assert.Zero(t, n)

	// the immediate pass does not repeat it either
	f.clk.Advance(5 * time.Minute)
	f.sched.RunPending(ctx)
	assert.Len(t, f.rec.SentTo(1), 1)
}

func TestLoopEvaluatesQueuedJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.addSub(t, 1, models.FrequencyImmediate, "kotlin")
	require.True(t, f.sched.EnqueueNewJob(f.addJob(t, "Kotlin developer", 0)))

	f.sched.Start(ctx)
	defer f.sched.Stop()

	assert.Eventually(t, func() bool {
		stored, err := f.store.GetSubscription(ctx, sub.ID)
		return err == nil && stored.NotificationsSent == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, f.rec.SentTo(1), 1)
}

func TestEnqueueNewJobQueueFull(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.sched.EnqueueNewJob(nil))

	job := &models.JobPosting{ID: 1, Active: true}
	for i := 0; i < newJobQueueSize; i++ {
		require.True(t, f.sched.EnqueueNewJob(job))
	}
	assert.False(t, f.sched.EnqueueNewJob(job))
}

func TestNotifyNewJobInactive(t *testing.T) {
	f := newFixture(t)

	n, err := f.sched.NotifyNewJob(context.Background(), &models.JobPosting{Title: "x"})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.sched.NotifyNewJob(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotifyNewJobStoreError(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("ActiveSubscriptions", errors.New("timeout"))

	_, err := f.sched.NotifyNewJob(context.Background(), &models.JobPosting{Title: "x", Active: true})
	assert.ErrorIs(t, err, models.ErrDataAccess)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addSub(t, 1, models.FrequencyImmediate, "")
	f.addSub(t, 1, models.FrequencyDaily, "")
	f.addSub(t, 2, models.FrequencyDaily, "")
	paused := models.NewSubscription(3, "p", models.FrequencyWeekly)
	paused.Paused = true
	require.NoError(t, f.store.SaveSubscription(ctx, paused))

	stats, err := f.sched.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalSubscriptions)
	assert.Equal(t, 3, stats.ActiveSubscriptions)
	assert.Equal(t, 1, stats.PerCadence[models.FrequencyImmediate])
	assert.Equal(t, 2, stats.PerCadence[models.FrequencyDaily])
	assert.Equal(t, 0, stats.PerCadence[models.FrequencyWeekly])
	assert.False(t, stats.Running)
	assert.Zero(t, stats.JobsSurfaced)
}

func TestSendTestNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sched.SendTestNotification(ctx, 5, "проверка"))
	sent := f.rec.SentTo(5)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "проверка")

	f.rec.Fail[6] = true
	assert.ErrorIs(t, f.sched.SendTestNotification(ctx, 6, ""), models.ErrDispatch)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)

	f.sched.Start(context.Background())
	f.sched.Start(context.Background())
	assert.True(t, f.sched.Running())

	assert.Eventually(t, func() bool {
		f.clk.Advance(time.Minute)
		next, _ := f.sched.NextRun(TriggerDaily)
		return next.After(epoch.Add(time.Hour))
	}, 2*time.Second, 10*time.Millisecond)

	f.sched.Stop()
	assert.False(t, f.sched.Running())
	f.sched.Stop()
}

func TestStopsWhenContextDone(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.sched.Start(ctx)
	cancel()

	assert.Eventually(t, func() bool { return !f.sched.Running() }, time.Second, 10*time.Millisecond)
}
