package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jobboard-bot/internal/bot"
	"jobboard-bot/internal/bot/dialogue"
	"jobboard-bot/internal/bot/handlers"
	"jobboard-bot/internal/bot/scheduler"
	"jobboard-bot/internal/clock"
	"jobboard-bot/internal/config"
	"jobboard-bot/internal/logger"
	"jobboard-bot/internal/models"
	"jobboard-bot/internal/notify"
	"jobboard-bot/internal/storage/postgres"
	"jobboard-bot/internal/storage/redis"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.String("config", "", "path to YAML config file")
	envFile := pflag.String("env-file", ".env", "path to .env file")
	pflag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("bot stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) (err error) {
	log.Info("starting job board bot",
		zap.String("log_level", cfg.LogLevel),
		zap.String("session_backend", cfg.SessionBackend),
		zap.Duration("poll_interval", cfg.Schedule.PollInterval),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("connecting to PostgreSQL...")
	store, err := postgres.New(cfg.PostgresDSN, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.Info("PostgreSQL connected successfully")

	log.Info("connecting to Redis...")
	cache, err := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cache.Close()) }()
	log.Info("Redis connected successfully")

	clk := clock.Real()

	var sessions dialogue.SessionStore
	switch cfg.SessionBackend {
	case config.SessionBackendMemory:
		sessions = dialogue.NewMemorySessions(clk, cfg.SessionTTL, cfg.MaxSessions)
	case config.SessionBackendRedis:
		sessions = redis.NewSessionStore(cache, cfg.SessionTTL)
	default:
		return fmt.Errorf("%w: unknown session backend %q", models.ErrConfiguration, cfg.SessionBackend)
	}

	log.Info("initializing Telegram bot...")
	tg, err := bot.NewTelegram(cfg, log)
	if err != nil {
		return err
	}

	dispatcher := notify.NewTelegram(tg, cfg.DispatchRate, log)

	sched, err := scheduler.New(store, dispatcher, clk, cfg.Schedule, log)
	if err != nil {
		return err
	}

	machine := dialogue.New(store, sessions, clk, log)
	machine.OnJobCreated(func(_ context.Context, job *models.JobPosting) {
		sched.EnqueueNewJob(job)
	})

	tgBot := bot.New(tg, &handlers.Context{
		Store:     store,
		Dialogue:  machine,
		Scheduler: sched,
		Notifier:  dispatcher,
		Config:    cfg,
		Clock:     clk,
		Logger:    log,
	}, cache, log)

	log.Info("starting notification scheduler...")
	sched.Start(ctx)
	defer sched.Stop()

	log.Info("bot is running...")
	log.Info("press Ctrl+C to stop")

	if err := tgBot.Start(ctx); err != nil {
		return err
	}

	log.Info("shutting down gracefully...")
	return nil
}
