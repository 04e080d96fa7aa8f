package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"jobboard-bot/internal/bot/handlers"
	"jobboard-bot/internal/bot/middleware"
	"jobboard-bot/internal/config"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

var commands = []tele.Command{
	{Text: "start", Description: "Главное меню"},
	{Text: "newjob", Description: "Разместить вакансию"},
	{Text: "subscribe", Description: "Подписаться на вакансии"},
	{Text: "search", Description: "Найти вакансию"},
	{Text: "subscriptions", Description: "Мои подписки"},
	{Text: "jobs", Description: "Мои вакансии"},
	{Text: "cancel", Description: "Отменить действие"},
	{Text: "help", Description: "Справка"},
}

// Bot represents Telegram bot
type Bot struct {
	bot     *tele.Bot
	ctx     *handlers.Context
	limiter middleware.RateCounter
	logger  *zap.Logger
}

// NewTelegram creates the telebot client. Outgoing requests are bounded by
// the configured dispatch timeout.
func NewTelegram(cfg *config.Config, logger *zap.Logger) (*tele.Bot, error) {
	pref := tele.Settings{
		Token:  cfg.TelegramToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		Client: &http.Client{Timeout: cfg.DispatchTimeout + 10*time.Second},
		OnError: func(err error, c tele.Context) {
			logger.Error("telegram update failed", zap.Error(err))
		},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return b, nil
}

// New wires handlers and middleware onto b. A nil limiter disables per-user
// rate limiting.
func New(b *tele.Bot, ctx *handlers.Context, limiter middleware.RateCounter, logger *zap.Logger) *Bot {
	bot := &Bot{
		bot:     b,
		ctx:     ctx,
		limiter: limiter,
		logger:  logger,
	}

	bot.setupMiddleware()

	bot.registerHandlers()

	logger.Info("bot initialized successfully")

	return bot
}

func (b *Bot) setupMiddleware() {
	b.bot.Use(middleware.Recovery(b.logger))

	b.bot.Use(middleware.Logger(b.logger))

	if b.limiter != nil {
		b.bot.Use(middleware.RateLimit(b.limiter, b.logger))
	}
}

func (b *Bot) registerHandlers() {
	ctx := b.ctx

	b.bot.Handle("/start", handlers.HandleStart(ctx))
	b.bot.Handle("/help", handlers.HandleHelp(ctx))
	b.bot.Handle("/subscriptions", handlers.HandleSubscriptions(ctx))
	b.bot.Handle("/jobs", handlers.HandleMyJobs(ctx))

	for _, cmd := range []string{"/newjob", "/subscribe", "/search", "/cancel", "/confirm", "/skip"} {
		b.bot.Handle(cmd, handlers.HandleDialogue(ctx))
	}

	b.bot.Handle("/stats", handlers.HandleStats(ctx))
	b.bot.Handle("/testnotify", handlers.HandleTestNotify(ctx))

	b.bot.Handle(tele.OnText, handlers.HandleText(ctx))

	b.bot.Handle(tele.OnCallback, handlers.HandleCallback(ctx))

	b.logger.Info("handlers registered")
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("starting bot...")

	if err := b.bot.SetCommands(commands); err != nil {
		b.logger.Warn("failed to set bot commands", zap.Error(err))
	}

	go b.bot.Start()

	<-ctx.Done()

	b.logger.Info("stopping bot...")
	b.bot.Stop()

	return nil
}
