package handlers

import (
	"fmt"
	"strings"

	"jobboard-bot/internal/bot/scheduler"
	"jobboard-bot/internal/models"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// adminOnly hides a command from everyone outside the admin list.
func adminOnly(ctx *Context, next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !ctx.Config.IsAdmin(c.Sender().ID) {
			ctx.Logger.Warn("admin command denied", zap.Int64("user_id", c.Sender().ID))
			return c.Send("⛔ Команда доступна только администраторам")
		}
		return next(c)
	}
}

// /stats
func HandleStats(ctx *Context) tele.HandlerFunc {
	return adminOnly(ctx, func(c tele.Context) error {
		dbCtx, cancel := requestContext()
		defer cancel()

		stats, err := ctx.Scheduler.Statistics(dbCtx)
		if err != nil {
			ctx.Logger.Error("failed to get scheduler statistics", zap.Error(err))
			return c.Send("😔 Ошибка при получении статистики")
		}

		users, err := ctx.Store.CountUsers(dbCtx)
		if err != nil {
			ctx.Logger.Warn("failed to count users", zap.Error(err))
		}

		jobs, err := ctx.Store.CountJobs(dbCtx, true)
		if err != nil {
			ctx.Logger.Warn("failed to count jobs", zap.Error(err))
		}

		return c.Send(formatStats(stats, users, jobs))
	})
}

// /testnotify [text]
func HandleTestNotify(ctx *Context) tele.HandlerFunc {
	return adminOnly(ctx, func(c tele.Context) error {
		dbCtx, cancel := requestContext()
		defer cancel()

		var text string
		if msg := c.Message(); msg != nil {
			text = strings.TrimSpace(msg.Payload)
		}

		if err := ctx.Scheduler.SendTestNotification(dbCtx, c.Sender().ID, text); err != nil {
			ctx.Logger.Error("test notification failed", zap.Error(err))
			return c.Send("😔 Не удалось отправить тестовое уведомление")
		}

		return nil
	})
}

func formatStats(stats *scheduler.Stats, users, activeJobs int) string {
	status := "⏹ остановлен"
	if stats.Running {
		status = "▶️ работает"
	}

	var sb strings.Builder
	sb.WriteString("📊 Статистика\n\n")
	sb.WriteString(fmt.Sprintf("👤 Пользователей: %d\n", users))
	sb.WriteString(fmt.Sprintf("💼 Активных вакансий: %d\n", activeJobs))
	sb.WriteString(fmt.Sprintf("🔔 Подписок: %d (активных: %d)\n", stats.TotalSubscriptions, stats.ActiveSubscriptions))
	for _, freq := range models.Frequencies() {
		sb.WriteString(fmt.Sprintf("   %s: %d\n", freq.DisplayName(), stats.PerCadence[freq]))
	}
	sb.WriteString(fmt.Sprintf("📨 Отправлено вакансий: %d\n", stats.JobsSurfaced))
	sb.WriteString("⏰ Планировщик: " + status)

	return sb.String()
}
