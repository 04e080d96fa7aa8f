package handlers

import (
	"errors"

	"jobboard-bot/internal/bot/utils"
	"jobboard-bot/internal/models"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// /subscriptions
func HandleSubscriptions(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		userID := c.Sender().ID

		dbCtx, cancel := requestContext()
		defer cancel()

		subs, err := ctx.Store.SubscriptionsByUser(dbCtx, userID)
		if err != nil {
			ctx.Logger.Error("failed to get subscriptions", zap.Int64("user_id", userID), zap.Error(err))
			return c.Send("😔 Ошибка при получении подписок")
		}

		if len(subs) == 0 {
			return c.Send(
				"📋 У вас пока нет подписок.\n\nСоздайте первую: /subscribe",
				utils.MainMenuKeyboard(),
			)
		}

		if err := c.Send("📋 Ваши подписки:", utils.MainMenuKeyboard()); err != nil {
			return err
		}

		for i := range subs {
			if err := c.Send(utils.FormatSubscription(&subs[i]), utils.SubscriptionKeyboard(&subs[i])); err != nil {
				return err
			}
		}

		return nil
	}
}

// ownSubscription loads a subscription and checks that it belongs to
// the sender. Someone else's subscription is reported as not found.
func ownSubscription(ctx *Context, c tele.Context, id int64) (*models.Subscription, error) {
	dbCtx, cancel := requestContext()
	defer cancel()

	sub, err := ctx.Store.GetSubscription(dbCtx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != c.Sender().ID {
		return nil, models.ErrNotFound
	}
	return sub, nil
}

func handleSubscriptionToggle(ctx *Context, c tele.Context, id int64, pause bool) error {
	sub, err := ownSubscription(ctx, c, id)
	if err != nil {
		return respondSubscriptionError(ctx, c, id, err)
	}

	dbCtx, cancel := requestContext()
	defer cancel()

	now := ctx.Clock.Now()
	if err := ctx.Store.SetSubscriptionPaused(dbCtx, sub.ID, pause, now); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return respondSubscriptionError(ctx, c, id, err)
		}
		ctx.Logger.Error("failed to save subscription", zap.Int64("subscription_id", id), zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "😔 Ошибка сохранения"})
	}

	if pause {
		sub.Pause(now)
	} else {
		sub.Resume(now)
	}

	if err := c.Edit(utils.FormatSubscription(sub), utils.SubscriptionKeyboard(sub)); err != nil {
		ctx.Logger.Warn("failed to edit message", zap.Error(err))
	}

	text := "▶️ Подписка возобновлена"
	if pause {
		text = "⏸ Подписка приостановлена"
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}

func handleSubscriptionDelete(ctx *Context, c tele.Context, id int64) error {
	sub, err := ownSubscription(ctx, c, id)
	if err != nil {
		return respondSubscriptionError(ctx, c, id, err)
	}

	dbCtx, cancel := requestContext()
	defer cancel()

	if err := ctx.Store.DeleteSubscription(dbCtx, sub.ID); err != nil {
		return respondSubscriptionError(ctx, c, id, err)
	}

	ctx.Logger.Info("subscription deleted",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("user_id", sub.UserID),
	)

	if err := c.Edit("🗑 Подписка «" + sub.Name + "» удалена"); err != nil {
		ctx.Logger.Warn("failed to edit message", zap.Error(err))
	}

	return c.Respond(&tele.CallbackResponse{Text: "🗑 Удалено"})
}

func respondSubscriptionError(ctx *Context, c tele.Context, id int64, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return c.Respond(&tele.CallbackResponse{Text: "🤷 Подписка не найдена"})
	}

	ctx.Logger.Error("subscription callback failed", zap.Int64("subscription_id", id), zap.Error(err))
	return c.Respond(&tele.CallbackResponse{Text: "😔 Ошибка"})
}
