package handlers

import (
	"jobboard-bot/internal/bot/utils"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// HandleCallback processes all callback queries from inline buttons
func HandleCallback(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			ctx.Logger.Warn("callback is nil")
			return nil
		}

		action, id, err := utils.ParseCallback(cb.Data)
		if err != nil {
			ctx.Logger.Warn("invalid callback format",
				zap.String("data", cb.Data),
				zap.Error(err),
			)
			return c.Respond(&tele.CallbackResponse{Text: "❌ Неверный формат"})
		}

		ctx.Logger.Debug("routing callback",
			zap.String("action", action),
			zap.Int64("id", id),
			zap.Int64("user_id", c.Sender().ID),
		)

		switch action {
		case utils.ActionSubPause:
			return handleSubscriptionToggle(ctx, c, id, true)
		case utils.ActionSubResume:
			return handleSubscriptionToggle(ctx, c, id, false)
		case utils.ActionSubDelete:
			return handleSubscriptionDelete(ctx, c, id)
		case utils.ActionJobApply:
			return handleJobApply(ctx, c, id)
		default:
			ctx.Logger.Warn("unknown callback action",
				zap.String("action", action),
				zap.String("data", cb.Data),
			)
			return c.Respond(&tele.CallbackResponse{Text: "❓ Неизвестное действие"})
		}
	}
}
