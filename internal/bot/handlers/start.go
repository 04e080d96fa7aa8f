package handlers

import (
	"jobboard-bot/internal/bot/utils"
	"jobboard-bot/internal/models"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// /start command
func HandleStart(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()

		ctx.Logger.Info("user started bot",
			zap.Int64("user_id", sender.ID),
			zap.String("username", sender.Username),
		)

		dbCtx, cancel := requestContext()
		defer cancel()

		user, err := ctx.Store.GetOrCreateUser(dbCtx, &models.User{
			ID:        sender.ID,
			Username:  stringPtr(sender.Username),
			FirstName: stringPtr(sender.FirstName),
			LastName:  stringPtr(sender.LastName),
		})
		if err != nil {
			ctx.Logger.Error("get or create user failed", zap.Int64("user_id", sender.ID), zap.Error(err))
			return c.Send("😔 Ошибка. Попробуйте позже.")
		}

		// /start always leaves any unfinished dialogue
		if _, err := ctx.Dialogue.Cancel(dbCtx, sender.ID); err != nil {
			ctx.Logger.Warn("failed to reset dialogue", zap.Int64("user_id", sender.ID), zap.Error(err))
		}

		name := ""
		if user.FirstName != nil {
			name = *user.FirstName
		}

		return c.Send(utils.FormatWelcomeMessage(name), utils.MainMenuKeyboard())
	}
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
