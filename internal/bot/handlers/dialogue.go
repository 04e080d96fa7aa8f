package handlers

import (
	"strings"

	"jobboard-bot/internal/bot/dialogue"
	"jobboard-bot/internal/bot/utils"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// HandleDialogue hands the message to the dialogue machine. Used for the
// flow commands and for any text that is not a menu button.
func HandleDialogue(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		userID := c.Sender().ID

		dbCtx, cancel := requestContext()
		defer cancel()

		reply, err := ctx.Dialogue.HandleInput(dbCtx, userID, c.Text())
		if err != nil {
			ctx.Logger.Error("dialogue input failed",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}

		return sendReply(c, reply)
	}
}

// HandleText processes all text messages
func HandleText(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		switch strings.TrimSpace(c.Text()) {
		case utils.BtnMySubscriptions:
			return HandleSubscriptions(ctx)(c)
		case utils.BtnMyJobs:
			return HandleMyJobs(ctx)(c)
		case utils.BtnHelp:
			return HandleHelp(ctx)(c)
		default:
			return HandleDialogue(ctx)(c)
		}
	}
}

func sendReply(c tele.Context, reply dialogue.Reply) error {
	if markup := utils.Markup(reply.Keyboard); markup != nil {
		return c.Send(reply.Text, markup)
	}
	return c.Send(reply.Text)
}
