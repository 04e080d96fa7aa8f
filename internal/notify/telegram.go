package notify

import (
	"context"
	"fmt"

	"jobboard-bot/internal/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v3"
)

// Sender is the part of *tele.Bot used for delivery.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram sends messages through the Bot API, throttled to stay under
// Telegram's global flood limit.
type Telegram struct {
	sender  Sender
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewTelegram(sender Sender, perSecond float64, logger *zap.Logger) *Telegram {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}

	return &Telegram{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:  logger,
	}
}

func (t *Telegram) Send(ctx context.Context, recipientID int64, msg Message) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: wait for send slot: %v", models.ErrDispatch, err)
	}

	opts := []interface{}{tele.NoPreview}
	if markup := inlineMarkup(msg.Buttons); markup != nil {
		opts = append(opts, markup)
	}

	if _, err := t.sender.Send(&tele.User{ID: recipientID}, msg.Text, opts...); err != nil {
		t.logger.Error("failed to send notification",
			zap.Int64("user_id", recipientID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: send to %d: %v", models.ErrDispatch, recipientID, err)
	}

	return nil
}

// inlineMarkup puts every button on its own row.
func inlineMarkup(buttons []Button) *tele.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}

	rows := make([][]tele.InlineButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []tele.InlineButton{{Text: b.Text, Data: b.Data}})
	}

	return &tele.ReplyMarkup{InlineKeyboard: rows}
}
