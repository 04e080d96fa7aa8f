package utils

import (
	"fmt"
	"strconv"
	"strings"

	"jobboard-bot/internal/models"

	tele "gopkg.in/telebot.v3"
)

// Keyboard selects the reply keyboard shown with a message.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardMainMenu
	KeyboardCancel
	KeyboardSkip
	KeyboardConfirm
	KeyboardFrequency
)

const (
	BtnNewJob          = "➕ Новая вакансия"
	BtnNewSubscription = "🔔 Новая подписка"
	BtnSearch          = "🔍 Поиск"
	BtnMySubscriptions = "📋 Мои подписки"
	BtnMyJobs          = "💼 Мои вакансии"
	BtnHelp            = "❓ Справка"
	BtnCancel          = "❌ Отмена"
	BtnSkip            = "⏭ Пропустить"
	BtnConfirm         = "✅ Создать"
)

// Inline callback actions.
const (
	ActionSubPause  = "sub_pause"
	ActionSubResume = "sub_resume"
	ActionSubDelete = "sub_delete"
	ActionJobApply  = "job_apply"
)

// Markup builds the reply markup for kind. KeyboardNone yields nil.
func Markup(kind Keyboard) *tele.ReplyMarkup {
	switch kind {
	case KeyboardMainMenu:
		return MainMenuKeyboard()
	case KeyboardCancel:
		return CancelKeyboard()
	case KeyboardSkip:
		return SkipKeyboard()
	case KeyboardConfirm:
		return ConfirmKeyboard()
	case KeyboardFrequency:
		return FrequencyKeyboard()
	default:
		return nil
	}
}

func MainMenuKeyboard() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}

	menu.Reply(
		menu.Row(menu.Text(BtnNewJob), menu.Text(BtnNewSubscription)),
		menu.Row(menu.Text(BtnSearch), menu.Text(BtnMySubscriptions)),
		menu.Row(menu.Text(BtnMyJobs), menu.Text(BtnHelp)),
	)

	return menu
}

func CancelKeyboard() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(menu.Row(menu.Text(BtnCancel)))
	return menu
}

func SkipKeyboard() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(
		menu.Row(menu.Text(BtnSkip)),
		menu.Row(menu.Text(BtnCancel)),
	)
	return menu
}

func ConfirmKeyboard() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(menu.Row(menu.Text(BtnConfirm), menu.Text(BtnCancel)))
	return menu
}

func FrequencyKeyboard() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}

	var rows []tele.Row
	for _, f := range models.Frequencies() {
		rows = append(rows, menu.Row(menu.Text(f.DisplayName())))
	}
	rows = append(rows, menu.Row(menu.Text(BtnCancel)))

	menu.Reply(rows...)

	return menu
}

// SubscriptionKeyboard offers pause or resume plus delete for one
// subscription.
func SubscriptionKeyboard(sub *models.Subscription) *tele.ReplyMarkup {
	toggle := tele.InlineButton{Text: "⏸ Приостановить", Data: CallbackData(ActionSubPause, sub.ID)}
	if sub.Paused {
		toggle = tele.InlineButton{Text: "▶️ Возобновить", Data: CallbackData(ActionSubResume, sub.ID)}
	}

	return &tele.ReplyMarkup{
		InlineKeyboard: [][]tele.InlineButton{{
			toggle,
			{Text: "🗑 Удалить", Data: CallbackData(ActionSubDelete, sub.ID)},
		}},
	}
}

func CallbackData(action string, id int64) string {
	return action + ":" + strconv.FormatInt(id, 10)
}

// ParseCallback splits "action:id". telebot may prefix data with \f.
func ParseCallback(data string) (string, int64, error) {
	data = strings.TrimPrefix(data, "\f")

	action, rawID, ok := strings.Cut(data, ":")
	if !ok || action == "" {
		return "", 0, fmt.Errorf("invalid callback data %q", data)
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid callback id %q: %w", rawID, err)
	}

	return action, id, nil
}
