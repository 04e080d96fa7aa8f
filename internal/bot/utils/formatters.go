package utils

import (
	"fmt"
	"strings"

	"jobboard-bot/internal/models"
	"jobboard-bot/internal/notify"
)

const (
	// DigestSize is how many jobs a digest lists before summarizing the rest.
	DigestSize = 5

	descriptionPreview = 500
	buttonTitleLimit   = 40
)

func FormatJob(job *models.JobPosting) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("💼 %s\n\n", job.Title))
	sb.WriteString(fmt.Sprintf("🏢 Компания: %s\n", job.Company))

	location := job.Location
	if location == "" {
		location = "не указано"
	}
	if job.Remote {
		location += " (удалённо)"
	}
	sb.WriteString(fmt.Sprintf("📍 Местоположение: %s\n", location))
	sb.WriteString(fmt.Sprintf("💰 Зарплата: %s\n", job.SalaryRange()))

	if job.Featured {
		sb.WriteString("⭐ Избранная вакансия\n")
	}

	if !job.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("📅 Опубликовано: %s\n", job.CreatedAt.Format("02.01.2006")))
	}

	if job.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(TruncateString(job.Description, descriptionPreview))
	}

	return sb.String()
}

// FormatJobShort is the one-entry form used by digests and lists.
func FormatJobShort(i int, job *models.JobPosting) string {
	line := fmt.Sprintf("%d. %s\n   🏢 %s", i, job.Title, job.Company)
	if job.Location != "" {
		line += " · 📍 " + job.Location
	}
	if job.Remote {
		line += " · удалённо"
	}
	return line + "\n   💰 " + job.SalaryRange() + "\n"
}

// FormatJobNotification renders the message for one subscription delivery:
// a detailed card for a single job, otherwise a digest of the first
// DigestSize jobs with the remainder counted.
func FormatJobNotification(sub *models.Subscription, jobs []models.JobPosting) notify.Message {
	pause := notify.Button{Text: "⏸ Приостановить подписку", Data: CallbackData(ActionSubPause, sub.ID)}

	if len(jobs) == 1 {
		job := &jobs[0]
		return notify.Message{
			Text: fmt.Sprintf("🔔 Новая вакансия по подписке «%s»\n\n%s", sub.Name, FormatJob(job)),
			Buttons: []notify.Button{
				{Text: "✉️ Откликнуться", Data: CallbackData(ActionJobApply, job.ID)},
				pause,
			},
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔔 Новые вакансии по подписке «%s»: %d\n\n", sub.Name, len(jobs)))

	shown := jobs
	if len(shown) > DigestSize {
		shown = shown[:DigestSize]
	}

	buttons := make([]notify.Button, 0, len(shown)+1)
	for i := range shown {
		sb.WriteString(FormatJobShort(i+1, &shown[i]))
		sb.WriteString("\n")
		buttons = append(buttons, notify.Button{
			Text: fmt.Sprintf("✉️ %d. %s", i+1, TruncateString(shown[i].Title, buttonTitleLimit)),
			Data: CallbackData(ActionJobApply, shown[i].ID),
		})
	}

	if rest := len(jobs) - len(shown); rest > 0 {
		sb.WriteString(fmt.Sprintf("…и ещё %d %s\n", rest, pluralJobs(rest)))
	}

	return notify.Message{
		Text:    strings.TrimRight(sb.String(), "\n"),
		Buttons: append(buttons, pause),
	}
}

func FormatTestNotification(text string) notify.Message {
	if text == "" {
		text = "Уведомления работают."
	}
	return notify.Message{Text: "🧪 Тестовое уведомление\n\n" + text}
}

func FormatJobDraft(job *models.JobPosting) string {
	return "Проверьте вакансию:\n\n" + FormatJob(job) + "\n\nНажмите «" + BtnConfirm + "», чтобы опубликовать."
}

func FormatSubscriptionDraft(sub *models.Subscription) string {
	return fmt.Sprintf("Проверьте подписку:\n\n📌 %s\n🔎 %s\n⏰ %s\n\nНажмите «%s», чтобы сохранить.",
		sub.Name, sub.Summary(), sub.Frequency.DisplayName(), BtnConfirm)
}

func FormatSubscription(sub *models.Subscription) string {
	status := "✅ Активна"
	if sub.Paused {
		status = "⏸ Приостановлена"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📌 %s\n", sub.Name))
	sb.WriteString(fmt.Sprintf("🔎 %s\n", sub.Summary()))
	sb.WriteString(fmt.Sprintf("⏰ %s · %s\n", sub.Frequency.DisplayName(), status))
	sb.WriteString(fmt.Sprintf("📨 Отправлено уведомлений: %d, вакансий: %d", sub.NotificationsSent, sub.JobsFound))

	if sub.LastNotifiedAt != nil {
		sb.WriteString(fmt.Sprintf("\n🕒 Последнее: %s", sub.LastNotifiedAt.Format("02.01.2006 15:04")))
	}

	return sb.String()
}

func FormatJobList(title string, jobs []models.JobPosting) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")

	for i := range jobs {
		sb.WriteString(FormatJobShort(i+1, &jobs[i]))
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func FormatWelcomeMessage(firstName string) string {
	name := firstName
	if name == "" {
		name = "друг"
	}

	return fmt.Sprintf(`👋 Привет, %s!

Я бот доски вакансий.

Что я умею:
• Публиковать вакансии
• Присылать новые вакансии по вашим подпискам
• Искать среди свежих вакансий

Выберите действие в меню или отправьте /help`, name)
}

func FormatHelpMessage() string {
	return `📖 Справка

/newjob - разместить вакансию
/subscribe - подписаться на вакансии
/search - найти вакансию
/subscriptions - мои подписки
/jobs - мои вакансии
/cancel - отменить текущее действие
/help - справка

Подписки бывают трёх видов:
🔔 Немедленно - проверка каждые несколько минут
📅 Ежедневно - одна подборка в день
📆 Еженедельно - одна подборка в неделю

В необязательных шагах можно отправить «-» или нажать «` + BtnSkip + `».`
}

func FormatMainMenu() string {
	return "Выберите действие:"
}

// TruncateString cuts s to at most maxLen runes, marking the cut with "...".
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func pluralJobs(n int) string {
	switch {
	case n%10 == 1 && n%100 != 11:
		return "вакансия"
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		return "вакансии"
	default:
		return "вакансий"
	}
}
