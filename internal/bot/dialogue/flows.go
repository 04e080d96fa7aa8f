package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"jobboard-bot/internal/bot/utils"
	"jobboard-bot/internal/matcher"
	"jobboard-bot/internal/models"

	"go.uber.org/zap"
)

const (
	maxShortText       = 200
	maxDescriptionText = 4000

	// SearchResults caps the jobs listed by one search.
	SearchResults  = 5
	searchLookback = 30 * 24 * time.Hour
)

const (
	promptJobTitle       = "Шаг 1/6: Введите название вакансии"
	promptJobCompany     = "Шаг 2/6: Введите название компании"
	promptJobLocation    = "Шаг 3/6: Введите местоположение\nНапример: Москва, Санкт-Петербург, Удалённо"
	promptJobSalary      = "Шаг 4/6: Введите зарплату\nФормат: от 100000, 100000-150000 или до 200000"
	promptJobDescription = "Шаг 5/6: Введите описание вакансии\nОпишите обязанности, требования и условия работы"

	promptSubName      = "Шаг 1/7: Введите название подписки"
	promptSubKeywords  = "Шаг 2/7: Введите ключевые слова для поиска\nНапример: golang"
	promptSubLocation  = "Шаг 3/7: Введите город или «Удалённо»"
	promptSubSalary    = "Шаг 4/7: Введите минимальную зарплату\nНапример: от 150000"
	promptSubExclude   = "Шаг 5/7: Введите слова-исключения через запятую\nНапример: senior, 1с"
	promptSubFrequency = "Шаг 6/7: Как часто присылать уведомления?"

	promptSearch = "🔍 Введите ключевые слова для поиска"
)

// requireText validates a required free-text answer. A non-empty problem means
// the step is repeated.
func requireText(text string, limit int) (string, string) {
	if text == "" {
		return "", "Ответ не может быть пустым."
	}
	if utf8.RuneCountInString(text) > limit {
		return "", fmt.Sprintf("Слишком длинный ответ, максимум %d символов.", limit)
	}
	return text, ""
}

func reprompt(problem, prompt string, kb utils.Keyboard) Reply {
	return Reply{Text: "⚠️ " + problem + "\n\n" + prompt, Keyboard: kb}
}

func isRemote(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "удал") || strings.Contains(lower, "remote")
}

// Job posting flow

func (m *Machine) jobTitle(_ context.Context, s *models.Session, text string) (Reply, error) {
	title, problem := requireText(text, maxShortText)
	if problem != "" {
		return reprompt(problem, promptJobTitle, utils.KeyboardCancel), nil
	}

	s.Job.Title = title
	s.Step = models.StepCompany
	return Reply{Text: promptJobCompany, Keyboard: utils.KeyboardCancel}, nil
}

func (m *Machine) jobCompany(_ context.Context, s *models.Session, text string) (Reply, error) {
	company, problem := requireText(text, maxShortText)
	if problem != "" {
		return reprompt(problem, promptJobCompany, utils.KeyboardCancel), nil
	}

	s.Job.Company = company
	s.Step = models.StepLocation
	return Reply{Text: promptJobLocation, Keyboard: utils.KeyboardCancel}, nil
}

func (m *Machine) jobLocation(_ context.Context, s *models.Session, text string) (Reply, error) {
	location, problem := requireText(text, maxShortText)
	if problem != "" {
		return reprompt(problem, promptJobLocation, utils.KeyboardCancel), nil
	}

	s.Job.Location = location
	s.Job.Remote = isRemote(location)
	s.Step = models.StepSalary
	return Reply{Text: promptJobSalary, Keyboard: utils.KeyboardSkip}, nil
}

func (m *Machine) jobSalary(_ context.Context, s *models.Session, text string) (Reply, error) {
	s.Job.SalaryMin, s.Job.SalaryMax = nil, nil
	if !isSkip(text) {
		salary := ParseSalary(text)
		s.Job.SalaryMin, s.Job.SalaryMax = salary.Min, salary.Max
	}

	s.Step = models.StepDescription
	return Reply{Text: promptJobDescription, Keyboard: utils.KeyboardCancel}, nil
}

func (m *Machine) jobDescription(_ context.Context, s *models.Session, text string) (Reply, error) {
	description, problem := requireText(text, maxDescriptionText)
	if problem != "" {
		return reprompt(problem, promptJobDescription, utils.KeyboardCancel), nil
	}

	s.Job.Description = description
	s.Step = models.StepConfirm
	return Reply{Text: utils.FormatJobDraft(s.Job), Keyboard: utils.KeyboardConfirm}, nil
}

func (m *Machine) jobConfirm(ctx context.Context, s *models.Session, text string) (Reply, error) {
	if !isConfirm(text) {
		return reprompt("Подтвердите публикацию или отмените.", utils.FormatJobDraft(s.Job), utils.KeyboardConfirm), nil
	}

	job := *s.Job
	job.EmployerID = s.UserID
	job.Active = true

	if err := m.store.SaveJob(ctx, &job); err != nil {
		return Reply{
			Text:     "😔 Не удалось сохранить вакансию. Попробуйте подтвердить ещё раз.",
			Keyboard: utils.KeyboardConfirm,
		}, fmt.Errorf("save job: %w", err)
	}

	finish(s)

	m.logger.Info("job created",
		zap.Int64("job_id", job.ID),
		zap.Int64("employer_id", job.EmployerID),
	)

	if m.onJobCreated != nil {
		m.onJobCreated(ctx, &job)
	}

	return Reply{
		Text:     fmt.Sprintf("✅ Вакансия «%s» опубликована!", job.Title),
		Keyboard: utils.KeyboardMainMenu,
	}, nil
}

// Subscription flow

func (m *Machine) subName(_ context.Context, s *models.Session, text string) (Reply, error) {
	name, problem := requireText(text, maxShortText)
	if problem != "" {
		return reprompt(problem, promptSubName, utils.KeyboardCancel), nil
	}

	s.Subscription.Name = name
	s.Step = models.StepKeywords
	return Reply{Text: promptSubKeywords, Keyboard: utils.KeyboardSkip}, nil
}

func (m *Machine) subKeywords(_ context.Context, s *models.Session, text string) (Reply, error) {
	s.Subscription.Keywords = ""
	if !isSkip(text) {
		keywords, problem := requireText(text, maxShortText)
		if problem != "" {
			return reprompt(problem, promptSubKeywords, utils.KeyboardSkip), nil
		}
		s.Subscription.Keywords = keywords
	}

	s.Step = models.StepLocation
	return Reply{Text: promptSubLocation, Keyboard: utils.KeyboardSkip}, nil
}

func (m *Machine) subLocation(_ context.Context, s *models.Session, text string) (Reply, error) {
	s.Subscription.Location = ""
	s.Subscription.RemoteOnly = false

	if !isSkip(text) {
		location, problem := requireText(text, maxShortText)
		if problem != "" {
			return reprompt(problem, promptSubLocation, utils.KeyboardSkip), nil
		}
		if isRemote(location) {
			s.Subscription.RemoteOnly = true
		} else {
			s.Subscription.Location = location
		}
	}

	s.Step = models.StepSalary
	return Reply{Text: promptSubSalary, Keyboard: utils.KeyboardSkip}, nil
}

func (m *Machine) subSalary(_ context.Context, s *models.Session, text string) (Reply, error) {
	s.Subscription.MinSalary = nil
	if !isSkip(text) {
		s.Subscription.MinSalary = ParseSalary(text).Min
	}

	s.Step = models.StepExclude
	return Reply{Text: promptSubExclude, Keyboard: utils.KeyboardSkip}, nil
}

func (m *Machine) subExclude(_ context.Context, s *models.Session, text string) (Reply, error) {
	s.Subscription.ExcludeKeywords = nil
	if !isSkip(text) {
		s.Subscription.ExcludeKeywords = splitList(text)
	}

	s.Step = models.StepFrequency
	return Reply{Text: promptSubFrequency, Keyboard: utils.KeyboardFrequency}, nil
}

func (m *Machine) subFrequency(_ context.Context, s *models.Session, text string) (Reply, error) {
	freq, err := models.ParseFrequency(text)
	if err != nil {
		return reprompt("Выберите один из вариантов кнопками ниже.", promptSubFrequency, utils.KeyboardFrequency), nil
	}

	s.Subscription.Frequency = freq
	s.Step = models.StepConfirm
	return Reply{Text: utils.FormatSubscriptionDraft(s.Subscription), Keyboard: utils.KeyboardConfirm}, nil
}

func (m *Machine) subConfirm(ctx context.Context, s *models.Session, text string) (Reply, error) {
	if !isConfirm(text) {
		return reprompt("Подтвердите подписку или отмените.", utils.FormatSubscriptionDraft(s.Subscription), utils.KeyboardConfirm), nil
	}

	sub := *s.Subscription
	sub.UserID = s.UserID
	sub.Active = true

	if err := m.store.SaveSubscription(ctx, &sub); err != nil {
		return Reply{
			Text:     "😔 Не удалось сохранить подписку. Попробуйте подтвердить ещё раз.",
			Keyboard: utils.KeyboardConfirm,
		}, fmt.Errorf("save subscription: %w", err)
	}

	finish(s)

	m.logger.Info("subscription created",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("user_id", sub.UserID),
		zap.String("frequency", string(sub.Frequency)),
	)

	return Reply{
		Text:     fmt.Sprintf("✅ Подписка «%s» создана!\n\n%s", sub.Name, utils.FormatSubscription(&sub)),
		Keyboard: utils.KeyboardMainMenu,
	}, nil
}

// Search flow

func (m *Machine) searchQuery(ctx context.Context, s *models.Session, text string) (Reply, error) {
	query, problem := requireText(text, maxShortText)
	if problem != "" {
		return reprompt(problem, promptSearch, utils.KeyboardCancel), nil
	}

	since := m.clock.Now().Add(-searchLookback)
	jobs, err := m.store.QueryJobs(ctx, models.JobFilter{
		ActiveOnly:   true,
		CreatedSince: &since,
		OrderBy:      models.OrderCreatedDesc,
	})
	if err != nil {
		finish(s)
		return failureReply, fmt.Errorf("search jobs: %w", err)
	}

	criteria := &models.Subscription{Keywords: query}
	matched := matcher.Filter(jobs, criteria)

	finish(s)

	if len(matched) == 0 {
		return Reply{
			Text:     fmt.Sprintf("🤷 По запросу «%s» ничего не найдено.", query),
			Keyboard: utils.KeyboardMainMenu,
		}, nil
	}

	shown := matched
	if len(shown) > SearchResults {
		shown = shown[:SearchResults]
	}

	title := fmt.Sprintf("🔍 Найдено по запросу «%s»: %d", query, len(matched))
	return Reply{Text: utils.FormatJobList(title, shown), Keyboard: utils.KeyboardMainMenu}, nil
}

func splitList(text string) models.StringList {
	var out models.StringList
	for _, item := range strings.Split(text, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
