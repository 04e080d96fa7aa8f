package handlers

import (
	"errors"
	"fmt"

	"jobboard-bot/internal/bot/utils"
	"jobboard-bot/internal/models"
	"jobboard-bot/internal/notify"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const myJobsLimit = 10

// /jobs
func HandleMyJobs(ctx *Context) tele.HandlerFunc {
	return func(c tele.Context) error {
		userID := c.Sender().ID

		dbCtx, cancel := requestContext()
		defer cancel()

		jobs, err := ctx.Store.QueryJobs(dbCtx, models.JobFilter{
			EmployerID: userID,
			OrderBy:    models.OrderCreatedDesc,
			Limit:      myJobsLimit,
		})
		if err != nil {
			ctx.Logger.Error("failed to get user jobs", zap.Int64("user_id", userID), zap.Error(err))
			return c.Send("😔 Ошибка при получении вакансий")
		}

		if len(jobs) == 0 {
			return c.Send(
				"💼 Вы ещё не публиковали вакансий.\n\nРазместите первую: /newjob",
				utils.MainMenuKeyboard(),
			)
		}

		return c.Send(utils.FormatJobList("💼 Ваши вакансии:", jobs), utils.MainMenuKeyboard())
	}
}

func handleJobApply(ctx *Context, c tele.Context, jobID int64) error {
	applicant := c.Sender()

	dbCtx, cancel := requestContext()
	defer cancel()

	job, err := ctx.Store.GetJob(dbCtx, jobID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !job.Active) {
		return c.Respond(&tele.CallbackResponse{Text: "🚫 Вакансия больше не активна"})
	}
	if err != nil {
		ctx.Logger.Error("failed to get job", zap.Int64("job_id", jobID), zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "😔 Ошибка"})
	}

	if job.EmployerID == applicant.ID {
		return c.Respond(&tele.CallbackResponse{Text: "Это ваша вакансия"})
	}

	created, err := ctx.Store.CreateApplication(dbCtx, &models.Application{
		JobID:       job.ID,
		ApplicantID: applicant.ID,
	})
	if err != nil {
		ctx.Logger.Error("failed to create application",
			zap.Int64("job_id", job.ID),
			zap.Int64("user_id", applicant.ID),
			zap.Error(err),
		)
		return c.Respond(&tele.CallbackResponse{Text: "😔 Не удалось отправить отклик"})
	}

	if !created {
		return c.Respond(&tele.CallbackResponse{Text: "Вы уже откликнулись на эту вакансию"})
	}

	ctx.Logger.Info("application created",
		zap.Int64("job_id", job.ID),
		zap.Int64("user_id", applicant.ID),
	)

	if err := ctx.Notifier.Send(dbCtx, job.EmployerID, applicationNotice(job, applicant)); err != nil {
		ctx.Logger.Warn("failed to notify employer",
			zap.Int64("job_id", job.ID),
			zap.Int64("employer_id", job.EmployerID),
			zap.Error(err),
		)
	}

	return c.Respond(&tele.CallbackResponse{Text: "✅ Отклик отправлен"})
}

func applicationNotice(job *models.JobPosting, applicant *tele.User) notify.Message {
	who := applicant.FirstName
	if applicant.Username != "" {
		who = "@" + applicant.Username
	}
	if who == "" {
		who = fmt.Sprintf("пользователь %d", applicant.ID)
	}

	return notify.Message{
		Text: fmt.Sprintf("📨 Новый отклик на вакансию «%s» от %s", job.Title, who),
	}
}
