package postgres

import (
	"context"

	"jobboard-bot/internal/models"

	"go.uber.org/zap"
)

func (s *Store) CountApplications(ctx context.Context, jobID int64) (int, error) {
	var count int

	err := s.sess.
		Select("COUNT(*)").
		From("applications").
		Where("job_id = ?", jobID).
		LoadOneContext(ctx, &count)

	if err != nil {
		s.logger.Error("failed to count applications",
			zap.Int64("job_id", jobID),
			zap.Error(err),
		)
		return 0, dataErr("count applications", err)
	}

	return count, nil
}

// CreateApplication records an application. A repeated application to the
// same job is ignored and reported with created == false.
func (s *Store) CreateApplication(ctx context.Context, app *models.Application) (bool, error) {
	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}

	query := `
		INSERT INTO applications (job_id, applicant_id, status, created_at)
		VALUES (?, ?, ?, NOW())
		ON CONFLICT (job_id, applicant_id) DO NOTHING
		RETURNING id, created_at
	`

	var ids []models.Application
	_, err := s.sess.
		SelectBySql(query, app.JobID, app.ApplicantID, app.Status).
		LoadContext(ctx, &ids)

	if err != nil {
		s.logger.Error("failed to create application",
			zap.Int64("job_id", app.JobID),
			zap.Int64("applicant_id", app.ApplicantID),
			zap.Error(err),
		)
		return false, dataErr("create application", err)
	}

	if len(ids) == 0 {
		return false, nil
	}

	app.ID = ids[0].ID
	app.CreatedAt = ids[0].CreatedAt

	s.logger.Info("application created",
		zap.Int64("application_id", app.ID),
		zap.Int64("job_id", app.JobID),
		zap.Int64("applicant_id", app.ApplicantID),
	)

	return true, nil
}
