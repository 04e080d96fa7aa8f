package postgres

import (
	"context"
	"time"

	"jobboard-bot/internal/models"

	"github.com/gocraft/dbr/v2"
	"go.uber.org/zap"
)

var jobColumns = []string{
	"employer_id", "title", "description", "company", "location",
	"salary_min", "salary_max", "is_remote", "is_featured", "is_active",
	"created_at", "updated_at",
}

func (s *Store) QueryJobs(ctx context.Context, filter models.JobFilter) ([]models.JobPosting, error) {
	stmt := s.sess.Select("*").From("jobs")

	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	if filter.CreatedSince != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedSince)
	}
	if filter.CreatedBefore != nil {
		stmt = stmt.Where("created_at < ?", *filter.CreatedBefore)
	}
	if filter.EmployerID != 0 {
		stmt = stmt.Where("employer_id = ?", filter.EmployerID)
	}

	if filter.OrderBy == models.OrderCreatedAsc {
		stmt = stmt.OrderAsc("created_at").OrderAsc("id")
	} else {
		stmt = stmt.OrderDesc("created_at").OrderDesc("id")
	}

	if filter.Limit > 0 {
		stmt = stmt.Limit(uint64(filter.Limit))
	}

	var jobs []models.JobPosting
	if _, err := stmt.LoadContext(ctx, &jobs); err != nil {
		s.logger.Error("failed to query jobs", zap.Error(err))
		return nil, dataErr("query jobs", err)
	}

	return jobs, nil
}

func (s *Store) GetJob(ctx context.Context, jobID int64) (*models.JobPosting, error) {
	var job models.JobPosting

	err := s.sess.
		Select("*").
		From("jobs").
		Where("id = ?", jobID).
		LoadOneContext(ctx, &job)

	if err == dbr.ErrNotFound {
		return nil, models.ErrNotFound
	}

	if err != nil {
		s.logger.Error("failed to get job",
			zap.Int64("job_id", jobID),
			zap.Error(err),
		)
		return nil, dataErr("get job", err)
	}

	return &job, nil
}

// SaveJob inserts a new posting (ID == 0) or updates an existing one.
func (s *Store) SaveJob(ctx context.Context, job *models.JobPosting) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if job.ID == 0 {
		err := s.sess.
			InsertInto("jobs").
			Columns(jobColumns...).
			Record(job).
			Returning("id").
			LoadContext(ctx, &job.ID)

		if err != nil {
			s.logger.Error("failed to create job",
				zap.Int64("employer_id", job.EmployerID),
				zap.Error(err),
			)
			return dataErr("create job", err)
		}

		s.logger.Info("job created",
			zap.Int64("job_id", job.ID),
			zap.Int64("employer_id", job.EmployerID),
		)
		return nil
	}

	_, err := s.sess.
		Update("jobs").
		Set("title", job.Title).
		Set("description", job.Description).
		Set("company", job.Company).
		Set("location", job.Location).
		Set("salary_min", job.SalaryMin).
		Set("salary_max", job.SalaryMax).
		Set("is_remote", job.Remote).
		Set("is_featured", job.Featured).
		Set("is_active", job.Active).
		Set("updated_at", job.UpdatedAt).
		Where("id = ?", job.ID).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to update job",
			zap.Int64("job_id", job.ID),
			zap.Error(err),
		)
		return dataErr("update job", err)
	}

	return nil
}

func (s *Store) CountJobs(ctx context.Context, activeOnly bool) (int, error) {
	var count int

	stmt := s.sess.Select("COUNT(*)").From("jobs")
	if activeOnly {
		stmt = stmt.Where("is_active = ?", true)
	}

	if err := stmt.LoadOneContext(ctx, &count); err != nil {
		s.logger.Error("failed to count jobs", zap.Error(err))
		return 0, dataErr("count jobs", err)
	}

	return count, nil
}
