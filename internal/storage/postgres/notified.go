package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// UnnotifiedJobIDs returns the subset of jobIDs never surfaced to userID,
// in input order.
func (s *Store) UnnotifiedJobIDs(ctx context.Context, userID int64, jobIDs []int64) ([]int64, error) {
	if len(jobIDs) == 0 {
		return []int64{}, nil
	}

	var seen []int64
	_, err := s.sess.
		Select("job_id").
		From("notified_jobs").
		Where("user_id = ? AND job_id = ANY(?::bigint[])", userID, pq.Array(jobIDs)).
		LoadContext(ctx, &seen)

	if err != nil {
		s.logger.Error("failed to get unnotified jobs",
			zap.Int64("user_id", userID),
			zap.Int("total_jobs", len(jobIDs)),
			zap.Error(err),
		)
		return nil, dataErr("unnotified job ids", err)
	}

	seenSet := make(map[int64]struct{}, len(seen))
	for _, id := range seen {
		seenSet[id] = struct{}{}
	}

	unseen := make([]int64, 0, len(jobIDs))
	for _, id := range jobIDs {
		if _, ok := seenSet[id]; !ok {
			unseen = append(unseen, id)
		}
	}

	s.logger.Debug("unnotified jobs",
		zap.Int64("user_id", userID),
		zap.Int("total", len(jobIDs)),
		zap.Int("unseen", len(unseen)),
	)

	return unseen, nil
}

func (s *Store) MarkJobsNotified(ctx context.Context, userID int64, jobIDs []int64, at time.Time) error {
	if len(jobIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO notified_jobs (user_id, job_id, notified_at)
		SELECT ?, unnest(?::bigint[]), ?
		ON CONFLICT (user_id, job_id) DO NOTHING
	`

	_, err := s.sess.
		InsertBySql(query, userID, pq.Array(jobIDs), at).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to mark jobs notified",
			zap.Int64("user_id", userID),
			zap.Int("count", len(jobIDs)),
			zap.Error(err),
		)
		return dataErr("mark jobs notified", err)
	}

	return nil
}

// PruneNotified drops dedup records older than before.
func (s *Store) PruneNotified(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.sess.
		DeleteFrom("notified_jobs").
		Where("notified_at < ?", before).
		ExecContext(ctx)

	if err != nil {
		s.logger.Error("failed to prune notified jobs",
			zap.Time("before", before),
			zap.Error(err),
		)
		return 0, dataErr("prune notified jobs", err)
	}

	rowsAffected, _ := result.RowsAffected()

	s.logger.Info("old notified jobs pruned",
		zap.Time("before", before),
		zap.Int64("count", rowsAffected),
	)

	return rowsAffected, nil
}
