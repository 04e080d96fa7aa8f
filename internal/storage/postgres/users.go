package postgres

import (
	"context"

	"jobboard-bot/internal/models"

	"go.uber.org/zap"
)

// GetOrCreateUser registers the user on first contact and refreshes the
// profile fields afterwards.
func (s *Store) GetOrCreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, username, first_name, last_name, created_at)
		VALUES (?, ?, ?, ?, NOW())
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name
		RETURNING id, username, first_name, last_name, created_at
	`

	var stored models.User
	err := s.sess.
		SelectBySql(query, user.ID, user.Username, user.FirstName, user.LastName).
		LoadOneContext(ctx, &stored)

	if err != nil {
		s.logger.Error("failed to upsert user",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
		return nil, dataErr("get or create user", err)
	}

	s.logger.Debug("user upserted",
		zap.Int64("user_id", stored.ID),
		zap.Stringp("username", stored.Username),
	)

	return &stored, nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int

	err := s.sess.
		Select("COUNT(*)").
		From("users").
		LoadOneContext(ctx, &count)

	if err != nil {
		s.logger.Error("failed to count users", zap.Error(err))
		return 0, dataErr("count users", err)
	}

	return count, nil
}
