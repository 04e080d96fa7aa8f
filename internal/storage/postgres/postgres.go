package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"jobboard-bot/internal/models"

	"github.com/gocraft/dbr/v2"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

type Store struct {
	conn   *dbr.Connection
	sess   *dbr.Session
	logger *zap.Logger
}

func New(dsn string, logger *zap.Logger) (*Store, error) {
	conn, err := dbr.Open("postgres", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", models.ErrDataAccess, err)
	}

	// set up connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: ping database: %w", models.ErrDataAccess, err)
	}

	sess := conn.NewSession(nil)

	logger.Info("successfully connected to PostgreSQL")

	return &Store{
		conn:   conn,
		sess:   sess,
		logger: logger,
	}, nil
}

// Migrate creates missing tables and indexes. Safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		s.logger.Error("failed to apply schema", zap.Error(err))
		return dataErr("apply schema", err)
	}

	s.logger.Info("database schema is up to date")
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// dataErr tags a driver error so callers can match models.ErrDataAccess.
func dataErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrDataAccess, err)
}
