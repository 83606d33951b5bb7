package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/open-job-board/internal/apikey"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ApplyLastUsed moves api_keys.last_used forward to usedAt. It reports false
// when the credential does not exist or already has a later timestamp, so
// redelivered or out-of-order events never move the value backwards.
func (s *Storage) ApplyLastUsed(ctx context.Context, credentialID string, usedAt time.Time) (bool, error) {
	return apikey.AdvanceLastUsed(ctx, s.db, credentialID, usedAt)
}

// PurgeRateLimits deletes rate windows that started before olderThan.
func (s *Storage) PurgeRateLimits(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE window_start < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rate limits: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	s.logger.Debug("Rate limit windows purged",
		slog.Int64("deleted", n),
		slog.Time("older_than", olderThan),
	)

	return n, nil
}
