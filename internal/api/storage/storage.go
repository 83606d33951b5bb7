package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/open-job-board/internal/api/domain"
	"github.com/cuongbtq/open-job-board/internal/api/model"
	"github.com/cuongbtq/open-job-board/internal/apikey"
	"github.com/cuongbtq/open-job-board/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// CreateCredential inserts cred and fills its generated columns.
func (s *Storage) CreateCredential(ctx context.Context, cred *model.Credential) error {
	query := `
		INSERT INTO api_keys (key_hash, name, owner_email, rate_limit)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at
	`

	err := s.db.QueryRowxContext(ctx, query, cred.KeyHash, cred.Name, cred.OwnerEmail, cred.RateLimit).
		Scan(&cred.ID, &cred.IsActive, &cred.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// FindActiveCredentialByHash returns domain.ErrCredentialNotFound when no
// active credential has keyHash.
func (s *Storage) FindActiveCredentialByHash(ctx context.Context, keyHash string) (*model.Credential, error) {
	query := `
		SELECT id, key_hash, name, owner_email, rate_limit, is_active, last_used, created_at
		FROM api_keys
		WHERE key_hash = $1 AND is_active
	`

	var cred model.Credential
	if err := s.db.GetContext(ctx, &cred, query, keyHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	return &cred, nil
}

// TouchCredential moves last_used forward to usedAt. An older usedAt is a no-op.
func (s *Storage) TouchCredential(ctx context.Context, credentialID string, usedAt time.Time) error {
	if _, err := apikey.AdvanceLastUsed(ctx, s.db, credentialID, usedAt); err != nil {
		return fmt.Errorf("failed to touch credential: %w", err)
	}

	return nil
}

// insertJobQuery binds every column of model.JobRecord except the generated ones.
const insertJobQuery = `
	INSERT INTO jobs (
		source, reference, contact, title, description,
		responsibilities, benefits, employment_type,
		company_name, company_website, company_sector, company_anecdote, company_locations,
		location_city, location_country, remote_full, remote_days,
		requirements, salary_currency, salary_min, salary_max, salary_period,
		posted_at, parsed_at
	) VALUES (
		:source, :reference, :contact, :title, :description,
		:responsibilities, :benefits, :employment_type,
		:company_name, :company_website, :company_sector, :company_anecdote, :company_locations,
		:location_city, :location_country, :remote_full, :remote_days,
		:requirements, :salary_currency, :salary_min, :salary_max, :salary_period,
		:posted_at, :parsed_at
	)
	RETURNING id, created_at
`

// InsertJob stores rec and fills its id and created_at. A clash on
// (source, reference) returns domain.ErrDuplicateJob.
func (s *Storage) InsertJob(ctx context.Context, rec *model.JobRecord) error {
	rows, err := s.db.NamedQueryContext(ctx, insertJobQuery, rec)
	if err != nil {
		return classifyInsertError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return classifyInsertError(err)
		}
		return errors.New("failed to insert job: no row returned")
	}

	if err := rows.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return fmt.Errorf("failed to scan inserted job: %w", err)
	}

	return nil
}

// CheckRateLimit records one hit through the check_rate_limit SQL function.
func (s *Storage) CheckRateLimit(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	var allowed bool
	err := s.db.GetContext(ctx, &allowed, `SELECT check_rate_limit($1, $2, $3)`,
		identifier, limit, int(window/time.Second))
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	return allowed, nil
}

func classifyInsertError(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", domain.ErrDuplicateJob, err)
	}
	return fmt.Errorf("failed to insert job: %w", err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
