package model

import (
	"database/sql/driver"
	"errors"
	"time"

	"github.com/lib/pq"
)

// Credential is an issued API key. Only the hash of the plaintext is stored.
type Credential struct {
	ID         string     `db:"id"`
	KeyHash    string     `db:"key_hash"`
	Name       string     `db:"name"`
	OwnerEmail string     `db:"owner_email"`
	RateLimit  int        `db:"rate_limit"`
	IsActive   bool       `db:"is_active"`
	LastUsed   *time.Time `db:"last_used"`
	CreatedAt  time.Time  `db:"created_at"`
}

// JobRecord is the flat row stored in the jobs table. Nil pointers are stored as NULL.
type JobRecord struct {
	ID               string         `db:"id"`
	Source           string         `db:"source"`
	Reference        *string        `db:"reference"`
	Contact          JSON           `db:"contact"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Responsibilities pq.StringArray `db:"responsibilities"`
	Benefits         pq.StringArray `db:"benefits"`
	EmploymentType   *string        `db:"employment_type"`
	CompanyName      *string        `db:"company_name"`
	CompanyWebsite   *string        `db:"company_website"`
	CompanySector    *string        `db:"company_sector"`
	CompanyAnecdote  *string        `db:"company_anecdote"`
	CompanyLocations pq.StringArray `db:"company_locations"`
	LocationCity     *string        `db:"location_city"`
	LocationCountry  *string        `db:"location_country"`
	RemoteFull       *bool          `db:"remote_full"`
	RemoteDays       *int           `db:"remote_days"`
	Requirements     JSON           `db:"requirements"`
	SalaryCurrency   *string        `db:"salary_currency"`
	SalaryMin        *float64       `db:"salary_min"`
	SalaryMax        *float64       `db:"salary_max"`
	SalaryPeriod     *string        `db:"salary_period"`
	PostedAt         *time.Time     `db:"posted_at"`
	ParsedAt         *time.Time     `db:"parsed_at"`
	CreatedAt        time.Time      `db:"created_at"`
}

// JSON is a raw jsonb column value. An empty JSON is stored as NULL.
type JSON []byte

// Value implements driver.Valuer
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner
func (j *JSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSON(v)
	default:
		return errors.New("model.JSON: unsupported scan type")
	}
	return nil
}
