package apikey

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// advanceLastUsedQuery only ever moves last_used forward, so replayed or
// reordered uses leave the newest timestamp in place.
const advanceLastUsedQuery = `
	UPDATE api_keys
	SET last_used = $2
	WHERE id = $1
	  AND (last_used IS NULL OR last_used < $2)
`

// AdvanceLastUsed sets api_keys.last_used to usedAt unless the stored value
// is already at or past it. It reports whether a row changed, which is false
// for unknown credentials too.
func AdvanceLastUsed(ctx context.Context, db sqlx.ExecerContext, credentialID string, usedAt time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, advanceLastUsedQuery, credentialID, usedAt)
	if err != nil {
		return false, fmt.Errorf("failed to advance last_used: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return n > 0, nil
}
