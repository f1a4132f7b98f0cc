package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/lab-access/internal/database"
)

// AuditRepository is the PostgreSQL-backed append-only audit log.
// The access_attempts table rejects UPDATE, DELETE and TRUNCATE via triggers.
type AuditRepository struct {
	pool *Pool
}

// NewAuditRepository creates a new PostgreSQL audit repository.
func NewAuditRepository(pool *Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Record appends one attempt
func (r *AuditRepository) Record(ctx context.Context, a database.AccessAttempt) error {
	var distance sql.NullFloat64
	if a.Distance != nil {
		distance = sql.NullFloat64{Float64: *a.Distance, Valid: true}
	}
	var confidence sql.NullInt32
	if a.Confidence != nil {
		confidence = sql.NullInt32{Int32: int32(*a.Confidence), Valid: true} //nolint:gosec // confidence is within [0,100]
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_attempts (
			attempt_id, claimed_identity, room_id, matched_identity,
			distance, confidence, outcome, denial_reason, attempted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		a.ID,
		nullString(a.ClaimedIdentity),
		nullString(a.RoomID),
		nullString(a.MatchedIdentity),
		distance,
		confidence,
		string(a.Outcome),
		nullString(a.DenialReason),
		a.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert access attempt: %w", classify(err))
	}
	return nil
}

// ListForIdentity returns attempts claiming identity, newest first
func (r *AuditRepository) ListForIdentity(ctx context.Context, identity string, page database.Page) ([]database.AccessAttempt, error) {
	page = page.Normalize()
	rows, err := r.pool.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM access_attempts
		WHERE claimed_identity = $1
		ORDER BY attempted_at DESC, attempt_id DESC
		LIMIT $2 OFFSET $3
	`, identity, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list access attempts: %w", classify(err))
	}
	defer rows.Close()
	return scanAttempts(rows)
}

// ListAll returns all attempts, newest first
func (r *AuditRepository) ListAll(ctx context.Context, page database.Page) ([]database.AccessAttempt, error) {
	page = page.Normalize()
	rows, err := r.pool.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM access_attempts
		ORDER BY attempted_at DESC, attempt_id DESC
		LIMIT $1 OFFSET $2
	`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list access attempts: %w", classify(err))
	}
	defer rows.Close()
	return scanAttempts(rows)
}

const attemptColumns = `attempt_id, claimed_identity, room_id, matched_identity,
		       distance, confidence, outcome, denial_reason, attempted_at`

func scanAttempts(rows *sql.Rows) ([]database.AccessAttempt, error) {
	var attempts []database.AccessAttempt
	for rows.Next() {
		var (
			a                              database.AccessAttempt
			claimed, room, matched, reason sql.NullString
			distance                       sql.NullFloat64
			confidence                     sql.NullInt32
			outcome                        string
		)
		if err := rows.Scan(
			&a.ID, &claimed, &room, &matched,
			&distance, &confidence, &outcome, &reason, &a.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan access attempt: %w", err)
		}
		a.ClaimedIdentity = claimed.String
		a.RoomID = room.String
		a.MatchedIdentity = matched.String
		a.Outcome = database.Outcome(outcome)
		a.DenialReason = reason.String
		if distance.Valid {
			d := distance.Float64
			a.Distance = &d
		}
		if confidence.Valid {
			c := int(confidence.Int32)
			a.Confidence = &c
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access attempts: %w", err)
	}
	return attempts, nil
}
