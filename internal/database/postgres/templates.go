package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/lab-access/internal/database"
)

// TemplateRepository provides PostgreSQL-backed template storage.
type TemplateRepository struct {
	pool *Pool
}

// NewTemplateRepository creates a new PostgreSQL template repository.
func NewTemplateRepository(pool *Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// Enroll inserts the record unless the identity already has one. The unique
// primary key makes the check-then-insert a single atomic statement.
func (r *TemplateRepository) Enroll(ctx context.Context, rec database.EnrollmentRecord) (database.EnrollmentRecord, error) {
	if rec.EnrolledAt.IsZero() {
		rec.EnrolledAt = time.Now().UTC()
	}

	var sourceRef sql.NullString
	if rec.SourceReference != "" {
		sourceRef = sql.NullString{String: rec.SourceReference, Valid: true}
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO enrollments (identity, embedding, dim, source_reference, enrolled_at)
		VALUES ($1, $2::vector, $3, $4, $5)
		ON CONFLICT (identity) DO NOTHING
		RETURNING enrolled_at
	`,
		rec.Identity,
		pgvector.NewVector(rec.Vector),
		len(rec.Vector),
		sourceRef,
		rec.EnrolledAt,
	).Scan(&rec.EnrolledAt)
	switch {
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		return database.EnrollmentRecord{}, database.ErrAlreadyEnrolled
	case err != nil:
		return database.EnrollmentRecord{}, fmt.Errorf("insert enrollment: %w", classify(err))
	}
	return rec, nil
}

// Get retrieves the record for an identity, returns nil if not found
func (r *TemplateRepository) Get(ctx context.Context, identity string) (*database.EnrollmentRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT identity, embedding, source_reference, enrolled_at
		FROM enrollments
		WHERE identity = $1
	`, identity)

	rec, err := scanEnrollment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query enrollment: %w", classify(err))
	}
	return &rec, nil
}

// ListRecords returns up to limit records with identity > afterIdentity ordered by identity.
// Each page is its own statement, so a scan sees every row committed before it
// started and never a partially written one.
func (r *TemplateRepository) ListRecords(ctx context.Context, afterIdentity string, limit int) ([]database.EnrollmentRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT identity, embedding, source_reference, enrolled_at
		FROM enrollments
		WHERE identity > $1
		ORDER BY identity
		LIMIT $2
	`, afterIdentity, limit)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", classify(err))
	}
	defer rows.Close()

	var records []database.EnrollmentRecord
	for rows.Next() {
		rec, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return records, nil
}

// Count returns the total number of enrolled identities
func (r *TemplateRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM enrollments").Scan(&count); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", classify(err))
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner) (database.EnrollmentRecord, error) {
	var (
		rec       database.EnrollmentRecord
		vec       pgvector.Vector
		sourceRef sql.NullString
	)
	if err := row.Scan(&rec.Identity, &vec, &sourceRef, &rec.EnrolledAt); err != nil {
		return database.EnrollmentRecord{}, err //nolint:wrapcheck // callers wrap
	}
	rec.Vector = vec.Slice()
	rec.SourceReference = sourceRef.String
	return rec, nil
}
