package access

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kozaktomas/lab-access/internal/database"
)

// EnrollmentStatus describes an identity's template without exposing the vector.
type EnrollmentStatus struct {
	Identity        string
	Enrolled        bool
	SourceReference string
	EnrolledAt      time.Time
	Dim             int
}

// Enroll stores the identity's single template. A second enrollment of the
// same identity fails with database.ErrAlreadyEnrolled and leaves the first
// vector in place.
func (e *Engine) Enroll(ctx context.Context, identity string, vector []float32, sourceRef string) (database.EnrollmentRecord, error) {
	identity, err := normalizeReference("identity", identity)
	if err != nil {
		return database.EnrollmentRecord{}, err
	}
	if err := e.validateProbe(vector); err != nil {
		return database.EnrollmentRecord{}, err
	}
	if err := e.requireKnown(ctx, identity, ""); err != nil {
		return database.EnrollmentRecord{}, err
	}

	rec := database.EnrollmentRecord{
		Identity:        identity,
		Vector:          slices.Clone(vector),
		SourceReference: sourceRef,
		EnrolledAt:      e.now(),
	}

	stored, err := withRetry(ctx, func() (database.EnrollmentRecord, error) {
		return e.templates.Enroll(ctx, rec)
	})
	if err != nil {
		return database.EnrollmentRecord{}, fmt.Errorf("enroll %s: %w", identity, err)
	}

	if e.index != nil {
		e.index.Add(stored)
	}

	e.logger.Info("identity enrolled", "identity", identity, "source", sourceRef)
	return stored, nil
}

// Enrollment reports whether identity has a template.
func (e *Engine) Enrollment(ctx context.Context, identity string) (EnrollmentStatus, error) {
	identity, err := normalizeReference("identity", identity)
	if err != nil {
		return EnrollmentStatus{}, err
	}

	rec, err := e.templates.Get(ctx, identity)
	if err != nil {
		return EnrollmentStatus{}, fmt.Errorf("get enrollment: %w", err)
	}
	if rec == nil {
		return EnrollmentStatus{Identity: identity}, nil
	}
	return EnrollmentStatus{
		Identity:        rec.Identity,
		Enrolled:        true,
		SourceReference: rec.SourceReference,
		EnrolledAt:      rec.EnrolledAt,
		Dim:             len(rec.Vector),
	}, nil
}
