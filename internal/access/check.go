package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/lab-access/internal/biometric"
	"github.com/kozaktomas/lab-access/internal/database"
)

// CheckRequest asks whether the person in Probe may enter RoomID as ClaimedIdentity.
type CheckRequest struct {
	ClaimedIdentity string
	RoomID          string
	Probe           []float32
}

// Decision is the audited answer to a CheckRequest. Denials are decisions, not errors.
type Decision struct {
	AttemptID  string
	Outcome    database.Outcome
	Identity   string
	RoomID     string
	Confidence *int     // set once the biometric match succeeded
	Distance   *float64 // set whenever a template was compared
	Reason     string   // set iff denied
	Timestamp  time.Time
}

// Granted reports whether access was granted.
func (d Decision) Granted() bool {
	return d.Outcome == database.OutcomeGranted
}

// CheckAccess verifies the claimed identity against its template, checks the
// room grant and records exactly one audit entry for the attempt.
//
// Malformed input and references unknown to the directory are rejected before
// a decision is attempted and are not audited. Every later exit path is
// audited, including store failures and panics, which are recorded as denied
// with ReasonInternalError and returned as errors. If the audit write fails
// the caller gets ErrAuditFailed and no decision.
func (e *Engine) CheckAccess(ctx context.Context, req CheckRequest) (Decision, error) {
	identity, err := normalizeReference("identity", req.ClaimedIdentity)
	if err != nil {
		return Decision{}, err
	}
	roomID, err := normalizeReference("room", req.RoomID)
	if err != nil {
		return Decision{}, err
	}
	if err := e.validateProbe(req.Probe); err != nil {
		return Decision{}, err
	}
	if err := e.requireKnown(ctx, identity, roomID); err != nil {
		return Decision{}, err
	}

	return e.decide(ctx, identity, roomID, req.Probe)
}

func (e *Engine) decide(ctx context.Context, identity, roomID string, probe []float32) (decision Decision, err error) {
	attempt := database.AccessAttempt{
		ClaimedIdentity: identity,
		RoomID:          roomID,
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("access check panicked: %v", r)
		}
		decision, err = e.record(ctx, attempt, err)
	}()

	rec, err := e.templates.Get(ctx, identity)
	if err != nil {
		return Decision{}, fmt.Errorf("get template: %w", err)
	}
	if rec == nil {
		attempt.Deny(ReasonNotEnrolled)
		return Decision{}, nil
	}

	d, err := e.matcher.Distance(probe, rec.Vector)
	if err != nil {
		if errors.Is(err, biometric.ErrDimensionMismatch) {
			return Decision{}, fmt.Errorf("template of %s does not match the configured dimension: %w", identity, err)
		}
		return Decision{}, fmt.Errorf("measure distance: %w", err)
	}
	attempt.Distance = &d
	if !e.matcher.IsMatch(d) {
		attempt.Deny(ReasonMismatch)
		return Decision{}, nil
	}

	confidence := biometric.Confidence(d)
	attempt.MatchedIdentity = rec.Identity
	attempt.Confidence = &confidence

	allowed, err := e.permissions.HasAccess(ctx, identity, roomID)
	if err != nil {
		return Decision{}, fmt.Errorf("check permission: %w", err)
	}
	if !allowed {
		attempt.Deny(ReasonNotAuthorized)
		return Decision{}, nil
	}

	attempt.Outcome = database.OutcomeGranted
	return Decision{}, nil
}

// record writes the attempt and turns it into the caller's result. decideErr
// is a failure inside the decision; it is audited as an internal error.
func (e *Engine) record(ctx context.Context, attempt database.AccessAttempt, decideErr error) (Decision, error) {
	if decideErr != nil {
		attempt.Deny(ReasonInternalError)
	}
	attempt.ID = e.newID()
	attempt.Timestamp = e.now()

	// The write must finish even when the caller has given up on the request.
	if err := e.audit.Record(context.WithoutCancel(ctx), attempt); err != nil {
		e.logger.Error("audit write failed",
			"attempt_id", attempt.ID,
			"identity", attempt.ClaimedIdentity,
			"room_id", attempt.RoomID,
			"outcome", attempt.Outcome,
			"error", err,
		)
		return Decision{}, errors.Join(fmt.Errorf("%w: %w", ErrAuditFailed, err), decideErr)
	}

	if decideErr != nil {
		e.logger.Error("access check failed",
			"attempt_id", attempt.ID,
			"identity", attempt.ClaimedIdentity,
			"room_id", attempt.RoomID,
			"error", decideErr,
		)
		return Decision{}, decideErr
	}

	e.logger.Info("access decision",
		"attempt_id", attempt.ID,
		"identity", attempt.ClaimedIdentity,
		"room_id", attempt.RoomID,
		"outcome", attempt.Outcome,
		"reason", attempt.DenialReason,
	)

	return Decision{
		AttemptID:  attempt.ID,
		Outcome:    attempt.Outcome,
		Identity:   attempt.ClaimedIdentity,
		RoomID:     attempt.RoomID,
		Confidence: attempt.Confidence,
		Distance:   attempt.Distance,
		Reason:     attempt.DenialReason,
		Timestamp:  attempt.Timestamp,
	}, nil
}
