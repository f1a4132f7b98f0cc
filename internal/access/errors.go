package access

import "errors"

var (
	// ErrInvalidInput marks malformed references and unusable probe vectors.
	// Such requests are rejected before any decision and are not audited.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownIdentity is returned when the directory does not know the identity.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrUnknownRoom is returned when the directory does not know the room.
	ErrUnknownRoom = errors.New("unknown room")

	// ErrAuditFailed means a decision was reached but could not be recorded.
	// The decision is withheld from the caller.
	ErrAuditFailed = errors.New("audit log write failed")

	// ErrIndexDisabled is returned by index operations when no template index is configured.
	ErrIndexDisabled = errors.New("template index is not enabled")
)

// Denial reasons recorded in the audit log.
const (
	ReasonNotEnrolled   = "identity not enrolled"
	ReasonMismatch      = "biometric mismatch"
	ReasonNotAuthorized = "not authorized for room"
	ReasonInternalError = "internal error"
)
