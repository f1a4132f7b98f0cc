package database

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyEnrolled is returned when an identity already has an active template.
	ErrAlreadyEnrolled = errors.New("identity already enrolled")

	// ErrAlreadyGranted is returned when the identity already holds a grant for the room.
	ErrAlreadyGranted = errors.New("permission already granted")

	// ErrTransient marks store failures that are safe to retry (serialization, deadlock).
	ErrTransient = errors.New("transient store failure")
)

// TemplateStore holds one enrolled feature vector per identity
type TemplateStore interface {
	// Enroll inserts the record if the identity has none, atomically.
	// Returns ErrAlreadyEnrolled otherwise.
	Enroll(ctx context.Context, rec EnrollmentRecord) (EnrollmentRecord, error)
	// Get retrieves the record for an identity, returns nil if not found
	Get(ctx context.Context, identity string) (*EnrollmentRecord, error)
	// ListRecords returns up to limit records with identity > afterIdentity, ordered by identity.
	// Passing the last identity of a page resumes the scan.
	ListRecords(ctx context.Context, afterIdentity string, limit int) ([]EnrollmentRecord, error)
	// Count returns the total number of enrolled identities
	Count(ctx context.Context) (int, error)
}

// PermissionStore maps identities to the rooms they may enter
type PermissionStore interface {
	// Grant stores a grant, returns ErrAlreadyGranted if one exists for (identity, room)
	Grant(ctx context.Context, grant PermissionGrant) (PermissionGrant, error)
	// HasAccess checks whether a grant exists for (identity, room)
	HasAccess(ctx context.Context, identity, roomID string) (bool, error)
	// ListForIdentity returns all grants of an identity ordered by grant time
	ListForIdentity(ctx context.Context, identity string) ([]PermissionGrant, error)
}

// AuditLog is the append-only record of access decisions.
// No update or delete is exposed.
type AuditLog interface {
	// Record appends one attempt
	Record(ctx context.Context, attempt AccessAttempt) error
	// ListForIdentity returns attempts claiming identity, newest first
	ListForIdentity(ctx context.Context, identity string, page Page) ([]AccessAttempt, error)
	// ListAll returns all attempts, newest first
	ListAll(ctx context.Context, page Page) ([]AccessAttempt, error)
}

// Directory is a read-only view of the people and laboratories managed elsewhere.
type Directory interface {
	UserExists(ctx context.Context, identity string) (bool, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
}
