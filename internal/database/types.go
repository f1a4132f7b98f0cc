package database

import (
	"time"
)

// Outcome is the result of an access decision.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
)

// EnrollmentRecord is the single biometric template bound to an identity.
type EnrollmentRecord struct {
	Identity        string
	Vector          []float32
	SourceReference string // Where the enrollment image came from (file path, upload name)
	EnrolledAt      time.Time
}

// PermissionGrant allows one identity to enter one room.
type PermissionGrant struct {
	Identity  string
	RoomID    string
	GrantedBy string
	GrantedAt time.Time
}

// AccessAttempt is one immutable audit record of an access decision.
// Empty strings and nil pointers mean the value was not known for the attempt.
type AccessAttempt struct {
	ID              string
	ClaimedIdentity string
	RoomID          string
	MatchedIdentity string
	Distance        *float64
	Confidence      *int
	Outcome         Outcome
	DenialReason    string // Required iff Outcome is denied
	Timestamp       time.Time
}

// Deny marks the attempt as denied for reason.
func (a *AccessAttempt) Deny(reason string) {
	a.Outcome = OutcomeDenied
	a.DenialReason = reason
}

// Page selects a window of a newest-first listing.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default (100) and cap (1000) to the limit and clamps a negative offset.
func (p Page) Normalize() Page {
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	p.Offset = max(p.Offset, 0)
	return p
}
