// Package mock provides in-memory implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/kozaktomas/lab-access/internal/database"
)

// MockTemplateStore is an in-memory implementation of database.TemplateStore
type MockTemplateStore struct {
	mu      sync.RWMutex
	records map[string]database.EnrollmentRecord

	// Error injection
	EnrollError error
	GetError    error
	ListError   error
	CountError  error

	// QueuedEnrollErrors are returned by successive Enroll calls, one per call, before EnrollError applies.
	QueuedEnrollErrors []error
}

// NewMockTemplateStore creates a new mock template store
func NewMockTemplateStore() *MockTemplateStore {
	return &MockTemplateStore{
		records: make(map[string]database.EnrollmentRecord),
	}
}

// AddRecord stores a record directly, bypassing the uniqueness check
func (m *MockTemplateStore) AddRecord(rec database.EnrollmentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Vector = slices.Clone(rec.Vector)
	m.records[rec.Identity] = rec
}

// Enroll inserts the record if the identity has none
func (m *MockTemplateStore) Enroll(ctx context.Context, rec database.EnrollmentRecord) (database.EnrollmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.QueuedEnrollErrors) > 0 {
		err := m.QueuedEnrollErrors[0]
		m.QueuedEnrollErrors = m.QueuedEnrollErrors[1:]
		return database.EnrollmentRecord{}, err
	}
	if m.EnrollError != nil {
		return database.EnrollmentRecord{}, m.EnrollError
	}

	if _, ok := m.records[rec.Identity]; ok {
		return database.EnrollmentRecord{}, database.ErrAlreadyEnrolled
	}
	rec.Vector = slices.Clone(rec.Vector)
	m.records[rec.Identity] = rec
	return rec, nil
}

// Get retrieves a record by identity
func (m *MockTemplateStore) Get(ctx context.Context, identity string) (*database.EnrollmentRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[identity]
	if !ok {
		return nil, nil
	}
	rec.Vector = slices.Clone(rec.Vector)
	return &rec, nil
}

// ListRecords returns a keyset page ordered by identity
func (m *MockTemplateStore) ListRecords(ctx context.Context, afterIdentity string, limit int) ([]database.EnrollmentRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		if k > afterIdentity {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]database.EnrollmentRecord, 0, len(keys))
	for _, k := range keys {
		rec := m.records[k]
		rec.Vector = slices.Clone(rec.Vector)
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of enrolled identities
func (m *MockTemplateStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

type grantKey struct {
	identity string
	roomID   string
}

// MockPermissionStore is an in-memory implementation of database.PermissionStore
type MockPermissionStore struct {
	mu     sync.RWMutex
	grants map[grantKey]database.PermissionGrant

	// Error injection
	GrantError     error
	HasAccessError error
	ListError      error
}

// NewMockPermissionStore creates a new mock permission store
func NewMockPermissionStore() *MockPermissionStore {
	return &MockPermissionStore{
		grants: make(map[grantKey]database.PermissionGrant),
	}
}

// Grant stores a grant unless one exists for (identity, room)
func (m *MockPermissionStore) Grant(ctx context.Context, grant database.PermissionGrant) (database.PermissionGrant, error) {
	if m.GrantError != nil {
		return database.PermissionGrant{}, m.GrantError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := grantKey{grant.Identity, grant.RoomID}
	if _, ok := m.grants[key]; ok {
		return database.PermissionGrant{}, database.ErrAlreadyGranted
	}
	m.grants[key] = grant
	return grant, nil
}

// HasAccess checks whether a grant exists
func (m *MockPermissionStore) HasAccess(ctx context.Context, identity, roomID string) (bool, error) {
	if m.HasAccessError != nil {
		return false, m.HasAccessError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.grants[grantKey{identity, roomID}]
	return ok, nil
}

// ListForIdentity returns the grants of identity ordered by grant time, then room
func (m *MockPermissionStore) ListForIdentity(ctx context.Context, identity string) ([]database.PermissionGrant, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.PermissionGrant
	for k, g := range m.grants {
		if k.identity == identity {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GrantedAt.Equal(out[j].GrantedAt) {
			return out[i].GrantedAt.Before(out[j].GrantedAt)
		}
		return out[i].RoomID < out[j].RoomID
	})
	return out, nil
}

// MockAuditLog is an in-memory implementation of database.AuditLog
type MockAuditLog struct {
	mu       sync.RWMutex
	attempts []database.AccessAttempt

	// Error injection
	RecordError error
	ListError   error
}

// NewMockAuditLog creates a new mock audit log
func NewMockAuditLog() *MockAuditLog {
	return &MockAuditLog{}
}

// Record appends an attempt
func (m *MockAuditLog) Record(ctx context.Context, attempt database.AccessAttempt) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

// Attempts returns a copy of every recorded attempt in insertion order
func (m *MockAuditLog) Attempts() []database.AccessAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.attempts)
}

// ListForIdentity returns attempts claiming identity, newest first
func (m *MockAuditLog) ListForIdentity(ctx context.Context, identity string, page database.Page) ([]database.AccessAttempt, error) {
	return m.list(page, func(a database.AccessAttempt) bool { return a.ClaimedIdentity == identity })
}

// ListAll returns all attempts, newest first
func (m *MockAuditLog) ListAll(ctx context.Context, page database.Page) ([]database.AccessAttempt, error) {
	return m.list(page, func(database.AccessAttempt) bool { return true })
}

func (m *MockAuditLog) list(page database.Page, keep func(database.AccessAttempt) bool) ([]database.AccessAttempt, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	page = page.Normalize()

	m.mu.RLock()
	var out []database.AccessAttempt
	for _, a := range m.attempts {
		if keep(a) {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})

	if page.Offset >= len(out) {
		return nil, nil
	}
	out = out[page.Offset:]
	if len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

// MockDirectory is an in-memory implementation of database.Directory
type MockDirectory struct {
	Users map[string]bool
	Rooms map[string]bool

	// Error injection
	Error error
}

// NewMockDirectory creates a directory knowing the given users and rooms
func NewMockDirectory(users, rooms []string) *MockDirectory {
	d := &MockDirectory{Users: map[string]bool{}, Rooms: map[string]bool{}}
	for _, u := range users {
		d.Users[u] = true
	}
	for _, r := range rooms {
		d.Rooms[strings.TrimSpace(r)] = true
	}
	return d
}

// UserExists reports whether identity is known
func (d *MockDirectory) UserExists(ctx context.Context, identity string) (bool, error) {
	if d.Error != nil {
		return false, d.Error
	}
	return d.Users[identity], nil
}

// RoomExists reports whether roomID is known
func (d *MockDirectory) RoomExists(ctx context.Context, roomID string) (bool, error) {
	if d.Error != nil {
		return false, d.Error
	}
	return d.Rooms[roomID], nil
}
