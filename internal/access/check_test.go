package access

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/lab-access/internal/biometric"
	"github.com/kozaktomas/lab-access/internal/database"
	"github.com/kozaktomas/lab-access/internal/database/mock"
)

func TestCheckAccess_Granted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enrolled := vec(0.1)
	probe := shifted(enrolled, 0.25)
	_, err := f.engine.Enroll(ctx, "A", enrolled, "")
	require.NoError(t, err)
	_, err = f.engine.Grant(ctx, "A", "lab-1", "admin")
	require.NoError(t, err)

	decision, err := f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: probe})
	require.NoError(t, err)

	d, err := biometric.Euclidean{}.Distance(enrolled, probe)
	require.NoError(t, err)

	assert.True(t, decision.Granted())
	assert.Empty(t, decision.Reason)
	require.NotNil(t, decision.Confidence)
	assert.Equal(t, biometric.Confidence(d), *decision.Confidence)
	assert.Equal(t, 75, *decision.Confidence)
	require.NotNil(t, decision.Distance)
	assert.InDelta(t, d, *decision.Distance, 1e-12)

	attempts := f.audit.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, decision.AttemptID, attempts[0].ID)
	assert.Equal(t, database.OutcomeGranted, attempts[0].Outcome)
	assert.Equal(t, "A", attempts[0].MatchedIdentity)
	assert.Empty(t, attempts[0].DenialReason)
}

func TestCheckAccess_NotEnrolled(t *testing.T) {
	f := newFixture(t)

	decision, err := f.engine.CheckAccess(context.Background(), CheckRequest{ClaimedIdentity: "ghost", RoomID: "lab-1", Probe: vec(0.3)})
	require.NoError(t, err)

	assert.Equal(t, database.OutcomeDenied, decision.Outcome)
	assert.Equal(t, ReasonNotEnrolled, decision.Reason)
	assert.Nil(t, decision.Confidence)
	assert.Nil(t, decision.Distance)

	attempts := f.audit.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, ReasonNotEnrolled, attempts[0].DenialReason)
	assert.Equal(t, "ghost", attempts[0].ClaimedIdentity)
	assert.Empty(t, attempts[0].MatchedIdentity)
}

func TestCheckAccess_BiometricMismatch(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Matcher = biometric.NewMatcher(biometric.Euclidean{}, 0.5) })
	ctx := context.Background()

	enrolled := vec(0)
	_, err := f.engine.Enroll(ctx, "A", enrolled, "")
	require.NoError(t, err)
	_, err = f.engine.Grant(ctx, "A", "lab-1", "admin")
	require.NoError(t, err)

	tests := []struct {
		name  string
		delta float32
	}{
		{"exactly at threshold", 0.5},
		{"far away", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: shifted(enrolled, tt.delta)})
			require.NoError(t, err)

			assert.False(t, decision.Granted(), "a grant must not rescue a biometric mismatch")
			assert.Equal(t, ReasonMismatch, decision.Reason)
			assert.Nil(t, decision.Confidence)
			require.NotNil(t, decision.Distance)
			assert.InDelta(t, float64(tt.delta), *decision.Distance, 1e-9)
		})
	}

	attempts := f.audit.Attempts()
	require.Len(t, attempts, 2)
	for _, a := range attempts {
		assert.Equal(t, ReasonMismatch, a.DenialReason)
		assert.Empty(t, a.MatchedIdentity)
		assert.Nil(t, a.Confidence)
	}
}

func TestCheckAccess_NotAuthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Enroll(ctx, "A", vec(0.1), "")
	require.NoError(t, err)

	decision, err := f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "A", RoomID: "lab-9", Probe: vec(0.1)})
	require.NoError(t, err)

	assert.Equal(t, database.OutcomeDenied, decision.Outcome)
	assert.Equal(t, ReasonNotAuthorized, decision.Reason)
	require.NotNil(t, decision.Confidence)
	assert.Equal(t, 100, *decision.Confidence)
	require.Len(t, f.audit.Attempts(), 1)
}

func TestCheckAccess_EndToEnd(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Dim = 128 })
	ctx := context.Background()

	v1 := make([]float32, 128)
	probe := make([]float32, 128)
	for i := range v1 {
		v1[i] = float32(i%10+1) / 10 // 0.1, 0.2, ... 1.0, 0.1, ...
		probe[i] = v1[i] + 0.005
	}

	_, err := f.engine.Enroll(ctx, "U1", v1, "uploads/facial_images/U1.jpg")
	require.NoError(t, err)
	_, err = f.engine.Grant(ctx, "U1", "R1", "admin")
	require.NoError(t, err)

	granted, err := f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "U1", RoomID: "R1", Probe: probe})
	require.NoError(t, err)
	assert.True(t, granted.Granted())
	require.NotNil(t, granted.Confidence)
	assert.GreaterOrEqual(t, *granted.Confidence, 80)

	otherRoom, err := f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "U1", RoomID: "R2", Probe: probe})
	require.NoError(t, err)
	assert.False(t, otherRoom.Granted())
	assert.Equal(t, ReasonNotAuthorized, otherRoom.Reason)

	stranger, err := f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "U2", RoomID: "R1", Probe: probe})
	require.NoError(t, err)
	assert.False(t, stranger.Granted())
	assert.Equal(t, ReasonNotEnrolled, stranger.Reason)

	logs, err := f.engine.QueryLogs(ctx, "", database.Page{})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, stranger.AttemptID, logs[0].ID, "newest first")
	assert.Equal(t, granted.AttemptID, logs[2].ID)

	u1Logs, err := f.engine.QueryLogs(ctx, "U1", database.Page{})
	require.NoError(t, err)
	require.Len(t, u1Logs, 2)
	assert.Equal(t, otherRoom.AttemptID, u1Logs[0].ID)
}

func TestCheckAccess_InvalidInputNotAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CheckRequest
	}{
		{"empty identity", CheckRequest{ClaimedIdentity: " ", RoomID: "lab-1", Probe: vec(0.1)}},
		{"empty room", CheckRequest{ClaimedIdentity: "A", RoomID: "", Probe: vec(0.1)}},
		{"short probe", CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: []float32{0.1, 0.2}}},
		{"nil probe", CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1"}},
		{"nan probe", CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: shifted(vec(0.1), float32(math.NaN()))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CheckAccess(ctx, tt.req)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: []float32{1}})
	require.ErrorIs(t, err, biometric.ErrDimensionMismatch)

	assert.Empty(t, f.audit.Attempts())
}

func TestCheckAccess_DirectoryRejectsUnknownReferences(t *testing.T) {
	dir := mock.NewMockDirectory([]string{"A"}, []string{"lab-1"})
	f := newFixture(t, func(o *Options) { o.Directory = dir })
	ctx := context.Background()

	_, err := f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "B", RoomID: "lab-1", Probe: vec(0.1)})
	require.ErrorIs(t, err, ErrUnknownIdentity)

	_, err = f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "A", RoomID: "lab-2", Probe: vec(0.1)})
	require.ErrorIs(t, err, ErrUnknownRoom)

	assert.Empty(t, f.audit.Attempts())

	decision, err := f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: vec(0.1)})
	require.NoError(t, err)
	assert.Equal(t, ReasonNotEnrolled, decision.Reason)
	assert.Len(t, f.audit.Attempts(), 1)
}

func TestCheckAccess_StoreFailureIsAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Enroll(ctx, "A", vec(0.1), "")
	require.NoError(t, err)
	f.permissions.HasAccessError = errors.New("connection reset")

	decision, err := f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: vec(0.1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, decision.AttemptID)

	attempts := f.audit.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, database.OutcomeDenied, attempts[0].Outcome)
	assert.Equal(t, ReasonInternalError, attempts[0].DenialReason)
}

func TestCheckAccess_TemplateLookupFailureIsAudited(t *testing.T) {
	f := newFixture(t)
	f.templates.GetError = errors.New("timeout")

	_, err := f.engine.CheckAccess(context.Background(), CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: vec(0.1)})
	require.Error(t, err)

	attempts := f.audit.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, ReasonInternalError, attempts[0].DenialReason)
}

func TestCheckAccess_CorruptTemplateDimension(t *testing.T) {
	f := newFixture(t)
	f.templates.AddRecord(database.EnrollmentRecord{Identity: "A", Vector: []float32{0.1, 0.2, 0.3}})

	_, err := f.engine.CheckAccess(context.Background(), CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: vec(0.1)})
	require.ErrorIs(t, err, biometric.ErrDimensionMismatch)
	assert.NotErrorIs(t, err, ErrInvalidInput)

	attempts := f.audit.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, ReasonInternalError, attempts[0].DenialReason)
}

type panickingPermissions struct {
	*mock.MockPermissionStore
}

func (panickingPermissions) HasAccess(context.Context, string, string) (bool, error) {
	panic("nil map")
}

func TestCheckAccess_PanicIsAudited(t *testing.T) {
	templates := mock.NewMockTemplateStore()
	audit := mock.NewMockAuditLog()
	engine := NewEngine(templates, panickingPermissions{mock.NewMockPermissionStore()}, audit, Options{Dim: testDim})
	templates.AddRecord(database.EnrollmentRecord{Identity: "A", Vector: vec(0.1)})

	var err error
	require.NotPanics(t, func() {
		_, err = engine.CheckAccess(context.Background(), CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: vec(0.1)})
	})
	require.Error(t, err)

	attempts := audit.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, ReasonInternalError, attempts[0].DenialReason)
}

func TestCheckAccess_AuditFailureWithholdsDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Enroll(ctx, "A", vec(0.1), "")
	require.NoError(t, err)
	_, err = f.engine.Grant(ctx, "A", "lab-1", "admin")
	require.NoError(t, err)
	f.audit.RecordError = errors.New("disk full")

	decision, err := f.engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: vec(0.1)})
	require.ErrorIs(t, err, ErrAuditFailed)
	assert.Equal(t, Decision{}, decision)
	assert.False(t, decision.Granted())
}

type contextCheckingAudit struct {
	*mock.MockAuditLog
	sawCancelled bool
}

func (a *contextCheckingAudit) Record(ctx context.Context, attempt database.AccessAttempt) error {
	if ctx.Err() != nil {
		a.sawCancelled = true
	}
	return a.MockAuditLog.Record(ctx, attempt)
}

func TestCheckAccess_CancelledRequestStillAudited(t *testing.T) {
	templates := mock.NewMockTemplateStore()
	audit := &contextCheckingAudit{MockAuditLog: mock.NewMockAuditLog()}
	engine := NewEngine(templates, mock.NewMockPermissionStore(), audit, Options{Dim: testDim})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision, err := engine.CheckAccess(ctx, CheckRequest{ClaimedIdentity: "A", RoomID: "lab-1", Probe: vec(0.1)})
	require.NoError(t, err)
	assert.Equal(t, ReasonNotEnrolled, decision.Reason)
	assert.False(t, audit.sawCancelled, "audit write must not inherit the request cancellation")
	assert.Len(t, audit.Attempts(), 1)
}
