// Package access is the access-decision engine: it identifies faces against
// enrolled templates, verifies claimed identities, checks room grants and
// writes every decision to the audit log before returning it.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/kozaktomas/lab-access/internal/biometric"
	"github.com/kozaktomas/lab-access/internal/config"
	"github.com/kozaktomas/lab-access/internal/constants"
	"github.com/kozaktomas/lab-access/internal/database"
)

// Options configures an Engine. Zero values fall back to the euclidean
// metric, a 0.6 threshold, 128 dimensions and the scan strategy.
type Options struct {
	Matcher  biometric.Matcher
	Dim      int
	Strategy string // config.StrategyScan (default) or config.StrategyIndex

	Directory database.Directory      // optional existence checks for identities and rooms
	Index     *database.TemplateIndex // optional candidate index for Identify
	Logger    *slog.Logger

	Now   func() time.Time
	NewID func() string
}

// Engine orchestrates the template, permission and audit stores. It owns no
// persistent state and is safe for concurrent use.
type Engine struct {
	templates   database.TemplateStore
	permissions database.PermissionStore
	audit       database.AuditLog
	directory   database.Directory
	index       *database.TemplateIndex

	matcher  biometric.Matcher
	dim      int
	strategy string
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewEngine creates an engine over the given stores.
func NewEngine(templates database.TemplateStore, permissions database.PermissionStore, audit database.AuditLog, opts Options) *Engine {
	e := &Engine{
		templates:   templates,
		permissions: permissions,
		audit:       audit,
		directory:   opts.Directory,
		index:       opts.Index,
		matcher:     biometric.NewMatcher(opts.Matcher.Metric, opts.Matcher.Threshold),
		dim:         opts.Dim,
		strategy:    opts.Strategy,
		logger:      opts.Logger,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if e.matcher.Threshold <= 0 {
		e.matcher.Threshold = constants.DefaultDistanceThreshold
	}
	if e.dim <= 0 {
		e.dim = constants.DefaultVectorDim
	}
	if e.strategy == "" {
		e.strategy = config.StrategyScan
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "access")
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.newID == nil {
		e.newID = newAttemptID
	}
	return e
}

// Threshold returns the configured match threshold.
func (e *Engine) Threshold() float64 {
	return e.matcher.Threshold
}

// Dim returns the feature vector dimension the engine accepts.
func (e *Engine) Dim() int {
	return e.dim
}

// newAttemptID returns a time-ordered UUIDv7, falling back to a random v4.
func newAttemptID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// normalizeReference trims an identity or room reference and rejects values
// that are empty, too long or contain control characters.
func normalizeReference(kind, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, kind)
	case len(ref) > constants.MaxReferenceLength:
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidInput, kind, constants.MaxReferenceLength)
	case strings.ContainsFunc(ref, unicode.IsControl):
		return "", fmt.Errorf("%w: %s contains control characters", ErrInvalidInput, kind)
	}
	return ref, nil
}

// validateProbe checks a supplied feature vector against the configured dimension.
func (e *Engine) validateProbe(probe []float32) error {
	if len(probe) != e.dim {
		return fmt.Errorf("%w: %w: probe has %d values, expected %d",
			ErrInvalidInput, biometric.ErrDimensionMismatch, len(probe), e.dim)
	}
	for i, v := range probe {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: probe value %d is not finite", ErrInvalidInput, i)
		}
	}
	return nil
}

// requireKnown checks the references against the directory when one is configured.
// Empty references are skipped.
func (e *Engine) requireKnown(ctx context.Context, identity, roomID string) error {
	if e.directory == nil {
		return nil
	}
	if identity != "" {
		ok, err := e.directory.UserExists(ctx, identity)
		if err != nil {
			return fmt.Errorf("directory lookup of identity: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
		}
	}
	if roomID != "" {
		ok, err := e.directory.RoomExists(ctx, roomID)
		if err != nil {
			return fmt.Errorf("directory lookup of room: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRoom, roomID)
		}
	}
	return nil
}

// withRetry runs op again after transient store failures, up to constants.ConflictRetries times.
func withRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, database.ErrTransient) || attempt >= constants.ConflictRetries {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
}
