package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kozaktomas/lab-access/internal/database"
)

// PostgreSQL SQLSTATE codes the repositories react to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

// classify marks retryable failures with database.ErrTransient and passes others through.
func classify(err error) error {
	switch pqCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", database.ErrTransient, err)
	default:
		return err
	}
}
