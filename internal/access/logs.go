package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/lab-access/internal/database"
)

// QueryLogs returns audit entries newest first. An empty identity lists every
// attempt; otherwise only attempts claiming that identity.
func (e *Engine) QueryLogs(ctx context.Context, identity string, page database.Page) ([]database.AccessAttempt, error) {
	page = page.Normalize()

	if strings.TrimSpace(identity) == "" {
		attempts, err := e.audit.ListAll(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("list access attempts: %w", err)
		}
		return attempts, nil
	}

	identity, err := normalizeReference("identity", identity)
	if err != nil {
		return nil, err
	}
	attempts, err := e.audit.ListForIdentity(ctx, identity, page)
	if err != nil {
		return nil, fmt.Errorf("list access attempts for %s: %w", identity, err)
	}
	return attempts, nil
}
