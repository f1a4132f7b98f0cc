package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/lab-access/internal/database"
)

// Grant allows identity to enter roomID. An existing grant for the pair
// fails with database.ErrAlreadyGranted.
func (e *Engine) Grant(ctx context.Context, identity, roomID, grantedBy string) (database.PermissionGrant, error) {
	identity, err := normalizeReference("identity", identity)
	if err != nil {
		return database.PermissionGrant{}, err
	}
	roomID, err = normalizeReference("room", roomID)
	if err != nil {
		return database.PermissionGrant{}, err
	}
	if strings.TrimSpace(grantedBy) != "" {
		if grantedBy, err = normalizeReference("granted_by", grantedBy); err != nil {
			return database.PermissionGrant{}, err
		}
	}
	if err := e.requireKnown(ctx, identity, roomID); err != nil {
		return database.PermissionGrant{}, err
	}

	grant := database.PermissionGrant{
		Identity:  identity,
		RoomID:    roomID,
		GrantedBy: strings.TrimSpace(grantedBy),
		GrantedAt: e.now(),
	}
	stored, err := withRetry(ctx, func() (database.PermissionGrant, error) {
		return e.permissions.Grant(ctx, grant)
	})
	if err != nil {
		return database.PermissionGrant{}, fmt.Errorf("grant %s access to %s: %w", identity, roomID, err)
	}

	e.logger.Info("permission granted", "identity", identity, "room_id", roomID, "granted_by", stored.GrantedBy)
	return stored, nil
}

// Permissions lists the rooms identity may enter, oldest grant first.
func (e *Engine) Permissions(ctx context.Context, identity string) ([]database.PermissionGrant, error) {
	identity, err := normalizeReference("identity", identity)
	if err != nil {
		return nil, err
	}
	grants, err := e.permissions.ListForIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return grants, nil
}
