package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/lab-access/internal/database"
)

// PermissionRepository provides PostgreSQL-backed room grants.
type PermissionRepository struct {
	pool *Pool
}

// NewPermissionRepository creates a new PostgreSQL permission repository.
func NewPermissionRepository(pool *Pool) *PermissionRepository {
	return &PermissionRepository{pool: pool}
}

// Grant stores a grant, returns ErrAlreadyGranted if one exists for (identity, room)
func (r *PermissionRepository) Grant(ctx context.Context, grant database.PermissionGrant) (database.PermissionGrant, error) {
	if grant.GrantedAt.IsZero() {
		grant.GrantedAt = time.Now().UTC()
	}

	var grantedBy sql.NullString
	if grant.GrantedBy != "" {
		grantedBy = sql.NullString{String: grant.GrantedBy, Valid: true}
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (identity, room_id, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity, room_id) DO NOTHING
		RETURNING granted_at
	`, grant.Identity, grant.RoomID, grantedBy, grant.GrantedAt).Scan(&grant.GrantedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		return database.PermissionGrant{}, database.ErrAlreadyGranted
	case err != nil:
		return database.PermissionGrant{}, fmt.Errorf("insert permission: %w", classify(err))
	}
	return grant, nil
}

// HasAccess checks whether a grant exists for (identity, room)
func (r *PermissionRepository) HasAccess(ctx context.Context, identity, roomID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM permissions WHERE identity = $1 AND room_id = $2)",
		identity, roomID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check permission: %w", classify(err))
	}
	return exists, nil
}

// ListForIdentity returns all grants of an identity ordered by grant time
func (r *PermissionRepository) ListForIdentity(ctx context.Context, identity string) ([]database.PermissionGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT identity, room_id, granted_by, granted_at
		FROM permissions
		WHERE identity = $1
		ORDER BY granted_at, room_id
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", classify(err))
	}
	defer rows.Close()

	var grants []database.PermissionGrant
	for rows.Next() {
		var (
			g         database.PermissionGrant
			grantedBy sql.NullString
		)
		if err := rows.Scan(&g.Identity, &g.RoomID, &grantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		g.GrantedBy = grantedBy.String
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return grants, nil
}
