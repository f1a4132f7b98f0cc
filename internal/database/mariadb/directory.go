package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Room is a laboratory as listed in the campus directory.
type Room struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int    `json:"capacity"`
}

// UserExists reports whether the directory knows the identity.
func (p *Pool) UserExists(ctx context.Context, identity string) (bool, error) {
	return p.exists(ctx, "SELECT 1 FROM users WHERE id = ? LIMIT 1", identity)
}

// RoomExists reports whether the directory knows the laboratory.
func (p *Pool) RoomExists(ctx context.Context, roomID string) (bool, error) {
	return p.exists(ctx, "SELECT 1 FROM laboratories WHERE id = ? LIMIT 1", roomID)
}

func (p *Pool) exists(ctx context.Context, query, id string) (bool, error) {
	var one int
	err := p.db.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("directory lookup: %w", err)
	}
	return true, nil
}

// RoomByID returns the laboratory with the given id, or nil if the directory
// does not list it.
func (p *Pool) RoomByID(ctx context.Context, roomID string) (*Room, error) {
	var (
		r        Room
		location sql.NullString
		capacity sql.NullInt64
	)
	err := p.db.QueryRowContext(ctx,
		"SELECT id, name, location, capacity FROM laboratories WHERE id = ? LIMIT 1", roomID,
	).Scan(&r.ID, &r.Name, &location, &capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load laboratory %s: %w", roomID, err)
	}
	r.Location = location.String
	r.Capacity = int(capacity.Int64)
	return &r, nil
}

// FindRoomsByName returns laboratories whose name contains name, ignoring case
// and diacritics ("Biochemie" matches "biochémie").
func (p *Pool) FindRoomsByName(ctx context.Context, name string) ([]Room, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, location, capacity FROM laboratories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query laboratories: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var (
			r        Room
			location sql.NullString
			capacity sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Name, &location, &capacity); err != nil {
			return nil, fmt.Errorf("scan laboratory: %w", err)
		}
		r.Location = location.String
		r.Capacity = int(capacity.Int64)
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate laboratories: %w", err)
	}

	return filterRooms(rooms, name), nil
}

func filterRooms(rooms []Room, name string) []Room {
	needle := NormalizeName(name)
	if strings.TrimSpace(needle) == "" {
		return rooms
	}
	var out []Room
	for _, r := range rooms {
		if strings.Contains(NormalizeName(r.Name), needle) {
			out = append(out, r)
		}
	}
	return out
}
