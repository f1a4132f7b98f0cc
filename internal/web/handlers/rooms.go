package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/lab-access/internal/database/mariadb"
)

// unknownRoom labels rooms the directory does not list.
const unknownRoom = "Unknown"

// RoomFinder searches the laboratory directory.
type RoomFinder interface {
	FindRoomsByName(ctx context.Context, name string) ([]mariadb.Room, error)
	RoomByID(ctx context.Context, roomID string) (*mariadb.Room, error)
}

// roomLabels resolves room ids to directory entries once per request. A nil
// finder labels nothing; rooms missing from the directory, or failed lookups,
// get the "Unknown" name.
type roomLabels struct {
	finder RoomFinder
	logger *slog.Logger
	seen   map[string]mariadb.Room
}

func newRoomLabels(finder RoomFinder, logger *slog.Logger) *roomLabels {
	return &roomLabels{finder: finder, logger: logger, seen: make(map[string]mariadb.Room)}
}

// lookup returns the name and location of roomID, or empty strings when no
// directory is configured.
func (l *roomLabels) lookup(ctx context.Context, roomID string) (name, location string) {
	if l.finder == nil || roomID == "" {
		return "", ""
	}
	if room, ok := l.seen[roomID]; ok {
		return room.Name, room.Location
	}

	room := mariadb.Room{ID: roomID, Name: unknownRoom, Location: unknownRoom}
	found, err := l.finder.RoomByID(ctx, roomID)
	switch {
	case err != nil:
		l.logger.Warn("room lookup failed", "room_id", sanitizeForLog(roomID), "error", err)
	case found != nil:
		room = *found
		if room.Location == "" {
			room.Location = unknownRoom
		}
	}
	l.seen[roomID] = room
	return room.Name, room.Location
}

// RoomsHandler lists laboratories from the campus directory.
type RoomsHandler struct {
	rooms  RoomFinder
	logger *slog.Logger
}

// NewRoomsHandler creates a new rooms handler.
func NewRoomsHandler(rooms RoomFinder, logger *slog.Logger) *RoomsHandler {
	return &RoomsHandler{rooms: rooms, logger: logger}
}

// RoomResponse is one laboratory.
type RoomResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	Capacity int    `json:"capacity,omitempty"`
}

// List handles GET /rooms?name=. The name filter ignores case and diacritics.
func (h *RoomsHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.FindRoomsByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		respondEngineError(w, h.logger, err)
		return
	}

	out := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, RoomResponse(room))
	}
	respondJSON(w, http.StatusOK, out)
}
