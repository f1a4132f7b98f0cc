package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/lab-access/internal/access"
	"github.com/kozaktomas/lab-access/internal/database"
)

// LogsHandler serves the access audit trail.
type LogsHandler struct {
	engine *access.Engine
	rooms  RoomFinder // optional, labels entries with the laboratory name
	logger *slog.Logger
}

// NewLogsHandler creates a new logs handler. rooms may be nil.
func NewLogsHandler(engine *access.Engine, rooms RoomFinder, logger *slog.Logger) *LogsHandler {
	return &LogsHandler{engine: engine, rooms: rooms, logger: logger}
}

// AttemptResponse is one audit entry.
type AttemptResponse struct {
	ID              string           `json:"id"`
	ClaimedIdentity string           `json:"claimed_identity"`
	RoomID          string           `json:"room_id"`
	RoomName        string           `json:"room_name,omitempty"`
	MatchedIdentity string           `json:"matched_identity,omitempty"`
	Distance        *float64         `json:"distance,omitempty"`
	Confidence      *int             `json:"confidence,omitempty"`
	Status          database.Outcome `json:"status"`
	Reason          string           `json:"reason,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

// List handles GET /logs and GET /logs/{identity}, newest first.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	attempts, err := h.engine.QueryLogs(r.Context(), chi.URLParam(r, "identity"), page)
	if err != nil {
		respondEngineError(w, h.logger, err)
		return
	}

	labels := newRoomLabels(h.rooms, h.logger)
	out := make([]AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		roomName, _ := labels.lookup(r.Context(), a.RoomID)
		out = append(out, AttemptResponse{
			ID:              a.ID,
			ClaimedIdentity: a.ClaimedIdentity,
			RoomID:          a.RoomID,
			RoomName:        roomName,
			MatchedIdentity: a.MatchedIdentity,
			Distance:        a.Distance,
			Confidence:      a.Confidence,
			Status:          a.Outcome,
			Reason:          a.DenialReason,
			Timestamp:       a.Timestamp,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
