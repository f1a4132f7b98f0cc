package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/lab-access/internal/access"
	"github.com/kozaktomas/lab-access/internal/database"
)

// AccessHandler serves door access checks.
type AccessHandler struct {
	engine    *access.Engine
	extractor FaceExtractor
	logger    *slog.Logger
}

// NewAccessHandler creates a new access handler.
func NewAccessHandler(engine *access.Engine, ex FaceExtractor, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{engine: engine, extractor: ex, logger: logger}
}

// DecisionResponse is the body of POST /access/check.
type DecisionResponse struct {
	AttemptID  string           `json:"attempt_id"`
	Status     database.Outcome `json:"status"`
	Identity   string           `json:"identity"`
	RoomID     string           `json:"room_id"`
	Confidence *int             `json:"confidence,omitempty"`
	Message    string           `json:"message"`
	Reason     string           `json:"reason,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Check handles POST /access/check with multipart fields identity, room_id and image.
// Denials are 200 responses; only failures to decide are errors.
func (h *AccessHandler) Check(w http.ResponseWriter, r *http.Request) {
	image, ok := readUploadedImage(w, r)
	if !ok {
		return
	}
	identity := r.FormValue("identity")
	roomID := r.FormValue("room_id")
	if identity == "" || roomID == "" {
		respondError(w, http.StatusBadRequest, "identity and room_id are required")
		return
	}

	probe, ok := extractFace(w, r, h.extractor, h.logger, image)
	if !ok {
		return
	}

	decision, err := h.engine.CheckAccess(r.Context(), access.CheckRequest{
		ClaimedIdentity: identity,
		RoomID:          roomID,
		Probe:           probe,
	})
	if err != nil {
		respondEngineError(w, h.logger, err)
		return
	}

	message := "access denied"
	if decision.Granted() {
		message = "access granted"
	}
	respondJSON(w, http.StatusOK, DecisionResponse{
		AttemptID:  decision.AttemptID,
		Status:     decision.Outcome,
		Identity:   decision.Identity,
		RoomID:     decision.RoomID,
		Confidence: decision.Confidence,
		Message:    message,
		Reason:     decision.Reason,
		Timestamp:  decision.Timestamp,
	})
}
