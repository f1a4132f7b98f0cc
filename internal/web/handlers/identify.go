package handlers

import (
	"log/slog"
	"net/http"

	"github.com/kozaktomas/lab-access/internal/access"
)

// IdentifyHandler answers "who is this?" without making an access decision.
type IdentifyHandler struct {
	engine    *access.Engine
	extractor FaceExtractor
	logger    *slog.Logger
}

// NewIdentifyHandler creates a new identify handler.
func NewIdentifyHandler(engine *access.Engine, ex FaceExtractor, logger *slog.Logger) *IdentifyHandler {
	return &IdentifyHandler{engine: engine, extractor: ex, logger: logger}
}

// IdentifyResponse is the body of POST /identify.
type IdentifyResponse struct {
	MatchFound bool     `json:"match_found"`
	Identity   string   `json:"identity,omitempty"`
	Confidence *int     `json:"confidence,omitempty"`
	Distance   *float64 `json:"distance,omitempty"` // nil only when nothing is enrolled
	Message    string   `json:"message"`
}

// Identify handles POST /identify with a multipart image.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	image, ok := readUploadedImage(w, r)
	if !ok {
		return
	}
	probe, ok := extractFace(w, r, h.extractor, h.logger, image)
	if !ok {
		return
	}

	res, err := h.engine.Identify(r.Context(), probe)
	if err != nil {
		respondEngineError(w, h.logger, err)
		return
	}

	resp := IdentifyResponse{MatchFound: res.Matched}
	if res.Compared > 0 {
		distance := res.Distance
		resp.Distance = &distance
	}
	switch {
	case res.Matched:
		confidence := res.Confidence
		resp.Identity = res.Identity
		resp.Confidence = &confidence
		resp.Message = "face identified"
	case res.Compared == 0:
		resp.Message = "no faces are enrolled"
	default:
		resp.Message = "no matching face found"
	}
	respondJSON(w, http.StatusOK, resp)
}
