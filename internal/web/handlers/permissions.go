package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/lab-access/internal/access"
	"github.com/kozaktomas/lab-access/internal/database"
)

// PermissionsHandler manages room grants.
type PermissionsHandler struct {
	engine *access.Engine
	rooms  RoomFinder // optional, labels grants with the laboratory name and location
	logger *slog.Logger
}

// NewPermissionsHandler creates a new permissions handler. rooms may be nil.
func NewPermissionsHandler(engine *access.Engine, rooms RoomFinder, logger *slog.Logger) *PermissionsHandler {
	return &PermissionsHandler{engine: engine, rooms: rooms, logger: logger}
}

// GrantRequest is the body of POST /permissions.
type GrantRequest struct {
	Identity  string `json:"identity"`
	RoomID    string `json:"room_id"`
	GrantedBy string `json:"granted_by"`
}

// PermissionResponse is one grant.
type PermissionResponse struct {
	Identity     string    `json:"identity"`
	RoomID       string    `json:"room_id"`
	RoomName     string    `json:"room_name,omitempty"`
	RoomLocation string    `json:"room_location,omitempty"`
	GrantedBy    string    `json:"granted_by,omitempty"`
	GrantedAt    time.Time `json:"granted_at"`
}

func permissionResponse(g database.PermissionGrant) PermissionResponse {
	return PermissionResponse{
		Identity:  g.Identity,
		RoomID:    g.RoomID,
		GrantedBy: g.GrantedBy,
		GrantedAt: g.GrantedAt,
	}
}

// Grant handles POST /permissions.
func (h *PermissionsHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	grant, err := h.engine.Grant(r.Context(), req.Identity, req.RoomID, req.GrantedBy)
	if err != nil {
		respondEngineError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, permissionResponse(grant))
}

// List handles GET /permissions/{identity}.
func (h *PermissionsHandler) List(w http.ResponseWriter, r *http.Request) {
	grants, err := h.engine.Permissions(r.Context(), chi.URLParam(r, "identity"))
	if err != nil {
		respondEngineError(w, h.logger, err)
		return
	}

	labels := newRoomLabels(h.rooms, h.logger)
	out := make([]PermissionResponse, 0, len(grants))
	for _, g := range grants {
		resp := permissionResponse(g)
		resp.RoomName, resp.RoomLocation = labels.lookup(r.Context(), g.RoomID)
		out = append(out, resp)
	}
	respondJSON(w, http.StatusOK, out)
}
