package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/lab-access/internal/access"
	"github.com/kozaktomas/lab-access/internal/constants"
	"github.com/kozaktomas/lab-access/internal/database"
	"github.com/kozaktomas/lab-access/internal/extractor"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// FaceExtractor turns an uploaded photo into a feature vector.
type FaceExtractor interface {
	Extract(ctx context.Context, image []byte) (extractor.Result, error)
	Health(ctx context.Context) error
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps engine, store and extractor errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, access.ErrInvalidInput), errors.Is(err, extractor.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, access.ErrUnknownIdentity), errors.Is(err, access.ErrUnknownRoom):
		return http.StatusNotFound
	case errors.Is(err, database.ErrAlreadyEnrolled), errors.Is(err, database.ErrAlreadyGranted):
		return http.StatusConflict
	case errors.Is(err, extractor.ErrServer):
		return http.StatusBadGateway
	case errors.Is(err, database.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondEngineError writes err with its mapped status. Client errors echo the
// message; server errors are logged and answered generically.
func respondEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusForError(err)
	if status < http.StatusInternalServerError {
		respondError(w, status, err.Error())
		return
	}

	logger.Error("request failed", "status", status, "error", err)
	switch status {
	case http.StatusBadGateway:
		respondError(w, status, "face embedding server unavailable")
	case http.StatusServiceUnavailable:
		respondError(w, status, "store busy, retry later")
	default:
		respondError(w, status, "internal server error")
	}
}

// readUploadedImage parses a multipart form and returns the bytes of its "image" part.
func readUploadedImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, false
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return nil, false
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "image is empty")
		return nil, false
	}
	return data, true
}

// extractFace runs the extractor and answers non-success outcomes itself.
// Face count outcomes are 422; they never reach the engine.
func extractFace(w http.ResponseWriter, r *http.Request, ex FaceExtractor, logger *slog.Logger, image []byte) ([]float32, bool) {
	res, err := ex.Extract(r.Context(), image)
	if err != nil {
		respondEngineError(w, logger, fmt.Errorf("extract face: %w", err))
		return nil, false
	}
	if !res.OK() {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":       res.Status.Message(),
			"status":      res.Status,
			"faces_count": res.FacesCount,
		})
		return nil, false
	}
	return res.Vector, true
}

// parsePage reads limit and offset query parameters.
func parsePage(r *http.Request) (database.Page, error) {
	var page database.Page
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return page, fmt.Errorf("invalid limit %q", s)
		}
		page.Limit = n
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return page, fmt.Errorf("invalid offset %q", s)
		}
		page.Offset = n
	}
	return page.Normalize(), nil
}
