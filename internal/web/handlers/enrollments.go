package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/lab-access/internal/access"
	"github.com/kozaktomas/lab-access/internal/constants"
	"github.com/kozaktomas/lab-access/internal/extractor"
)

var safeFileName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// EnrollmentsHandler registers face templates.
type EnrollmentsHandler struct {
	engine    *access.Engine
	extractor FaceExtractor
	uploadDir string
	logger    *slog.Logger
}

// NewEnrollmentsHandler creates a new enrollments handler. Enrollment images
// are kept in uploadDir; an empty uploadDir disables saving them.
func NewEnrollmentsHandler(engine *access.Engine, ex FaceExtractor, uploadDir string, logger *slog.Logger) *EnrollmentsHandler {
	return &EnrollmentsHandler{engine: engine, extractor: ex, uploadDir: uploadDir, logger: logger}
}

// EnrollmentResponse describes an identity's template.
type EnrollmentResponse struct {
	Identity        string     `json:"identity"`
	Enrolled        bool       `json:"enrolled"`
	SourceReference string     `json:"source_reference,omitempty"`
	EnrolledAt      *time.Time `json:"enrolled_at,omitempty"`
	Dim             int        `json:"dim,omitempty"`
}

// ImagePath returns where the enrollment image of identity is stored.
// Identities that are not plain file names are stored under their SHA-256.
func ImagePath(uploadDir, identity string) string {
	name := identity
	if !safeFileName.MatchString(name) {
		sum := sha256.Sum256([]byte(identity))
		name = hex.EncodeToString(sum[:])
	}
	return filepath.Join(uploadDir, name+".jpg")
}

// Create handles POST /enrollments with multipart fields identity and image.
func (h *EnrollmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	image, ok := readUploadedImage(w, r)
	if !ok {
		return
	}
	identity := strings.TrimSpace(r.FormValue("identity"))
	if identity == "" {
		respondError(w, http.StatusBadRequest, "identity is required")
		return
	}

	vector, ok := extractFace(w, r, h.extractor, h.logger, image)
	if !ok {
		return
	}

	var (
		sourceRef string
		tempPath  string
	)
	if h.uploadDir != "" {
		var err error
		tempPath, err = h.stageImage(image)
		if err != nil {
			respondEngineError(w, h.logger, err)
			return
		}
		defer os.Remove(tempPath)
		sourceRef = ImagePath(h.uploadDir, identity)
	}

	rec, err := h.engine.Enroll(r.Context(), identity, vector, sourceRef)
	if err != nil {
		respondEngineError(w, h.logger, err)
		return
	}

	if tempPath != "" {
		if err := os.Rename(tempPath, sourceRef); err != nil {
			// The template is stored; only the reference image is missing.
			h.logger.Error("failed to keep enrollment image",
				"identity", sanitizeForLog(rec.Identity), "path", sourceRef, "error", err)
		}
	}

	enrolledAt := rec.EnrolledAt
	respondJSON(w, http.StatusCreated, EnrollmentResponse{
		Identity:        rec.Identity,
		Enrolled:        true,
		SourceReference: rec.SourceReference,
		EnrolledAt:      &enrolledAt,
		Dim:             len(rec.Vector),
	})
}

// stageImage re-encodes the upload and writes it to a temporary file in uploadDir.
func (h *EnrollmentsHandler) stageImage(image []byte) (string, error) {
	jpegData, err := extractor.ToJPEG(image, 0, constants.EnrollmentJPEGQuality)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	f, err := os.CreateTemp(h.uploadDir, ".enroll-*.jpg")
	if err != nil {
		return "", fmt.Errorf("create enrollment image: %w", err)
	}
	if _, err := f.Write(jpegData); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write enrollment image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write enrollment image: %w", err)
	}
	return f.Name(), nil
}

// Get handles GET /enrollments/{identity}.
func (h *EnrollmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Enrollment(r.Context(), chi.URLParam(r, "identity"))
	if err != nil {
		respondEngineError(w, h.logger, err)
		return
	}
	if !status.Enrolled {
		respondJSON(w, http.StatusNotFound, EnrollmentResponse{Identity: status.Identity})
		return
	}

	respondJSON(w, http.StatusOK, EnrollmentResponse{
		Identity:        status.Identity,
		Enrolled:        true,
		SourceReference: status.SourceReference,
		EnrolledAt:      &status.EnrolledAt,
		Dim:             status.Dim,
	})
}
