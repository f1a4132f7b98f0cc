package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/lab-access/internal/access"
	"github.com/kozaktomas/lab-access/internal/biometric"
	"github.com/kozaktomas/lab-access/internal/config"
	"github.com/kozaktomas/lab-access/internal/database/mock"
	"github.com/kozaktomas/lab-access/internal/extractor"
)

type stubExtractor map[string][]float32

func (s stubExtractor) Extract(_ context.Context, image []byte) (extractor.Result, error) {
	if v, ok := s[string(image)]; ok {
		return extractor.Result{Status: extractor.StatusSuccess, Vector: v, FacesCount: 1}, nil
	}
	return extractor.Result{Status: extractor.StatusNoFace}, nil
}

func (stubExtractor) Health(context.Context) error { return nil }

func newTestServer(t *testing.T, token string) (*Server, *mock.MockAuditLog) {
	t.Helper()
	audit := mock.NewMockAuditLog()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := access.NewEngine(mock.NewMockTemplateStore(), mock.NewMockPermissionStore(), audit, access.Options{
		Matcher: biometric.NewMatcher(biometric.Euclidean{}, 0.6),
		Dim:     3,
		Logger:  logger,
	})
	cfg := &config.Config{Web: config.WebConfig{Host: "127.0.0.1", Port: 0, APIToken: token}}

	return NewServer(cfg, Dependencies{
		Engine: engine,
		Extractor: stubExtractor{
			"u1-enroll": {0.1, 0.2, 0.3},
			"u1-door":   {0.12, 0.2, 0.3},
		},
		Logger: logger,
	}), audit
}

func do(t *testing.T, s *Server, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func multipartPost(t *testing.T, path string, fields map[string]string, image string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	part, err := mw.CreateFormFile("image", "capture.jpg")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(image))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestServer_HealthIsPublic(t *testing.T) {
	s, _ := newTestServer(t, "s3cret")

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServer_RequiresToken(t *testing.T) {
	s, _ := newTestServer(t, "s3cret")

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil), "s3cret")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
}

func TestServer_RoomsRouteNeedsDirectory(t *testing.T) {
	s, _ := newTestServer(t, "")

	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a directory, got %d", w.Code)
	}
}

func TestServer_AccessFlow(t *testing.T) {
	s, audit := newTestServer(t, "")

	w := do(t, s, multipartPost(t, "/api/v1/enrollments", map[string]string{"identity": "U1"}, "u1-enroll"), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("enroll: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, s, httptest.NewRequest(http.MethodPost, "/api/v1/permissions",
		strings.NewReader(`{"identity":"U1","room_id":"R1","granted_by":"admin"}`)), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("grant: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	cases := []struct {
		identity, room, wantStatus, wantReason string
	}{
		{"U1", "R1", "granted", ""},
		{"U1", "R2", "denied", "not authorized for room"},
		{"U2", "R1", "denied", "identity not enrolled"},
	}
	for _, c := range cases {
		w = do(t, s, multipartPost(t, "/api/v1/access/check", map[string]string{"identity": c.identity, "room_id": c.room}, "u1-door"), "")
		if w.Code != http.StatusOK {
			t.Fatalf("check %s/%s: expected 200, got %d: %s", c.identity, c.room, w.Code, w.Body.String())
		}
		var resp map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp["status"] != c.wantStatus {
			t.Errorf("check %s/%s: status = %v, want %s", c.identity, c.room, resp["status"], c.wantStatus)
		}
		if c.wantReason != "" && resp["reason"] != c.wantReason {
			t.Errorf("check %s/%s: reason = %v, want %s", c.identity, c.room, resp["reason"], c.wantReason)
		}
		if c.wantStatus == "granted" {
			if conf, _ := resp["confidence"].(float64); conf < 80 {
				t.Errorf("expected confidence >= 80, got %v", resp["confidence"])
			}
		}
	}

	if n := len(audit.Attempts()); n != len(cases) {
		t.Errorf("expected %d audit entries, got %d", len(cases), n)
	}

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/v1/logs/U1", nil), "")
	var logs []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &logs); err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Errorf("expected 2 entries for U1, got %d", len(logs))
	}
}
