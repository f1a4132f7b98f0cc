package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/lab-access/internal/access"
	"github.com/kozaktomas/lab-access/internal/biometric"
	"github.com/kozaktomas/lab-access/internal/database/mock"
	"github.com/kozaktomas/lab-access/internal/extractor"
)

const testDim = 4

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

// fakeExtractor maps image bytes to canned results.
type fakeExtractor struct {
	mu        sync.Mutex
	results   map[string]extractor.Result
	err       error
	healthErr error
	calls     int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{results: make(map[string]extractor.Result)}
}

// face registers image as containing one face with the given vector.
func (f *fakeExtractor) face(image string, vector ...float32) {
	f.results[image] = extractor.Result{Status: extractor.StatusSuccess, Vector: vector, FacesCount: 1}
}

func (f *fakeExtractor) Extract(_ context.Context, image []byte) (extractor.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return extractor.Result{}, f.err
	}
	if res, ok := f.results[string(image)]; ok {
		return res, nil
	}
	return extractor.Result{Status: extractor.StatusNoFace}, nil
}

func (f *fakeExtractor) Health(context.Context) error {
	return f.healthErr
}

// testBackend is an engine over in-memory stores.
type testBackend struct {
	engine      *access.Engine
	templates   *mock.MockTemplateStore
	permissions *mock.MockPermissionStore
	audit       *mock.MockAuditLog
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{
		templates:   mock.NewMockTemplateStore(),
		permissions: mock.NewMockPermissionStore(),
		audit:       mock.NewMockAuditLog(),
	}
	var (
		mu  sync.Mutex
		now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	)
	b.engine = access.NewEngine(b.templates, b.permissions, b.audit, access.Options{
		Matcher: biometric.NewMatcher(biometric.Euclidean{}, 0.6),
		Dim:     testDim,
		Logger:  testLogger(),
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(time.Second)
			return now
		},
	})
	return b
}

// multipartRequest builds a multipart POST with the given fields and an optional image part.
func multipartRequest(t *testing.T, path string, fields map[string]string, image string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if image != "" {
		part, err := mw.CreateFormFile("image", "face.jpg")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write([]byte(image))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%v'", expectedMessage, result["error"])
	}
}
