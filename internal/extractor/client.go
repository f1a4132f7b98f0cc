// Package extractor turns a face photo into a feature vector using the
// face embedding server.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/lab-access/internal/constants"
)

const defaultExtractorURL = "http://localhost:8000"

// Client computes face feature vectors using the embedding server
type Client struct {
	baseURL      string
	maxImageSize int
	client       *http.Client
}

// NewClient creates a new extractor client. Images larger than maxImageSize
// on either side are downscaled before upload.
func NewClient(baseURL string, maxImageSize int) *Client {
	if baseURL == "" {
		baseURL = defaultExtractorURL
	}
	if maxImageSize <= 0 {
		maxImageSize = constants.MaxImageSize
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		maxImageSize: maxImageSize,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

// Extract detects faces in the image and returns the tagged outcome.
// Face count outcomes are results, not errors; errors are reserved for
// undecodable images and server failures.
func (c *Client) Extract(ctx context.Context, imageData []byte) (Result, error) {
	prepared, err := PrepareImage(imageData, c.maxImageSize)
	if err != nil {
		return Result{}, err
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", prepared)
	if err != nil {
		return Result{}, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return Result{}, fmt.Errorf("%w: failed to parse response: %w", ErrServer, err)
	}

	return resultFromResponse(faceResp)
}

func resultFromResponse(resp FaceResponse) (Result, error) {
	count := max(resp.FacesCount, len(resp.Faces))
	res := Result{FacesCount: count, Model: resp.Model}

	switch {
	case count == 0:
		res.Status = StatusNoFace
		return res, nil
	case count > 1:
		res.Status = StatusMultipleFaces
		return res, nil
	}

	if len(resp.Faces) == 0 || len(resp.Faces[0].Embedding) == 0 {
		return Result{}, fmt.Errorf("%w: empty embedding returned", ErrServer)
	}

	face := resp.Faces[0]
	res.Status = StatusSuccess
	res.Vector = face.Embedding
	res.BBox = face.BBox
	res.DetScore = face.DetScore
	return res, nil
}

// postMultipartImage posts a JPEG image as the "file" form field to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrServer, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrServer, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrServer, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

// Health checks that the embedding server answers.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %w", ErrServer, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	}
	return nil
}
