package extractor

import "errors"

var (
	// ErrInvalidImage is returned when the upload cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")

	// ErrServer is returned when the embedding server fails or answers with something unusable.
	ErrServer = errors.New("face embedding server error")
)

// Status is the tagged outcome of a face extraction.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusNoFace        Status = "no_face_detected"
	StatusMultipleFaces Status = "multiple_faces_detected"
)

// Message is the operator-facing explanation of a non-success status.
func (s Status) Message() string {
	switch s {
	case StatusNoFace:
		return "no face detected in image"
	case StatusMultipleFaces:
		return "multiple faces detected, use an image with exactly one face"
	default:
		return ""
	}
}

// Result is the outcome of Extract. Vector is set only for StatusSuccess.
type Result struct {
	Status     Status
	Vector     []float32
	FacesCount int
	BBox       []float64 // [x1, y1, x2, y2] of the detected face
	DetScore   float64
	Model      string
}

// OK reports whether exactly one face was found.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}
