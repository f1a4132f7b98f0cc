// Package biometric compares face feature vectors.
package biometric

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrDimensionMismatch is returned when two vectors of different length are compared.
var ErrDimensionMismatch = errors.New("feature vector dimension mismatch")

// Metric computes a non-negative distance between two feature vectors.
// Smaller values mean more similar faces.
type Metric interface {
	Name() string
	Distance(a, b []float32) (float64, error)
}

// Metric names accepted by MetricByName.
const (
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// Euclidean is the L2 distance used by dlib/face_recognition encodings.
type Euclidean struct{}

// Name returns the metric name.
func (Euclidean) Name() string { return MetricEuclidean }

// Distance returns the L2 norm of a-b.
func (Euclidean) Distance(a, b []float32) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Cosine is 1 - cosine similarity, in the range [0, 2].
type Cosine struct{}

// Name returns the metric name.
func (Cosine) Name() string { return MetricCosine }

// Distance returns the cosine distance between a and b.
// Zero vectors are treated as maximally distant.
func (Cosine) Distance(a, b []float32) (float64, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0, nil
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity, nil
}

func checkDims(a, b []float32) error {
	if len(a) != len(b) || len(a) == 0 {
		return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	return nil
}

// MetricByName returns the metric registered under name.
func MetricByName(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MetricEuclidean:
		return Euclidean{}, nil
	case MetricCosine:
		return Cosine{}, nil
	default:
		return nil, fmt.Errorf("unknown distance metric %q", name)
	}
}

// Matcher evaluates distances against a threshold.
type Matcher struct {
	Metric    Metric
	Threshold float64
}

// NewMatcher creates a matcher. A nil metric defaults to Euclidean.
func NewMatcher(metric Metric, threshold float64) Matcher {
	if metric == nil {
		metric = Euclidean{}
	}
	return Matcher{Metric: metric, Threshold: threshold}
}

// Distance measures a against b with the configured metric.
func (m Matcher) Distance(a, b []float32) (float64, error) {
	return m.Metric.Distance(a, b)
}

// IsMatch reports whether distance is strictly below the threshold.
func (m Matcher) IsMatch(distance float64) bool {
	return distance < m.Threshold
}

// Confidence converts a distance to an integer score in [0, 100].
func Confidence(distance float64) int {
	if math.IsNaN(distance) {
		return 0
	}
	score := math.Round((1 - distance) * 100)
	return int(max(0, min(100, score)))
}
