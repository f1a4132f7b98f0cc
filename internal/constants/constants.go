// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// DefaultDistanceThreshold is the default maximum euclidean distance for a face match.
	// Lower values = stricter matching
	DefaultDistanceThreshold = 0.6

	// DefaultVectorDim is the dimension of face_recognition encodings
	DefaultVectorDim = 128

	// MaxReferenceLength is the maximum byte length of an identity or room reference
	MaxReferenceLength = 255
)

// Identification constants
const (
	// ScanPageSize is the number of templates fetched per page during a full scan
	ScanPageSize = 500
)

// Store retry constants
const (
	// ConflictRetries is how many times enroll and grant are retried after a transient store failure
	ConflictRetries = 3
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for batch enrollment
	WorkerPoolSize = 4

	// MaxImageSize is the maximum dimension (width or height) for image processing
	MaxImageSize = 1920

	// EnrollmentJPEGQuality is the quality used when storing enrollment images
	EnrollmentJPEGQuality = 95
)
