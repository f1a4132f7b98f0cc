package database

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// TemplateIndexMetadata stores metadata for validating a persisted index.
type TemplateIndexMetadata struct {
	Count     int       `json:"count"`
	Metric    string    `json:"metric"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"`
}

const templateIndexVersion = 1

// ErrIndexEmpty is returned by Search before anything was added to the index.
var ErrIndexEmpty = errors.New("template index is empty")

// TemplateIndex wraps an HNSW graph over enrolled templates, keyed by identity.
// It only proposes candidates; callers re-score them exactly.
type TemplateIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[string]
	metric   string
	distance hnsw.DistanceFunc
}

// NewTemplateIndex creates an empty index using the named metric ("euclidean" or "cosine").
func NewTemplateIndex(metric string) (*TemplateIndex, error) {
	var fn hnsw.DistanceFunc
	switch metric {
	case "", "euclidean":
		metric = "euclidean"
		fn = hnsw.EuclideanDistance
	case "cosine":
		fn = hnsw.CosineDistance
	default:
		return nil, fmt.Errorf("unsupported index metric %q", metric)
	}
	return &TemplateIndex{metric: metric, distance: fn}, nil
}

func (x *TemplateIndex) newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = x.distance
	return g
}

// Build replaces the index contents with records.
func (x *TemplateIndex) Build(records []EnrollmentRecord) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(records) == 0 {
		x.graph = nil
		return
	}

	g := x.newGraph()
	for i := range records {
		if len(records[i].Vector) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(records[i].Identity, records[i].Vector))
	}
	x.graph = g
}

// Add inserts a single newly enrolled template.
func (x *TemplateIndex) Add(rec EnrollmentRecord) {
	if len(rec.Vector) == 0 {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.graph == nil {
		x.graph = x.newGraph()
	}
	x.graph.Add(hnsw.MakeNode(rec.Identity, rec.Vector))
}

// Search returns up to k candidate identities nearest to probe.
func (x *TemplateIndex) Search(probe []float32, k int) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || x.graph.Len() == 0 {
		return nil, ErrIndexEmpty
	}

	neighbors := x.graph.Search(probe, k)
	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
	}
	return ids, nil
}

// Count returns the number of indexed templates.
func (x *TemplateIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.graph == nil {
		return 0
	}
	return x.graph.Len()
}

// Metric returns the metric name the graph was built with.
func (x *TemplateIndex) Metric() string {
	return x.metric
}

// Save persists the graph to path with a .meta sidecar for staleness detection.
func (x *TemplateIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if path == "" {
		return nil
	}

	if x.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	if err := x.graph.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}

	meta, err := json.Marshal(TemplateIndexMetadata{
		Count:     x.graph.Len(),
		Metric:    x.metric,
		BuildTime: time.Now().UTC(),
		Version:   templateIndexVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", meta, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load reads a persisted graph if its metadata matches the expected template count
// and metric. Returns false when the file is missing or stale; the caller rebuilds.
func (x *TemplateIndex) Load(path string, expectedCount int) (bool, error) {
	if path == "" {
		return false, nil
	}

	meta, err := LoadTemplateIndexMetadata(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if meta.Version != templateIndexVersion || meta.Metric != x.metric || meta.Count != expectedCount {
		return false, nil
	}

	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	g := x.newGraph()
	if err := g.Import(bufio.NewReader(f)); err != nil {
		return false, fmt.Errorf("failed to load HNSW index: %w", err)
	}
	g.Distance = x.distance

	x.mu.Lock()
	x.graph = g
	x.mu.Unlock()
	return true, nil
}

// LoadTemplateIndexMetadata loads metadata from the .meta sidecar of path.
func LoadTemplateIndexMetadata(path string) (TemplateIndexMetadata, error) {
	var meta TemplateIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}
