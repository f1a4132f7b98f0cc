package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kozaktomas/lab-access/internal/access"
	"github.com/kozaktomas/lab-access/internal/biometric"
	"github.com/kozaktomas/lab-access/internal/config"
	"github.com/kozaktomas/lab-access/internal/database"
	"github.com/kozaktomas/lab-access/internal/database/mariadb"
	"github.com/kozaktomas/lab-access/internal/database/postgres"
	"github.com/kozaktomas/lab-access/internal/extractor"
	"github.com/kozaktomas/lab-access/internal/logging"
)

// backend holds the connections and the engine shared by the commands.
type backend struct {
	cfg       *config.Config
	logger    *slog.Logger
	pool      *postgres.Pool
	templates *postgres.TemplateRepository
	directory *mariadb.Pool // nil unless DIRECTORY_DATABASE_URL is set
	extractor *extractor.Client
	engine    *access.Engine
}

// openBackend loads configuration, connects to PostgreSQL (running migrations)
// and the optional directory, and builds the engine.
func openBackend(ctx context.Context) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.New(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	pool, err := postgres.Initialize(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	b := &backend{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		templates: postgres.NewTemplateRepository(pool),
		extractor: extractor.NewClient(cfg.Extractor.URL, cfg.Access.MaxImageSize),
	}

	opts := access.Options{Dim: cfg.Access.Dim, Strategy: cfg.Access.IdentifyStrategy, Logger: logger}

	metric, err := biometric.MetricByName(cfg.Access.Metric)
	if err != nil {
		b.Close()
		return nil, err
	}
	opts.Matcher = biometric.NewMatcher(metric, cfg.Access.Threshold)

	if cfg.Directory.DatabaseURL != "" {
		dir, err := mariadb.Open(ctx, cfg.Directory.DatabaseURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to directory: %w", err)
		}
		b.directory = dir
		opts.Directory = dir
	}

	if cfg.Access.IdentifyStrategy == config.StrategyIndex {
		idx, err := database.NewTemplateIndex(metric.Name())
		if err != nil {
			b.Close()
			return nil, err
		}
		opts.Index = idx
	}

	b.engine = access.NewEngine(
		b.templates,
		postgres.NewPermissionRepository(pool),
		postgres.NewAuditRepository(pool),
		opts,
	)
	return b, nil
}

// Close releases all connections.
func (b *backend) Close() {
	if b.directory != nil {
		if err := b.directory.Close(); err != nil {
			b.logger.Warn("closing directory", "error", err)
		}
	}
	if b.pool != nil {
		if err := b.pool.Close(); err != nil {
			b.logger.Warn("closing database", "error", err)
		}
	}
}

// loadIndex prepares the template index when the index strategy is configured.
func (b *backend) loadIndex(ctx context.Context) {
	if b.cfg.Access.IdentifyStrategy != config.StrategyIndex {
		return
	}
	path := b.cfg.Database.HNSWIndexPath
	if path != "" {
		fmt.Printf("Loading template HNSW index from %s...\n", path)
	} else {
		fmt.Printf("Building in-memory HNSW index for identification...\n")
	}

	loaded, err := b.engine.LoadIndex(ctx, path)
	switch {
	case err != nil:
		fmt.Printf("Warning: Failed to build template HNSW index: %v\n", err)
		fmt.Printf("Identification will scan all templates (slower)\n")
	case loaded:
		fmt.Printf("Template HNSW index ready with %d templates (loaded from %s)\n", b.engine.IndexCount(), path)
	default:
		fmt.Printf("Template HNSW index built with %d templates\n", b.engine.IndexCount())
	}
}

// probeFromFile extracts the feature vector of the single face in the image at path.
func (b *backend) probeFromFile(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a CLI argument
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	res, err := b.extractor.Extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("extracting face from %s: %w", path, err)
	}
	if !res.OK() {
		return nil, fmt.Errorf("%s: %s", path, res.Status.Message())
	}
	return res.Vector, nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
