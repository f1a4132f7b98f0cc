package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/lab-access/internal/biometric"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Identification strategies
const (
	StrategyScan  = "scan"
	StrategyIndex = "index"
)

type Config struct {
	Access    AccessConfig    `yaml:"access"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"-"`
	Directory DirectoryConfig `yaml:"-"`
	Extractor ExtractorConfig `yaml:"-"`
	Web       WebConfig       `yaml:"-"`
	Log       LogConfig       `yaml:"-"`
}

// AccessConfig holds the decision policy shared by identify and verify.
type AccessConfig struct {
	Threshold        float64 `yaml:"threshold"`         // match iff distance < threshold, in (0,1]
	Metric           string  `yaml:"metric"`            // euclidean or cosine
	Dim              int     `yaml:"dim"`               // feature vector dimension
	IdentifyStrategy string  `yaml:"identify_strategy"` // scan or index
	MaxImageSize     int     `yaml:"max_image_size"`    // longest side sent to the extractor
}

type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"` // enrollment images are kept here as <identity>.jpg
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the template HNSW index (optional, if empty index is rebuilt on startup)
}

type DirectoryConfig struct {
	DatabaseURL string // MariaDB DSN of the campus directory (e.g., lab:lab@tcp(mariadb:3306)/campus), optional
}

type ExtractorConfig struct {
	URL string // defaults to http://localhost:8000
}

type WebConfig struct {
	Port           int
	Host           string
	APIToken       string // bearer token required on /api/v1 when set
	AllowedOrigins string // comma separated CORS origins
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from embedded defaults, the optional
// ACCESS_CONFIG_FILE, and the environment, then validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	if path := os.Getenv("ACCESS_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Access.Threshold = envFloat("ACCESS_THRESHOLD", cfg.Access.Threshold)
	cfg.Access.Metric = envString("ACCESS_METRIC", cfg.Access.Metric)
	cfg.Access.Dim = envInt("ACCESS_DIM", cfg.Access.Dim)
	cfg.Access.IdentifyStrategy = envString("ACCESS_IDENTIFY_STRATEGY", cfg.Access.IdentifyStrategy)
	cfg.Access.MaxImageSize = envInt("ACCESS_MAX_IMAGE_SIZE", cfg.Access.MaxImageSize)
	cfg.Storage.UploadDir = envString("UPLOAD_DIR", cfg.Storage.UploadDir)

	cfg.Database = DatabaseConfig{
		URL:           os.Getenv("DATABASE_URL"),
		MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
		HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
	}
	cfg.Directory = DirectoryConfig{
		DatabaseURL: os.Getenv("DIRECTORY_DATABASE_URL"),
	}
	cfg.Extractor = ExtractorConfig{
		URL: os.Getenv("EXTRACTOR_URL"),
	}
	cfg.Web = WebConfig{
		Port:           envInt("WEB_PORT", 8080),
		Host:           envString("WEB_HOST", "0.0.0.0"),
		APIToken:       os.Getenv("WEB_API_TOKEN"),
		AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
	}
	cfg.Log = LogConfig{
		Level:  envString("LOG_LEVEL", "info"),
		Format: envString("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects policies the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if !(c.Access.Threshold > 0 && c.Access.Threshold <= 1) {
		errs = append(errs, fmt.Errorf("access threshold must be in (0,1], got %v", c.Access.Threshold))
	}
	if c.Access.Dim <= 0 {
		errs = append(errs, fmt.Errorf("access dim must be positive, got %d", c.Access.Dim))
	}
	if _, err := biometric.MetricByName(c.Access.Metric); err != nil {
		errs = append(errs, err)
	}
	switch c.Access.IdentifyStrategy {
	case StrategyScan, StrategyIndex:
	default:
		errs = append(errs, fmt.Errorf("unknown identify strategy %q", c.Access.IdentifyStrategy))
	}
	if c.Access.MaxImageSize <= 0 {
		errs = append(errs, fmt.Errorf("max image size must be positive, got %d", c.Access.MaxImageSize))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
