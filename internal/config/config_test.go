package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearAccessEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ACCESS_CONFIG_FILE", "ACCESS_THRESHOLD", "ACCESS_METRIC", "ACCESS_DIM",
		"ACCESS_IDENTIFY_STRATEGY", "ACCESS_MAX_IMAGE_SIZE", "UPLOAD_DIR",
		"WEB_PORT", "WEB_HOST", "LOG_LEVEL", "LOG_FORMAT",
		"DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearAccessEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Access.Threshold != 0.6 {
		t.Errorf("expected threshold 0.6, got %v", cfg.Access.Threshold)
	}
	if cfg.Access.Metric != "euclidean" {
		t.Errorf("expected metric euclidean, got %q", cfg.Access.Metric)
	}
	if cfg.Access.Dim != 128 {
		t.Errorf("expected dim 128, got %d", cfg.Access.Dim)
	}
	if cfg.Access.IdentifyStrategy != StrategyScan {
		t.Errorf("expected strategy scan, got %q", cfg.Access.IdentifyStrategy)
	}
	if cfg.Access.MaxImageSize != 1920 {
		t.Errorf("expected max image size 1920, got %d", cfg.Access.MaxImageSize)
	}
	if cfg.Storage.UploadDir != "uploads/facial_images" {
		t.Errorf("expected default upload dir, got %q", cfg.Storage.UploadDir)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Web.Port)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("unexpected pool defaults: %+v", cfg.Database)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearAccessEnv(t)
	t.Setenv("ACCESS_THRESHOLD", "0.45")
	t.Setenv("ACCESS_METRIC", "cosine")
	t.Setenv("ACCESS_DIM", "512")
	t.Setenv("ACCESS_IDENTIFY_STRATEGY", "index")
	t.Setenv("WEB_PORT", "9000")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Access.Threshold != 0.45 {
		t.Errorf("expected threshold 0.45, got %v", cfg.Access.Threshold)
	}
	if cfg.Access.Metric != "cosine" {
		t.Errorf("expected metric cosine, got %q", cfg.Access.Metric)
	}
	if cfg.Access.Dim != 512 {
		t.Errorf("expected dim 512, got %d", cfg.Access.Dim)
	}
	if cfg.Access.IdentifyStrategy != StrategyIndex {
		t.Errorf("expected strategy index, got %q", cfg.Access.IdentifyStrategy)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Web.Port)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected invalid value to fall back to 25, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearAccessEnv(t)

	path := filepath.Join(t.TempDir(), "access.yaml")
	content := "access:\n  threshold: 0.5\n  dim: 64\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ACCESS_CONFIG_FILE", path)
	t.Setenv("ACCESS_DIM", "32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Access.Threshold != 0.5 {
		t.Errorf("expected threshold from file 0.5, got %v", cfg.Access.Threshold)
	}
	if cfg.Access.Dim != 32 {
		t.Errorf("expected env to win over file, got dim %d", cfg.Access.Dim)
	}
	if cfg.Access.Metric != "euclidean" {
		t.Errorf("expected untouched default metric, got %q", cfg.Access.Metric)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearAccessEnv(t)
	t.Setenv("ACCESS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Access: AccessConfig{
			Threshold:        0.6,
			Metric:           "euclidean",
			Dim:              128,
			IdentifyStrategy: StrategyScan,
			MaxImageSize:     1920,
		}}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"threshold one", func(c *Config) { c.Access.Threshold = 1 }, ""},
		{"threshold zero", func(c *Config) { c.Access.Threshold = 0 }, "threshold"},
		{"threshold above one", func(c *Config) { c.Access.Threshold = 1.2 }, "threshold"},
		{"dim zero", func(c *Config) { c.Access.Dim = 0 }, "dim"},
		{"unknown metric", func(c *Config) { c.Access.Metric = "manhattan" }, "metric"},
		{"unknown strategy", func(c *Config) { c.Access.IdentifyStrategy = "guess" }, "strategy"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
