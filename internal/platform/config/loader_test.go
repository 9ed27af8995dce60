package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_Load(t *testing.T) {
	// 创建临时配置文件
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
app:
  env: production
server:
  ip: "127.0.0.1"
  port: 8080
log:
  log_level: "DEBUG"
  log_dir: "/tmp/logs"
  log_file: "test.log"
uploads:
  dir: "/srv/uploads"
optimizer:
  formats: ["webp", "jpeg", "avif"]
retention:
  max_age: 720h
index:
  driver: sqlite
  sqlite:
    dsn: "file:idx?mode=memory"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	res, err := NewLoader().WithDotEnv(false).WithPath(configFile).
		WithEnvironment(map[string]string{}).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg := res.Config

	if res.Path != configFile {
		t.Errorf("expected path %s, got %s", configFile, res.Path)
	}
	if cfg.Server.IP != "127.0.0.1" {
		t.Errorf("expected server IP 127.0.0.1, got %s", cfg.Server.IP)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("expected log level DEBUG, got %s", cfg.Log.Level)
	}
	if !cfg.App.IsProduction() {
		t.Errorf("expected production env")
	}
	if got := cfg.Uploads.OptimizedDir(); got != filepath.Join("/srv/uploads", "optimized") {
		t.Errorf("unexpected optimized dir %s", got)
	}
	if len(cfg.Optimizer.Formats) != 3 {
		t.Errorf("expected 3 formats, got %v", cfg.Optimizer.Formats)
	}
	if cfg.Retention.MaxAge != 720*time.Hour {
		t.Errorf("expected max age 720h, got %s", cfg.Retention.MaxAge)
	}
	if cfg.Retention.Interval != 24*time.Hour {
		t.Errorf("expected default interval, got %s", cfg.Retention.Interval)
	}
	if cfg.Index.Driver != "sqlite" || cfg.Index.SQLite.DSN != "file:idx?mode=memory" {
		t.Errorf("unexpected index config %+v", cfg.Index)
	}
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	res, err := NewLoader().WithDotEnv(false).
		WithPath(filepath.Join(t.TempDir(), "absent.yaml")).
		WithEnvironment(map[string]string{}).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Path != "" {
		t.Errorf("expected empty path, got %s", res.Path)
	}
	if res.Config.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("expected default port")
	}
	if res.Config.Index.Driver != "memory" {
		t.Errorf("expected memory driver, got %s", res.Config.Index.Driver)
	}
}

func TestLoader_EnvironmentOverrides(t *testing.T) {
	env := map[string]string{
		"BLOGIMG_SERVER_PORT":              "9090",
		"BLOGIMG_APP_ENV":                  "production",
		"BLOGIMG_OPTIMIZER_FORMATS":        "jpeg,png",
		"BLOGIMG_RETENTION_MAX_AGE":        "48h",
		"BLOGIMG_INDEX_DRIVER":             "redis",
		"BLOGIMG_INDEX_REDIS_ADDR":         "redis:6379",
		"BLOGIMG_UPLOADS_OPTIMIZED_SUBDIR": "variants",
	}

	res, err := NewLoader().WithDotEnv(false).
		WithPath(filepath.Join(t.TempDir(), "absent.yaml")).
		WithEnvironment(env).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := res.Config

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.App.IsProduction() {
		t.Errorf("expected production")
	}
	if len(cfg.Optimizer.Formats) != 2 || cfg.Optimizer.Formats[1] != "png" {
		t.Errorf("unexpected formats %v", cfg.Optimizer.Formats)
	}
	if cfg.Retention.MaxAge != 48*time.Hour {
		t.Errorf("expected 48h, got %s", cfg.Retention.MaxAge)
	}
	if cfg.Index.Driver != "redis" || cfg.Index.Redis.Addr != "redis:6379" {
		t.Errorf("unexpected index %+v", cfg.Index)
	}
	if cfg.Uploads.OptimizedSubdir != "variants" {
		t.Errorf("unexpected subdir %s", cfg.Uploads.OptimizedSubdir)
	}
}

func TestLoader_ConfigPathFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := NewLoader().WithDotEnv(false).
		WithEnvironment(map[string]string{"BLOGIMG_CONFIG": path}).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Path != path || res.Config.Server.Port != 7000 {
		t.Errorf("expected config from %s, got %+v", path, res)
	}
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewLoader().WithDotEnv(false).WithPath(path).
		WithEnvironment(map[string]string{}).Load()
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	mutate := func(fn func(*Config)) *Config {
		cfg := DefaultConfig()
		fn(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "invalid server port",
			config:  mutate(func(c *Config) { c.Server.Port = 70000 }),
			wantErr: true,
		},
		{
			name:    "unknown format",
			config:  mutate(func(c *Config) { c.Optimizer.Formats = []string{"bmp"} }),
			wantErr: true,
		},
		{
			name:    "empty formats",
			config:  mutate(func(c *Config) { c.Optimizer.Formats = nil }),
			wantErr: true,
		},
		{
			name:    "non positive max age",
			config:  mutate(func(c *Config) { c.Retention.MaxAge = 0 }),
			wantErr: true,
		},
		{
			name:    "non positive interval",
			config:  mutate(func(c *Config) { c.Retention.Interval = -time.Second }),
			wantErr: true,
		},
		{
			name:    "unknown driver",
			config:  mutate(func(c *Config) { c.Index.Driver = "mongo" }),
			wantErr: true,
		},
		{
			name:    "empty uploads dir",
			config:  mutate(func(c *Config) { c.Uploads.Dir = " " }),
			wantErr: true,
		},
		{
			name:    "empty optimized subdir",
			config:  mutate(func(c *Config) { c.Uploads.OptimizedSubdir = "" }),
			wantErr: true,
		},
		{
			name:    "dot optimized subdir",
			config:  mutate(func(c *Config) { c.Uploads.OptimizedSubdir = "." }),
			wantErr: true,
		},
		{
			name:    "self-cancelling optimized subdir",
			config:  mutate(func(c *Config) { c.Uploads.OptimizedSubdir = "variants/.." }),
			wantErr: true,
		},
		{
			name:    "absolute optimized subdir",
			config:  mutate(func(c *Config) { c.Uploads.OptimizedSubdir = "/var/optimized" }),
			wantErr: true,
		},
		{
			name:    "escaping optimized subdir",
			config:  mutate(func(c *Config) { c.Uploads.OptimizedSubdir = "../optimized" }),
			wantErr: true,
		},
		{
			name:    "nested optimized subdir",
			config:  mutate(func(c *Config) { c.Uploads.OptimizedSubdir = "cache/optimized" }),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.validate(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
