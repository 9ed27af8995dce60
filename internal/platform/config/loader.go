package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BLOGIMG_"
	// DefaultPath is used when neither WithPath nor BLOGIMG_CONFIG is set.
	DefaultPath = "config.yaml"
)

var knownFormats = map[string]bool{
	"webp": true,
	"jpeg": true,
	"jpg":  true,
	"avif": true,
	"png":  true,
}

var knownDrivers = map[string]bool{
	"memory": true,
	"sqlite": true,
	"redis":  true,
}

// Loader reads config.yaml, then applies BLOGIMG_* environment overrides.
type Loader struct {
	useDotEnv   bool
	path        string
	environment map[string]string
}

// NewLoader creates a loader reading the default config path.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the config file path.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnvironment replaces the process environment (useful for tests).
func (l *Loader) WithEnvironment(environment map[string]string) *Loader {
	l.environment = environment
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the configuration: defaults, then the YAML file, then environment.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("未找到 .env 文件，使用系统环境变量")
		}
	}

	cfg := DefaultConfig()
	path := l.resolvePath()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		path = ""
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	opts := env.Options{Prefix: EnvPrefix}
	if l.environment != nil {
		opts.Environment = l.environment
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{
		Config: cfg,
		Path:   path,
	}, nil
}

func (l *Loader) resolvePath() string {
	if l.path != "" {
		return l.path
	}
	if l.environment != nil {
		if p := l.environment[EnvPrefix+"CONFIG"]; p != "" {
			return p
		}
	} else if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if strings.TrimSpace(cfg.Uploads.Dir) == "" {
		return fmt.Errorf("uploads.dir must not be empty")
	}
	if err := validateOptimizedSubdir(cfg.Uploads.OptimizedSubdir); err != nil {
		return err
	}
	if cfg.Uploads.MaxFileSize <= 0 {
		return fmt.Errorf("uploads.max_file_size must be positive")
	}
	if len(cfg.Optimizer.Formats) == 0 {
		return fmt.Errorf("optimizer.formats must not be empty")
	}
	for _, f := range cfg.Optimizer.Formats {
		if !knownFormats[strings.ToLower(f)] {
			return fmt.Errorf("unknown optimizer format: %s", f)
		}
	}
	if cfg.Optimizer.GenerateRate < 0 || cfg.Optimizer.GenerateBurst < 0 {
		return fmt.Errorf("optimizer generate rate and burst must not be negative")
	}
	if cfg.Retention.MaxAge <= 0 {
		return fmt.Errorf("retention.max_age must be positive")
	}
	if cfg.Retention.Interval <= 0 {
		return fmt.Errorf("retention.interval must be positive")
	}
	if !knownDrivers[cfg.Index.Driver] {
		return fmt.Errorf("unknown index driver: %s", cfg.Index.Driver)
	}
	return nil
}

// validateOptimizedSubdir keeps variants in a directory of their own below uploads.dir,
// so the retention sweeper never sees original uploads.
func validateOptimizedSubdir(subdir string) error {
	trimmed := strings.TrimSpace(subdir)
	if trimmed == "" {
		return fmt.Errorf("uploads.optimized_subdir must not be empty")
	}
	if !filepath.IsLocal(trimmed) || filepath.Clean(trimmed) == "." {
		return fmt.Errorf("uploads.optimized_subdir must be a subdirectory of uploads.dir: %q", subdir)
	}
	return nil
}
