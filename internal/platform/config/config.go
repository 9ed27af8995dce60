package config

import (
	"path/filepath"
	"time"
)

type Config struct {
	App           AppConfig           `yaml:"app" envPrefix:"APP_"`
	Server        ServerConfig        `yaml:"server" envPrefix:"SERVER_"`
	Log           LogConfig           `yaml:"log" envPrefix:"LOG_"`
	Uploads       UploadsConfig       `yaml:"uploads" envPrefix:"UPLOADS_"`
	Optimizer     OptimizerConfig     `yaml:"optimizer" envPrefix:"OPTIMIZER_"`
	Retention     RetentionConfig     `yaml:"retention" envPrefix:"RETENTION_"`
	Index         IndexConfig         `yaml:"index" envPrefix:"INDEX_"`
	Observability ObservabilityConfig `yaml:"observability" envPrefix:"OBSERVABILITY_"`
}

// AppConfig 应用级配置
type AppConfig struct {
	Env string `yaml:"env" env:"ENV"`
}

// IsProduction reports whether the service runs with production semantics.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

type ServerConfig struct {
	IP   string `yaml:"ip" env:"IP"`
	Port int    `yaml:"port" env:"PORT"`
}

type LogConfig struct {
	Level string `yaml:"log_level" env:"LEVEL"`
	Dir   string `yaml:"log_dir" env:"DIR"`
	File  string `yaml:"log_file" env:"FILE"`
}

// UploadsConfig 上传目录与校验配置
type UploadsConfig struct {
	Dir             string   `yaml:"dir" env:"DIR"`
	OptimizedSubdir string   `yaml:"optimized_subdir" env:"OPTIMIZED_SUBDIR"`
	PublicPrefix    string   `yaml:"public_prefix" env:"PUBLIC_PREFIX"`
	MaxFileSize     int64    `yaml:"max_file_size" env:"MAX_FILE_SIZE"`
	MaxWidth        int      `yaml:"max_width" env:"MAX_WIDTH"`
	MaxHeight       int      `yaml:"max_height" env:"MAX_HEIGHT"`
	AllowedFormats  []string `yaml:"allowed_formats" env:"ALLOWED_FORMATS" envSeparator:","`
}

// OptimizedDir returns the directory holding generated variants.
// OptimizedSubdir is always a child of Dir; the loader rejects anything else.
func (u UploadsConfig) OptimizedDir() string {
	return filepath.Join(u.Dir, u.OptimizedSubdir)
}

// OptimizerConfig 变体生成配置
type OptimizerConfig struct {
	Formats          []string      `yaml:"formats" env:"FORMATS" envSeparator:","`
	FFmpegPath       string        `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`
	MetadataCacheTTL time.Duration `yaml:"metadata_cache_ttl" env:"METADATA_CACHE_TTL"`
	GenerateRate     float64       `yaml:"generate_rate" env:"GENERATE_RATE"`
	GenerateBurst    int           `yaml:"generate_burst" env:"GENERATE_BURST"`
}

// RetentionConfig 过期变体清理配置
type RetentionConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	MaxAge   time.Duration `yaml:"max_age" env:"MAX_AGE"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

type IndexConfig struct {
	Driver string            `yaml:"driver" env:"DRIVER"`
	SQLite IndexSQLiteConfig `yaml:"sqlite,omitempty" envPrefix:"SQLITE_"`
	Redis  IndexRedisConfig  `yaml:"redis,omitempty" envPrefix:"REDIS_"`
}

type IndexSQLiteConfig struct {
	DSN string `yaml:"dsn,omitempty" env:"DSN"`
}

type IndexRedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Username string `yaml:"username,omitempty" env:"USERNAME"`
	Password string `yaml:"password,omitempty" env:"PASSWORD"`
	DB       int    `yaml:"db,omitempty" env:"DB"`
	Prefix   string `yaml:"prefix,omitempty" env:"PREFIX"`
}

type ObservabilityConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}
