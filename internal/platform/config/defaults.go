package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env: "development",
		},
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8000,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Uploads: UploadsConfig{
			Dir:             "uploads",
			OptimizedSubdir: "optimized",
			PublicPrefix:    "/uploads",
			MaxFileSize:     10 * 1024 * 1024,
			MaxWidth:        8192,
			MaxHeight:       8192,
			AllowedFormats:  []string{"jpeg", "jpg", "png", "webp", "gif"},
		},
		Optimizer: OptimizerConfig{
			Formats:          []string{"webp", "jpeg"},
			FFmpegPath:       "ffmpeg",
			MetadataCacheTTL: 10 * time.Minute,
			GenerateRate:     8,
			GenerateBurst:    4,
		},
		Retention: RetentionConfig{
			Enabled:  false,
			MaxAge:   30 * 24 * time.Hour,
			Interval: 24 * time.Hour,
		},
		Index: IndexConfig{
			Driver: "memory",
			SQLite: IndexSQLiteConfig{
				DSN: "data/artifacts.db",
			},
			Redis: IndexRedisConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "blogimg",
			},
		},
		Observability: ObservabilityConfig{
			Enabled: true,
		},
	}
}
