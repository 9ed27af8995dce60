package testing

import (
	"path/filepath"
	"testing"

	"blog-image-server/internal/platform/config"
	"blog-image-server/internal/platform/logging"
)

// SetupTestConfig returns the default config rooted in a per-test temp dir.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = filepath.Join(root, "logs")
	cfg.Log.File = "test.log"
	cfg.Uploads.Dir = filepath.Join(root, "uploads")
	cfg.Index.SQLite.DSN = filepath.Join(root, "artifacts.db")
	cfg.Optimizer.FFmpegPath = "ffmpeg-disabled-in-tests"
	cfg.Optimizer.GenerateRate = 0
	return cfg
}

// SetupTestLogger returns a logger writing into a per-test temp dir.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	logger, err := logging.New(logging.Config{
		Level:    "DEBUG",
		Dir:      t.TempDir(),
		Filename: "test.log",
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return logger
}
