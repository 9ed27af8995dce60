package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level string) (*Logger, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	console := &bytes.Buffer{}
	logger, err := New(Config{
		Level:    level,
		Dir:      dir,
		Filename: "test.log",
		Console:  console,
	})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger, console, filepath.Join(dir, "test.log")
}

func readJSONLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_CreatesDirAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	logger, err := New(Config{Level: "info", Dir: dir, Filename: "svc.log", Console: &bytes.Buffer{}})
	require.NoError(t, err)
	defer logger.Close()

	_, err = os.Stat(filepath.Join(dir, "svc.log"))
	assert.NoError(t, err)
}

func TestLogger_Info(t *testing.T) {
	logger, console, path := newTestLogger(t, "info")

	logger.Info("upload stored")

	entries := readJSONLines(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "upload stored", entries[0]["msg"])
	assert.Contains(t, console.String(), "upload stored")
}

func TestLogger_FormattedMessage(t *testing.T) {
	logger, _, path := newTestLogger(t, "info")

	logger.Info("generated %d variants for %s", 3, "photo.jpg")

	entries := readJSONLines(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "generated 3 variants for photo.jpg", entries[0]["msg"])
}

func TestLogger_FieldMap(t *testing.T) {
	logger, console, path := newTestLogger(t, "info")

	logger.Warn("transcode failed", map[string]interface{}{
		"variant": "large",
		"format":  "webp",
	})

	entries := readJSONLines(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "large", entries[0]["variant"])
	assert.Equal(t, "webp", entries[0]["format"])
	assert.Contains(t, console.String(), "format=webp")
}

func TestLogger_NonMapField(t *testing.T) {
	logger, _, path := newTestLogger(t, "info")

	logger.Info("sweep finished", 4)

	entries := readJSONLines(t, path)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 4, entries[0]["fields"])
}

func TestLogger_LogLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{"INFO", []string{"INFO", "WARN", "ERROR"}},
		{"warn", []string{"WARN", "ERROR"}},
		{"error", []string{"ERROR"}},
		{"bogus", []string{"INFO", "WARN", "ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, _, path := newTestLogger(t, tt.level)

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			entries := readJSONLines(t, path)
			var got []string
			for _, e := range entries {
				got = append(got, e["level"].(string))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_TagHelpers(t *testing.T) {
	logger, console, path := newTestLogger(t, "debug")

	logger.InfoTag("IMAGE", "generated %s", "photo-medium.webp")
	logger.WarnTag("SWEEP", "list failed")
	logger.ErrorTag("HTTP", "[HTTP] already tagged")
	logger.DebugTag("", "untagged")

	entries := readJSONLines(t, path)
	require.Len(t, entries, 4)
	assert.Equal(t, "[IMAGE] generated photo-medium.webp", entries[0]["msg"])
	assert.Equal(t, "[SWEEP] list failed", entries[1]["msg"])
	assert.Equal(t, "[HTTP] already tagged", entries[2]["msg"])
	assert.Equal(t, "untagged", entries[3]["msg"])
	assert.Contains(t, console.String(), "[IMAGE] generated photo-medium.webp")
}

func TestFormatLog(t *testing.T) {
	assert.Equal(t, "[BOOT] ready", FormatLog("BOOT", "ready"))
	assert.Equal(t, "[BOOT] ready", FormatLog(" BOOT ", " ready "))
	assert.Equal(t, "ready", FormatLog("", "ready"))
	assert.Equal(t, "[X] keep", FormatLog("BOOT", "[X] keep"))
}

func TestLevelFromConfig(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, levelFromConfig("DEBUG"))
	assert.Equal(t, slog.LevelInfo, levelFromConfig("info"))
	assert.Equal(t, slog.LevelWarn, levelFromConfig("warning"))
	assert.Equal(t, slog.LevelError, levelFromConfig("Error"))
	assert.Equal(t, slog.LevelInfo, levelFromConfig(""))
}

func TestContainsFormatPlaceholders(t *testing.T) {
	assert.True(t, containsFormatPlaceholders("%d files"))
	assert.False(t, containsFormatPlaceholders("plain"))
}

func TestLogger_ConcurrentLogging(t *testing.T) {
	logger, _, path := newTestLogger(t, "info")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			logger.Info(fmt.Sprintf("concurrent message %d", idx))
		}(i)
	}
	wg.Wait()

	assert.Len(t, readJSONLines(t, path), 50)
}

func TestLogger_RotateAndClean(t *testing.T) {
	logger, _, path := newTestLogger(t, "info")
	dir := filepath.Dir(path)

	stale := time.Now().AddDate(0, 0, -(RetentionDays + 3)).Format("2006-01-02")
	fresh := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-"+stale+".log"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-"+fresh+".log"), []byte("new"), 0o644))

	logger.Info("before rotation")
	previous := logger.currentDate
	logger.rotateLogFile("2099-01-01")
	logger.cleanOldLogs()
	logger.Info("after rotation")

	_, err := os.Stat(filepath.Join(dir, "test-"+previous+".log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "test-"+stale+".log"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "test-"+fresh+".log"))
	assert.NoError(t, err)

	entries := readJSONLines(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "after rotation", entries[0]["msg"])
}

func TestLogger_CloseIsIdempotent(t *testing.T) {
	logger, _, _ := newTestLogger(t, "info")
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
}

func TestNewDiscard(t *testing.T) {
	logger := NewDiscard()
	assert.NotPanics(t, func() {
		logger.Error("dropped %s", "x")
		logger.InfoTag("IMAGE", "dropped")
	})
	assert.NotNil(t, logger.Slog())
	assert.NoError(t, logger.Close())
}
