package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// RetentionDays bounds how long rotated log files are kept.
	RetentionDays = 7
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
	// Console receives the coloured text stream; defaults to os.Stdout.
	Console io.Writer
}

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// tagColors maps message tag prefixes to console colours.
var tagColors = map[string]string{
	"[BOOT]":   "\x1b[96m",
	"[HTTP]":   "\x1b[95m",
	"[IMAGE]":  "\x1b[94m",
	"[UPLOAD]": "\x1b[92m",
	"[SERVE]":  "\x1b[34m",
	"[SWEEP]":  "\x1b[35m",
	"[INDEX]":  "\x1b[36m",
	"[EVENT]":  "\x1b[97m",
	"[OBS]":    "\x1b[90m",
}

// TextHandler renders records as coloured single lines for the console.
type TextHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *TextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelStr, levelColor string
	switch {
	case r.Level >= slog.LevelError:
		levelStr, levelColor = "ERROR", colorError
	case r.Level >= slog.LevelWarn:
		levelStr, levelColor = "WARN", colorWarn
	case r.Level >= slog.LevelInfo:
		levelStr, levelColor = "INFO", colorInfo
	default:
		levelStr, levelColor = "DEBUG", colorDebug
	}

	msg := r.Message
	var output string
	if tagColor, ok := messageTagColor(msg); ok && r.Level < slog.LevelWarn {
		output = fmt.Sprintf("%s[%s]%s %s%s%s",
			colorTime, timeStr, colorReset,
			tagColor, msg, colorReset)
	} else {
		output = fmt.Sprintf("%s[%s]%s %s[%s]%s %s",
			colorTime, timeStr, colorReset,
			levelColor, levelStr, colorReset,
			msg)
	}

	if r.NumAttrs() > 0 {
		output += " {"
		r.Attrs(func(a slog.Attr) bool {
			output += fmt.Sprintf(" %s=%v", a.Key, a.Value)
			return true
		})
		output += " }"
	}
	output += "\n"

	_, err := h.writer.Write([]byte(output))
	return err
}

func (h *TextHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *TextHandler) WithGroup(_ string) slog.Handler {
	return h
}

func messageTagColor(msg string) (string, bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", false
	}
	end := strings.Index(msg, "]")
	if end < 0 {
		return "", false
	}
	color, ok := tagColors[msg[:end+1]]
	return color, ok
}

// Logger writes every record twice: JSON to the log file, text to the console.
type Logger struct {
	config      Config
	level       slog.Level
	jsonLogger  *slog.Logger
	textLogger  *slog.Logger
	logFile     *os.File
	currentDate string
	mu          sync.RWMutex
	ticker      *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
}

func levelFromConfig(configLevel string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(configLevel)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a file-backed logger and starts the daily rotation checker.
func New(cfg Config) (*Logger, error) {
	if cfg.Filename == "" {
		cfg.Filename = "server.log"
	}
	if cfg.Dir == "" {
		cfg.Dir = "data/logs"
	}
	if cfg.Console == nil {
		cfg.Console = os.Stdout
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	logPath := filepath.Join(cfg.Dir, cfg.Filename)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	level := levelFromConfig(cfg.Level)
	logger := &Logger{
		config:      cfg,
		level:       level,
		jsonLogger:  slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})),
		textLogger:  slog.New(&TextHandler{writer: cfg.Console, level: level}),
		logFile:     file,
		currentDate: time.Now().Format("2006-01-02"),
		stopCh:      make(chan struct{}),
	}

	logger.startRotationChecker()
	return logger, nil
}

// NewDiscard returns a logger that drops everything. Intended for tests.
func NewDiscard() *Logger {
	return &Logger{
		level:      slog.LevelError + 1,
		jsonLogger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		textLogger: slog.New(&TextHandler{writer: io.Discard, level: slog.LevelError + 1}),
		stopCh:     make(chan struct{}),
	}
}

func (l *Logger) startRotationChecker() {
	l.ticker = time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-l.ticker.C:
				l.checkAndRotate()
			case <-l.stopCh:
				return
			}
		}
	}()
}

func (l *Logger) checkAndRotate() {
	today := time.Now().Format("2006-01-02")
	l.mu.RLock()
	current := l.currentDate
	l.mu.RUnlock()
	if today != current {
		l.rotateLogFile(today)
		l.cleanOldLogs()
	}
}

// rotateLogFile renames the active file to <base>-<date><ext> and reopens.
func (l *Logger) rotateLogFile(newDate string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		l.logFile.Close()
	}

	logDir := l.config.Dir
	currentLogPath := filepath.Join(logDir, l.config.Filename)
	base := strings.TrimSuffix(l.config.Filename, filepath.Ext(l.config.Filename))
	ext := filepath.Ext(l.config.Filename)
	archived := filepath.Join(logDir, fmt.Sprintf("%s-%s%s", base, l.currentDate, ext))

	if _, err := os.Stat(currentLogPath); err == nil {
		if err := os.Rename(currentLogPath, archived); err != nil {
			l.textLogger.Error("rename log file failed", slog.String("error", err.Error()))
		}
	}

	file, err := os.OpenFile(currentLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.textLogger.Error("reopen log file failed", slog.String("error", err.Error()))
		return
	}

	l.logFile = file
	l.currentDate = newDate
	l.jsonLogger = slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: l.level}))
	l.textLogger.Info("log file rotated", slog.String("new_date", newDate))
}

func (l *Logger) cleanOldLogs() {
	logDir := l.config.Dir
	entries, err := os.ReadDir(logDir)
	if err != nil {
		l.textLogger.Error("read log dir failed", slog.String("error", err.Error()))
		return
	}

	cutoff := time.Now().AddDate(0, 0, -RetentionDays)
	base := strings.TrimSuffix(l.config.Filename, filepath.Ext(l.config.Filename))
	ext := filepath.Ext(l.config.Filename)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, base+"-") || !strings.HasSuffix(name, ext) {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, base+"-"), ext)
		fileDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			if err := os.Remove(filepath.Join(logDir, name)); err != nil {
				l.textLogger.Error("remove old log failed",
					slog.String("file", name),
					slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops rotation and closes the log file.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.ticker != nil {
			l.ticker.Stop()
		}
		close(l.stopCh)
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.logFile != nil {
			err = l.logFile.Close()
			l.logFile = nil
		}
	})
	return err
}

func (l *Logger) log(level slog.Level, msg string, fields ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var attrs []slog.Attr
	if len(fields) > 0 && fields[0] != nil {
		if fieldsMap, ok := fields[0].(map[string]interface{}); ok {
			keys := make([]string, 0, len(fieldsMap))
			for k := range fieldsMap {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				attrs = append(attrs, slog.Any(k, fieldsMap[k]))
			}
		} else {
			attrs = append(attrs, slog.Any("fields", fields[0]))
		}
	}

	ctx := context.Background()
	l.jsonLogger.LogAttrs(ctx, level, msg, attrs...)
	l.textLogger.LogAttrs(ctx, level, msg, attrs...)
}

func containsFormatPlaceholders(s string) bool {
	return strings.Contains(s, "%")
}

func (l *Logger) emit(level slog.Level, msg string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}
	if len(args) > 0 && containsFormatPlaceholders(msg) {
		l.log(level, fmt.Sprintf(msg, args...))
		return
	}
	l.log(level, msg, args...)
}

// FormatLog prefixes message with a tag: FormatLog("BOOT", "ready") -> "[BOOT] ready".
// A message that already starts with "[" is returned untouched.
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" {
		return message
	}
	if strings.HasPrefix(message, "[") {
		return message
	}
	return fmt.Sprintf("[%s] %s", tag, message)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.emit(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.emit(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.emit(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.emit(slog.LevelError, msg, args...) }

func (l *Logger) DebugTag(tag, msg string, args ...interface{}) {
	l.emit(slog.LevelDebug, FormatLog(tag, msg), args...)
}

func (l *Logger) InfoTag(tag, msg string, args ...interface{}) {
	l.emit(slog.LevelInfo, FormatLog(tag, msg), args...)
}

func (l *Logger) WarnTag(tag, msg string, args ...interface{}) {
	l.emit(slog.LevelWarn, FormatLog(tag, msg), args...)
}

func (l *Logger) ErrorTag(tag, msg string, args ...interface{}) {
	l.emit(slog.LevelError, FormatLog(tag, msg), args...)
}

// Slog exposes the console logger for slog-based integrations.
func (l *Logger) Slog() *slog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.textLogger
}
