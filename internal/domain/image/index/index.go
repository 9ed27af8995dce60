package index

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned by Get for unknown paths.
var ErrNotFound = errors.New("artifact not indexed")

// Entry is the indexed view of one generated variant file.
type Entry struct {
	Path      string         `json:"path"`
	Source    string         `json:"source"`
	Variant   string         `json:"variant"`
	Format    string         `json:"format"`
	URL       string         `json:"url"`
	Size      int64          `json:"size"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Store defines the behaviour required of an artifact index.
// Record overwrites any entry with the same path.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	Get(ctx context.Context, path string) (Entry, error)
	ListBySource(ctx context.Context, source string) ([]Entry, error)
	Remove(ctx context.Context, path string) error
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the store selection parameters.
type Config struct {
	Driver string
	Redis  *RedisConfig
	SQLite *SQLiteConfig
}

// SQLiteConfig provides the database location.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
}
