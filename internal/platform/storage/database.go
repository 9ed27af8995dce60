package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"blog-image-server/internal/platform/storage/migrations"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ArtifactRecord is the persisted row of one generated variant file.
type ArtifactRecord struct {
	ID        uint           `gorm:"primaryKey"`
	Path      string         `gorm:"type:varchar(512);uniqueIndex;not null" json:"path"`
	Source    string         `gorm:"type:varchar(255);index;not null"      json:"source"`
	Variant   string         `gorm:"type:varchar(64);not null"             json:"variant"`
	Format    string         `gorm:"type:varchar(16);not null"             json:"format"`
	URL       string         `                                             json:"url"`
	Size      int64          `                                             json:"size"`
	Width     int            `                                             json:"width"`
	Height    int            `                                             json:"height"`
	CreatedAt time.Time      `                                             json:"created_at"`
	Metadata  datatypes.JSON `                                             json:"metadata,omitempty"`
}

// TableName pins the table created by migration 001.
func (ArtifactRecord) TableName() string {
	return "image_artifacts"
}

// Open opens a SQLite database at dsn and applies pending migrations.
// File DSNs get their parent directory created first.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn must not be empty")
	}
	if !strings.HasPrefix(dsn, "file:") && !strings.Contains(dsn, ":memory:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	manager := NewMigrationManager(db)
	manager.AddMigration(&migrations.Migration001ImageArtifacts{})
	if err := manager.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
