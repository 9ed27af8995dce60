package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blog-image-server/internal/platform/storage"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"
)

type sqliteStore struct {
	db *gorm.DB
}

// NewSQLite builds a SQLite-backed artifact index on an already migrated handle.
func NewSQLite(db *gorm.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite index requires database handle")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Record(ctx context.Context, entry Entry) error {
	if entry.Path == "" {
		return fmt.Errorf("artifact path required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	var meta []byte
	if len(entry.Metadata) > 0 {
		encoded, err := sonic.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = encoded
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("path = ?", entry.Path).Delete(&storage.ArtifactRecord{}).Error; err != nil {
			return err
		}
		record := &storage.ArtifactRecord{
			Path:      entry.Path,
			Source:    entry.Source,
			Variant:   entry.Variant,
			Format:    entry.Format,
			URL:       entry.URL,
			Size:      entry.Size,
			Width:     entry.Width,
			Height:    entry.Height,
			CreatedAt: entry.CreatedAt,
			Metadata:  meta,
		}
		return tx.Create(record).Error
	})
}

func (s *sqliteStore) Get(ctx context.Context, path string) (Entry, error) {
	var record storage.ArtifactRecord
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return Entry{}, err
	}
	return recordToEntry(record), nil
}

func (s *sqliteStore) ListBySource(ctx context.Context, source string) ([]Entry, error) {
	var records []storage.ArtifactRecord
	if err := s.db.WithContext(ctx).Where("source = ?", source).Order("path").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(records))
	for _, r := range records {
		out = append(out, recordToEntry(r))
	}
	return out, nil
}

func (s *sqliteStore) Remove(ctx context.Context, path string) error {
	return s.db.WithContext(ctx).Where("path = ?", path).Delete(&storage.ArtifactRecord{}).Error
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var total, sources int64
	q := s.db.WithContext(ctx).Model(&storage.ArtifactRecord{})
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&storage.ArtifactRecord{}).
		Distinct("source").Count(&sources).Error; err != nil {
		return nil, err
	}
	var bytes int64
	if err := s.db.WithContext(ctx).Model(&storage.ArtifactRecord{}).
		Select("COALESCE(SUM(size), 0)").Row().Scan(&bytes); err != nil {
		return nil, err
	}
	return map[string]any{
		"type":    DriverSQLite,
		"total":   total,
		"sources": sources,
		"bytes":   bytes,
	}, nil
}

func (s *sqliteStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func recordToEntry(r storage.ArtifactRecord) Entry {
	entry := Entry{
		Path:      r.Path,
		Source:    r.Source,
		Variant:   r.Variant,
		Format:    r.Format,
		URL:       r.URL,
		Size:      r.Size,
		Width:     r.Width,
		Height:    r.Height,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Metadata) > 0 {
		var meta map[string]any
		if err := sonic.Unmarshal(r.Metadata, &meta); err == nil {
			entry.Metadata = meta
		}
	}
	return entry
}
