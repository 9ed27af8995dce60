package migrations

import (
	"gorm.io/gorm"
)

// Migration001ImageArtifacts 创建变体产物索引表
type Migration001ImageArtifacts struct{}

func (m *Migration001ImageArtifacts) Version() string {
	return "001_image_artifacts"
}

func (m *Migration001ImageArtifacts) Description() string {
	return "Create image_artifacts table indexing generated variants"
}

func (m *Migration001ImageArtifacts) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS image_artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path VARCHAR(512) NOT NULL UNIQUE,
			source VARCHAR(255) NOT NULL,
			variant VARCHAR(64) NOT NULL,
			format VARCHAR(16) NOT NULL,
			url TEXT,
			size INTEGER,
			width INTEGER,
			height INTEGER,
			created_at DATETIME NOT NULL,
			metadata JSON
		)
	`).Error; err != nil {
		return err
	}

	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_image_artifacts_source ON image_artifacts(source)`).Error
}

func (m *Migration001ImageArtifacts) Down(db *gorm.DB) error {
	if err := db.Exec(`DROP INDEX IF EXISTS idx_image_artifacts_source`).Error; err != nil {
		return err
	}
	return db.Exec(`DROP TABLE IF EXISTS image_artifacts`).Error
}
