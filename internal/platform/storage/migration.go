package storage

import (
	"fmt"
	"sort"
	"time"

	"blog-image-server/internal/platform/errors"

	"gorm.io/gorm"
)

// Migration 数据库迁移接口
type Migration interface {
	Version() string
	Description() string
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// MigrationRecord 迁移记录
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// MigrationManager applies registered migrations in version order.
type MigrationManager struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrationManager 创建迁移管理器
func NewMigrationManager(db *gorm.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// AddMigration 添加迁移
func (m *MigrationManager) AddMigration(migration Migration) {
	m.migrations = append(m.migrations, migration)
	sort.SliceStable(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version() < m.migrations[j].Version()
	})
}

// Pending lists the registered migrations that have not been applied yet.
func (m *MigrationManager) Pending() ([]Migration, error) {
	if err := m.db.AutoMigrate(&MigrationRecord{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.create_table", "failed to create migration table", err)
	}

	var applied []string
	if err := m.db.Model(&MigrationRecord{}).Pluck("version", &applied).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.get_applied", "failed to get applied migrations", err)
	}
	done := make(map[string]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}

	var pending []Migration
	for _, mig := range m.migrations {
		if _, ok := done[mig.Version()]; !ok {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// RunMigrations applies each pending migration in its own transaction.
func (m *MigrationManager) RunMigrations() error {
	pending, err := m.Pending()
	if err != nil {
		return err
	}

	for _, mig := range pending {
		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx); err != nil {
				return errors.Wrap(errors.KindStorage, "migration.up",
					fmt.Sprintf("failed to run migration %s", mig.Version()), err)
			}
			record := &MigrationRecord{
				Version:   mig.Version(),
				Name:      mig.Description(),
				AppliedAt: time.Now(),
			}
			if err := tx.Create(record).Error; err != nil {
				return errors.Wrap(errors.KindStorage, "migration.record", "failed to record migration", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RollbackMigration reverts one applied migration and forgets its record.
func (m *MigrationManager) RollbackMigration(version string) error {
	var target Migration
	for _, mig := range m.migrations {
		if mig.Version() == version {
			target = mig
			break
		}
	}
	if target == nil {
		return errors.New(errors.KindStorage, "migration.not_registered",
			fmt.Sprintf("migration %s not registered", version))
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		var record MigrationRecord
		if err := tx.Where("version = ?", version).First(&record).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New(errors.KindStorage, "migration.not_found",
					fmt.Sprintf("migration %s not applied", version))
			}
			return errors.Wrap(errors.KindStorage, "migration.find_record", "failed to find migration record", err)
		}
		if err := target.Down(tx); err != nil {
			return errors.Wrap(errors.KindStorage, "migration.down",
				fmt.Sprintf("failed to rollback migration %s", version), err)
		}
		return tx.Delete(&record).Error
	})
}

// GetMigrationHistory 获取迁移历史
func (m *MigrationManager) GetMigrationHistory() ([]MigrationRecord, error) {
	var records []MigrationRecord
	if err := m.db.Order("applied_at DESC").Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.history", "failed to get migration history", err)
	}
	return records, nil
}
