package index

import (
	"fmt"

	"blog-image-server/internal/platform/storage"

	"gorm.io/gorm"
)

// Driver identifiers supported by the artifact index.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Dependencies captures external handles required by certain drivers.
type Dependencies struct {
	SQLiteDB *gorm.DB
}

// New creates an artifact index based on the provided configuration.
// The sqlite driver opens cfg.SQLite.DSN when no handle is supplied.
func New(cfg Config, deps Dependencies) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		db := deps.SQLiteDB
		if db == nil {
			if cfg.SQLite == nil || cfg.SQLite.DSN == "" {
				return nil, fmt.Errorf("sqlite driver requires a database handle or dsn")
			}
			opened, err := storage.Open(cfg.SQLite.DSN)
			if err != nil {
				return nil, err
			}
			db = opened
		}
		return NewSQLite(db)
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported index driver: %s", driver)
	}
}
