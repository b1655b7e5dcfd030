package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/submitflow/submitflow/config"
	"github.com/submitflow/submitflow/types"
)

// Open connects to the configured database, applies schema setup, and
// returns a ready Store. Postgres uses the embedded SQL migrations when
// cfg.Migrate is set; MySQL and SQLite always use gorm auto-migration.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*GormStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == "postgres" && cfg.Migrate {
		if err := Migrate(db, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	} else {
		if err := AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	return NewGormStore(db, logger), nil
}

// AutoMigrate creates or updates the schema from the gorm models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Product{},
		&types.Directory{},
		&types.Job{},
		&types.Attempt{},
		&types.ActionLog{},
	)
}
