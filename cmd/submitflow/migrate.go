package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/submitflow/submitflow/store"
)

// runMigrate applies the database schema and exits. Postgres runs the
// embedded SQL migrations; other drivers use gorm auto-migration.
func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	cfg.Database.Migrate = true

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	st, err := store.Open(cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
	if err := st.Close(); err != nil {
		logger.Warn("failed to close store after migration", zap.Error(err))
	}

	fmt.Println("Migrations applied")
}
