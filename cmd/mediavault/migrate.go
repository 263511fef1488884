package main

import (
	"fmt"
	"log/slog"

	"github.com/mediavault/mediavault/internal/db"
)

func runMigrate(action string) error {
	cfg, err := provideConfig()
	if err != nil {
		return err
	}
	log := provideLogger(cfg)

	migrator, err := db.NewMigrator(log, cfg.Postgres.ConnString())
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			log.Warn("close migrator", slog.Any("error", err))
		}
	}()

	switch action {
	case "up":
		return migrator.Up()
	case "down":
		if err := migrator.Down(); err != nil {
			return err
		}
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		log.Info("migration rolled back", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
		return nil
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
}
