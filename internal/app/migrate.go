package app

import (
	"errors"
	"fmt"
	"os"

	"moodcanvas/internal/storage"
)

// Migrate applies, rolls back, or reports database migrations.
func (a *App) Migrate(direction string) error {
	dsn := a.Config.Database.DSN
	if dsn == "" {
		return errors.New("database.dsn is required for migrations")
	}
	path := a.Config.Database.MigrationsPath

	switch direction {
	case "up":
		if err := storage.RunMigrations(dsn, path); err != nil {
			return err
		}
		a.Logger.Info().Msg("migrations applied")
	case "down":
		if err := storage.RollbackMigration(dsn, path); err != nil {
			return err
		}
		a.Logger.Info().Msg("last migration rolled back")
	case "version":
		version, dirty, err := storage.MigrationVersion(dsn, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "version: %d dirty: %v\n", version, dirty)
	default:
		return fmt.Errorf("unknown migrate direction %q", direction)
	}
	return nil
}
