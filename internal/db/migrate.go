package db

import (
	"context"
	"database/sql"
	"embed"

	"github.com/go-faster/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// gooseUp is swapped in tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Migrate applies the embedded migrations for driver.
func Migrate(ctx context.Context, db *sql.DB, driver Driver) error {
	dialect, dir, err := migrationTarget(driver)
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "goose dialect")
	}

	if err := gooseUp(ctx, db, dir); err != nil {
		return errors.Wrapf(err, "apply %s migrations", driver)
	}
	return nil
}

func migrationTarget(driver Driver) (dialect, dir string, err error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", "migrations/sqlite", nil
	case DriverPostgres:
		return "postgres", "migrations/postgres", nil
	default:
		return "", "", errors.Errorf("no migrations for driver %q", driver)
	}
}
