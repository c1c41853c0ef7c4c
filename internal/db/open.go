package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver accepts the configured driver name.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	default:
		return "", errors.Errorf("unknown db driver %q", s)
	}
}

// SQLName is the database/sql driver name registered for d.
func (d Driver) SQLName() string {
	if d == DriverPostgres {
		return "pgx"
	}
	return "sqlite"
}

type Config struct {
	Driver Driver
	Path   string // sqlite file, e.g. "./data/arcreview.db"
	URL    string // postgres connection string
	Env    string // "dev" | "prod"
}

func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	if cfg.Env == "" {
		cfg.Env = "dev"
	}

	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite:
		db, err = openSQLite(cfg)
	case DriverPostgres:
		db, err = openPostgres(cfg)
	default:
		return nil, errors.Errorf("unknown db driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	// Validate connection early.
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "db ping")
	}

	if err := Migrate(ctx, db.DB, cfg.Driver); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func openSQLite(cfg Config) (*sqlx.DB, error) {
	if cfg.Path == "" {
		cfg.Path = "./data/arcreview.db"
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir db dir")
	}

	// modernc.org/sqlite DSN with per-connection PRAGMAs:
	// - foreign_keys ON
	// - WAL for better concurrency
	// - synchronous NORMAL for performance with good safety
	// - busy_timeout to reduce SQLITE_BUSY under load
	dsn := "file:" + cfg.Path +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

	db, err := sqlx.Open(DriverSQLite.SQLName(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlx.Open sqlite")
	}

	// Single connection; writes are serialised by Worker anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

func openPostgres(cfg Config) (*sqlx.DB, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("postgres driver requires a database url")
	}

	db, err := sqlx.Open(DriverPostgres.SQLName(), cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "sqlx.Open postgres")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
