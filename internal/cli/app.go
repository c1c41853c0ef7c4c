package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/notify"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/service"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store/sqlstore"
	"github.com/BrandonDHaskell/arcreview/internal/config"
	"github.com/BrandonDHaskell/arcreview/internal/db"
	"github.com/BrandonDHaskell/arcreview/internal/logging"
)

// app is the wired process: database, stores, notifier and workflow.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	db      *sqlx.DB
	writer  db.Writer
	async   *notify.Async
	closers []func() error

	workflow *service.Workflow
	monitor  *service.DeadlineMonitor
}

func loadConfig() (config.Config, *logrus.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

// openDB opens the configured database; migrations run as part of Open.
func openDB(ctx context.Context, cfg config.Config) (*sqlx.DB, db.Driver, error) {
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return nil, "", err
	}
	conn, err := db.Open(ctx, db.Config{
		Driver: driver,
		Path:   cfg.DBPath,
		URL:    cfg.DatabaseURL,
		Env:    cfg.Env,
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "open database")
	}
	return conn, driver, nil
}

func newApp(ctx context.Context, cfg config.Config, log *logrus.Logger) (*app, error) {
	conn, driver, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: conn}
	a.closers = append(a.closers, conn.Close)

	if cfg.SeedDev && cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{Members: db.DevMembers()}); err != nil {
			a.Close()
			return nil, errors.Wrap(err, "seed dev members")
		}
		log.Info("dev members seeded")
	}

	var next notify.Dispatcher = notify.NewLogDispatcher(log)
	if cfg.NotifyBackend == "redis" {
		rd, err := notify.NewRedisDispatcher(cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "redis notifier")
		}
		a.closers = append(a.closers, rd.Close)
		next = rd
	}
	a.async = notify.NewAsync(next, cfg.NotifyTimeout, log)

	a.writer = db.NewWriter(conn, driver)
	a.workflow = service.New(service.Dependencies{
		Store:        sqlstore.New(conn, a.writer),
		Roles:        sqlstore.NewMemberStore(conn),
		Notifier:     a.async,
		Logger:       log,
		ReviewWindow: cfg.ReviewWindow(),
	})
	a.monitor = service.NewDeadlineMonitor(a.workflow, cfg.DeadlineSweepInterval, log)
	return a, nil
}

// Close drains pending notifications, stops the writer and closes
// connections in reverse order of opening.
func (a *app) Close() {
	if a.async != nil {
		a.async.Wait()
	}
	if a.writer != nil {
		a.writer.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close")
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
