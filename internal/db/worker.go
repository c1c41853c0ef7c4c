package db

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"
)

type TxFn func(ctx context.Context, tx *sqlx.Tx) error

// Writer runs fn inside a single transaction, committing when fn returns nil.
type Writer interface {
	Do(ctx context.Context, fn TxFn) error
	Close()
}

// NewWriter picks the writer suited to driver: sqlite gets the
// single-writer queue, postgres opens a transaction per call.
func NewWriter(db *sqlx.DB, driver Driver) Writer {
	if driver == DriverPostgres {
		return NewDirect(db)
	}
	return NewWorker(db)
}

type job struct {
	ctx context.Context
	fn  TxFn
	ch  chan error
}

// Worker funnels every write transaction through one goroutine.
type Worker struct {
	db   *sqlx.DB
	jobs chan job
	done chan struct{}
}

func NewWorker(db *sqlx.DB) *Worker {
	w := &Worker{
		db:   db,
		jobs: make(chan job, 256),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) Close() {
	close(w.jobs)
	<-w.done
}

func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	ch := make(chan error, 1)
	j := job{ctx: ctx, fn: fn, ch: ch}

	// Enqueue; bail out if the caller's context expires while the buffer is full.
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	// The worker loop still completes the transaction if the caller gives up.
	// The result lands in the buffered ch and is discarded.
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		j.ch <- runTx(j.ctx, w.db, j.fn)
	}
}

// Direct opens a transaction per call and relies on the database for
// isolation. Used for postgres.
type Direct struct {
	db *sqlx.DB
}

func NewDirect(db *sqlx.DB) *Direct {
	return &Direct{db: db}
}

func (d *Direct) Do(ctx context.Context, fn TxFn) error {
	return runTx(ctx, d.db, fn)
}

func (d *Direct) Close() {}

func runTx(ctx context.Context, db *sqlx.DB, fn TxFn) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}
