// Package sqlstore implements the workflow stores on sqlx. The same code
// serves modernc sqlite and pgx postgres; queries are written with "?"
// placeholders and rebound per driver.
package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	dbpkg "github.com/BrandonDHaskell/arcreview/internal/db"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store"
)

type Store struct {
	db     *sqlx.DB
	writer dbpkg.Writer
	audit  *AuditStore
}

func New(db *sqlx.DB, writer dbpkg.Writer) *Store {
	return &Store{
		db:     db,
		writer: writer,
		audit:  NewAuditStore(db, writer),
	}
}

func (s *Store) Requests() store.RequestStore { return &requestRepo{q: s.db} }
func (s *Store) Votes() store.VoteStore       { return &voteRepo{q: s.db} }
func (s *Store) Audit() store.AuditStore      { return s.audit }
func (s *Store) AuditLog() store.AuditReader  { return s.audit }

// WithinTx runs fn through the writer so every repository call shares one
// *sqlx.Tx. On sqlite that also means one writer at a time.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos store.Repositories) error) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, txRepos{tx: tx})
	})
}

type txRepos struct {
	tx *sqlx.Tx
}

func (r txRepos) Requests() store.RequestStore { return &requestRepo{q: r.tx, locking: true} }
func (r txRepos) Votes() store.VoteStore       { return &voteRepo{q: r.tx} }

func toMs(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMs(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMs(*t), Valid: true}
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMs(v.Int64)
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringOrNil(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// isPostgres reports whether q talks to postgres, which needs explicit row
// locks.
func isPostgres(q sqlx.ExtContext) bool {
	return sqlx.BindType(q.DriverName()) == sqlx.DOLLAR
}
