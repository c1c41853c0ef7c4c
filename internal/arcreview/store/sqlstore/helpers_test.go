package sqlstore_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store/sqlstore"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
	"github.com/BrandonDHaskell/arcreview/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production. The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	// Each test gets its own in-memory database. The shared-cache URI
	// keeps it alive for the lifetime of the pool.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sqlx.Open("sqlite", dsn)
	require.NoError(t, err, "sqlx.Open")

	// Match production: single connection for SQLite safety.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	require.NoError(t, conn.Ping(), "ping")
	require.NoError(t, db.Migrate(context.Background(), conn.DB, db.DriverSQLite), "migrate")

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestStore wires a Store over conn with a single-writer worker that is
// closed when the test finishes.
func newTestStore(t *testing.T, conn *sqlx.DB) *sqlstore.Store {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return sqlstore.New(conn, w)
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newRequest(id string, status types.Status) types.Request {
	return types.Request{
		ID:              id,
		OwnerID:         "owner-1",
		ApplicantName:   "Finley Owner",
		ApplicantEmail:  "owner-1@hoa.test",
		PropertyAddress: "12 Elm Ct",
		Description:     "Replace front fence",
		Status:          status,
		Stage:           status.Stage(),
		Cycle:           1,
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
}

// underReview returns a request in ARC_REVIEW whose deadline is deadline.
func underReview(id string, deadline time.Time) types.Request {
	r := newRequest(id, types.StatusARCReview)
	sub := deadline.Add(-30 * 24 * time.Hour)
	r.SubmittedAt = &sub
	r.DeadlineAt = &deadline
	return r
}
