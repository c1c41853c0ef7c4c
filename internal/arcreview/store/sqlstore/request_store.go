package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

const requestColumns = `request_id, owner_id, applicant_name, applicant_email, property_address,
  description, status, stage, cycle, submitted_at_ms, deadline_at_ms, resolved_at_ms,
  auto_approved_reason, created_at_ms, updated_at_ms`

type requestRow struct {
	ID                 string         `db:"request_id"`
	OwnerID            string         `db:"owner_id"`
	ApplicantName      string         `db:"applicant_name"`
	ApplicantEmail     string         `db:"applicant_email"`
	PropertyAddress    string         `db:"property_address"`
	Description        string         `db:"description"`
	Status             string         `db:"status"`
	Stage              string         `db:"stage"`
	Cycle              int            `db:"cycle"`
	SubmittedAtMs      sql.NullInt64  `db:"submitted_at_ms"`
	DeadlineAtMs       sql.NullInt64  `db:"deadline_at_ms"`
	ResolvedAtMs       sql.NullInt64  `db:"resolved_at_ms"`
	AutoApprovedReason sql.NullString `db:"auto_approved_reason"`
	CreatedAtMs        int64          `db:"created_at_ms"`
	UpdatedAtMs        int64          `db:"updated_at_ms"`
}

func (r requestRow) toRequest() types.Request {
	return types.Request{
		ID:                 r.ID,
		OwnerID:            r.OwnerID,
		ApplicantName:      r.ApplicantName,
		ApplicantEmail:     r.ApplicantEmail,
		PropertyAddress:    r.PropertyAddress,
		Description:        r.Description,
		Status:             types.Status(r.Status),
		Stage:              types.Stage(r.Stage),
		Cycle:              r.Cycle,
		SubmittedAt:        timeOrNil(r.SubmittedAtMs),
		DeadlineAt:         timeOrNil(r.DeadlineAtMs),
		ResolvedAt:         timeOrNil(r.ResolvedAtMs),
		AutoApprovedReason: stringOrNil(r.AutoApprovedReason),
		CreatedAt:          fromMs(r.CreatedAtMs),
		UpdatedAt:          fromMs(r.UpdatedAtMs),
	}
}

type requestRepo struct {
	q sqlx.ExtContext

	// locking adds FOR UPDATE on drivers that support row locks.
	locking bool
}

func (r *requestRepo) CreateRequest(ctx context.Context, req types.Request) error {
	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
INSERT INTO requests(`+requestColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`),
		req.ID, req.OwnerID, req.ApplicantName, req.ApplicantEmail, req.PropertyAddress,
		req.Description, string(req.Status), string(req.Stage), req.Cycle,
		nullMs(req.SubmittedAt), nullMs(req.DeadlineAt), nullMs(req.ResolvedAt),
		nullString(req.AutoApprovedReason), toMs(req.CreatedAt), toMs(req.UpdatedAt),
	)
	if err != nil {
		return errors.Wrap(err, "CreateRequest insert")
	}
	return nil
}

func (r *requestRepo) GetRequest(ctx context.Context, id string) (types.Request, error) {
	return r.get(ctx, id, false)
}

func (r *requestRepo) LockRequest(ctx context.Context, id string) (types.Request, error) {
	return r.get(ctx, id, r.locking)
}

func (r *requestRepo) get(ctx context.Context, id string, forUpdate bool) (types.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE request_id = ?`
	if forUpdate && isPostgres(r.q) {
		query += ` FOR UPDATE`
	}

	var row requestRow
	err := sqlx.GetContext(ctx, r.q, &row, r.q.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Request{}, store.ErrNotFound
	}
	if err != nil {
		return types.Request{}, errors.Wrap(err, "GetRequest select")
	}
	return row.toRequest(), nil
}

func (r *requestRepo) UpdateRequest(ctx context.Context, req types.Request, expected types.Status) error {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
UPDATE requests
SET applicant_name = ?,
    applicant_email = ?,
    property_address = ?,
    description = ?,
    status = ?,
    stage = ?,
    cycle = ?,
    submitted_at_ms = ?,
    deadline_at_ms = ?,
    resolved_at_ms = ?,
    auto_approved_reason = ?,
    updated_at_ms = ?
WHERE request_id = ? AND status = ?;`),
		req.ApplicantName, req.ApplicantEmail, req.PropertyAddress, req.Description,
		string(req.Status), string(req.Stage), req.Cycle,
		nullMs(req.SubmittedAt), nullMs(req.DeadlineAt), nullMs(req.ResolvedAt),
		nullString(req.AutoApprovedReason), toMs(req.UpdatedAt),
		req.ID, string(expected),
	)
	if err != nil {
		return errors.Wrap(err, "UpdateRequest")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "UpdateRequest rows affected")
	}
	if n == 1 {
		return nil
	}

	// Zero rows: either the request is gone or its status moved on.
	var exists int
	err = sqlx.GetContext(ctx, r.q, &exists,
		r.q.Rebind(`SELECT COUNT(*) FROM requests WHERE request_id = ?;`), req.ID)
	if err != nil {
		return errors.Wrap(err, "UpdateRequest existence check")
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

// openForDeadline restricts scans to requests the deadline monitor may act on.
const openForDeadline = `
status IN ('ARC_REVIEW', 'BOARD_REVIEW')
AND resolved_at_ms IS NULL
AND auto_approved_reason IS NULL
AND deadline_at_ms IS NOT NULL`

func (r *requestRepo) ListExpired(ctx context.Context, now time.Time) ([]types.Request, error) {
	return r.list(ctx, `
SELECT `+requestColumns+` FROM requests
WHERE `+openForDeadline+`
  AND deadline_at_ms <= ?
ORDER BY deadline_at_ms, request_id;`, toMs(now))
}

func (r *requestRepo) ListDeadlineBetween(ctx context.Context, from, to time.Time) ([]types.Request, error) {
	return r.list(ctx, `
SELECT `+requestColumns+` FROM requests
WHERE `+openForDeadline+`
  AND deadline_at_ms > ?
  AND deadline_at_ms <= ?
ORDER BY deadline_at_ms, request_id;`, toMs(from), toMs(to))
}

func (r *requestRepo) list(ctx context.Context, query string, args ...any) ([]types.Request, error) {
	var rows []requestRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "list requests")
	}
	out := make([]types.Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRequest())
	}
	return out, nil
}
