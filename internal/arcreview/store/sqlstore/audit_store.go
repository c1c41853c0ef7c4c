package sqlstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	dbpkg "github.com/BrandonDHaskell/arcreview/internal/db"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// AuditStore writes audit_entries. The table rejects UPDATE and DELETE
// through triggers; this type only ever inserts.
type AuditStore struct {
	db     *sqlx.DB
	writer dbpkg.Writer
}

func NewAuditStore(db *sqlx.DB, writer dbpkg.Writer) *AuditStore {
	return &AuditStore{db: db, writer: writer}
}

type auditRow struct {
	ID          string `db:"entry_id"`
	RequestID   string `db:"request_id"`
	Action      string `db:"action"`
	FromStatus  string `db:"from_status"`
	ToStatus    string `db:"to_status"`
	ActorID     string `db:"actor_id"`
	Reason      string `db:"reason"`
	Metadata    string `db:"metadata"`
	CreatedAtMs int64  `db:"created_at_ms"`
}

func (s *AuditStore) AppendEntry(ctx context.Context, e types.AuditEntry) error {
	if strings.TrimSpace(e.ID) == "" {
		e.ID = uuid.NewString()
	}

	md := "{}"
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return errors.Wrap(err, "AppendEntry encode metadata")
		}
		md = string(b)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO audit_entries(
  entry_id, request_id, action, from_status, to_status,
  actor_id, reason, metadata, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`),
			e.ID, e.RequestID, string(e.Action), string(e.FromStatus), string(e.ToStatus),
			e.ActorID, e.Reason, md, toMs(e.Timestamp),
		); err != nil {
			return errors.Wrap(err, "AppendEntry insert")
		}
		return nil
	})
}

func (s *AuditStore) ListEntries(ctx context.Context, requestID string) ([]types.AuditEntry, error) {
	var rows []auditRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
SELECT entry_id, request_id, action, from_status, to_status,
       actor_id, reason, metadata, created_at_ms
FROM audit_entries
WHERE request_id = ?
ORDER BY seq;`), requestID); err != nil {
		return nil, errors.Wrap(err, "ListEntries")
	}

	out := make([]types.AuditEntry, 0, len(rows))
	for _, row := range rows {
		e := types.AuditEntry{
			ID:         row.ID,
			RequestID:  row.RequestID,
			Action:     types.AuditAction(row.Action),
			FromStatus: types.Status(row.FromStatus),
			ToStatus:   types.Status(row.ToStatus),
			ActorID:    row.ActorID,
			Reason:     row.Reason,
			Timestamp:  fromMs(row.CreatedAtMs),
		}
		if row.Metadata != "" && row.Metadata != "{}" {
			if err := json.Unmarshal([]byte(row.Metadata), &e.Metadata); err != nil {
				return nil, errors.Wrapf(err, "ListEntries decode metadata %s", row.ID)
			}
		}
		out = append(out, e)
	}
	return out, nil
}
