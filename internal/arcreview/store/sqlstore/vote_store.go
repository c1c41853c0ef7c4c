package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

const voteColumns = `vote_id, request_id, voter_id, stage, cycle, choice, comment, voted_at_ms, updated_at_ms`

type voteRow struct {
	ID          string        `db:"vote_id"`
	RequestID   string        `db:"request_id"`
	VoterID     string        `db:"voter_id"`
	Stage       string        `db:"stage"`
	Cycle       int           `db:"cycle"`
	Choice      string        `db:"choice"`
	Comment     string        `db:"comment"`
	VotedAtMs   int64         `db:"voted_at_ms"`
	UpdatedAtMs sql.NullInt64 `db:"updated_at_ms"`
}

func (r voteRow) toVote() types.Vote {
	return types.Vote{
		ID:        r.ID,
		RequestID: r.RequestID,
		VoterID:   r.VoterID,
		Stage:     types.Stage(r.Stage),
		Cycle:     r.Cycle,
		Choice:    types.Choice(r.Choice),
		Comment:   r.Comment,
		VotedAt:   fromMs(r.VotedAtMs),
		UpdatedAt: timeOrNil(r.UpdatedAtMs),
	}
}

type voteRepo struct {
	q sqlx.ExtContext
}

// UpsertVote relies on ux_votes_identity: a second cast by the same voter
// for the same stage and cycle rewrites the existing row.
func (r *voteRepo) UpsertVote(ctx context.Context, v types.Vote) error {
	if strings.TrimSpace(v.ID) == "" {
		v.ID = uuid.NewString()
	}

	if _, err := r.q.ExecContext(ctx, r.q.Rebind(`
INSERT INTO votes(`+voteColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(request_id, voter_id, stage, cycle) DO UPDATE SET
  choice = excluded.choice,
  comment = excluded.comment,
  updated_at_ms = excluded.updated_at_ms;`),
		v.ID, v.RequestID, v.VoterID, string(v.Stage), v.Cycle,
		string(v.Choice), v.Comment, toMs(v.VotedAt), nullMs(v.UpdatedAt),
	); err != nil {
		return errors.Wrap(err, "UpsertVote")
	}
	return nil
}

func (r *voteRepo) GetVote(ctx context.Context, requestID, voterID string, stage types.Stage, cycle int) (types.Vote, bool, error) {
	var row voteRow
	err := sqlx.GetContext(ctx, r.q, &row, r.q.Rebind(`
SELECT `+voteColumns+` FROM votes
WHERE request_id = ? AND voter_id = ? AND stage = ? AND cycle = ?;`),
		requestID, voterID, string(stage), cycle)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Vote{}, false, nil
	}
	if err != nil {
		return types.Vote{}, false, errors.Wrap(err, "GetVote")
	}
	return row.toVote(), true, nil
}

func (r *voteRepo) ListVotes(ctx context.Context, requestID string, stage types.Stage, cycle int) ([]types.Vote, error) {
	var rows []voteRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(`
SELECT `+voteColumns+` FROM votes
WHERE request_id = ? AND stage = ? AND cycle = ?
ORDER BY voted_at_ms, voter_id;`),
		requestID, string(stage), cycle,
	); err != nil {
		return nil, errors.Wrap(err, "ListVotes")
	}

	out := make([]types.Vote, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toVote())
	}
	return out, nil
}
