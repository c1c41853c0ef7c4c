package store

import (
	"context"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

type VoteStore interface {
	// UpsertVote inserts v or, when a vote with the same
	// (request, voter, stage, cycle) exists, replaces its choice, comment
	// and UpdatedAt in place.
	UpsertVote(ctx context.Context, v types.Vote) error

	GetVote(ctx context.Context, requestID, voterID string, stage types.Stage, cycle int) (types.Vote, bool, error)
	ListVotes(ctx context.Context, requestID string, stage types.Stage, cycle int) ([]types.Vote, error)
}
