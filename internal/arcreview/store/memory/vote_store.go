package memory

import (
	"context"
	"sort"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

func (s *Store) UpsertVote(_ context.Context, v types.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := voteKey{requestID: v.RequestID, voterID: v.VoterID, stage: v.Stage, cycle: v.Cycle}
	if cur, ok := s.votes[k]; ok {
		cur.Choice = v.Choice
		cur.Comment = v.Comment
		cur.UpdatedAt = cloneTime(v.UpdatedAt)
		s.votes[k] = cur
		return nil
	}
	s.votes[k] = cloneVote(v)
	return nil
}

func (s *Store) GetVote(_ context.Context, requestID, voterID string, stage types.Stage, cycle int) (types.Vote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.votes[voteKey{requestID: requestID, voterID: voterID, stage: stage, cycle: cycle}]
	if !ok {
		return types.Vote{}, false, nil
	}
	return cloneVote(v), true, nil
}

func (s *Store) ListVotes(_ context.Context, requestID string, stage types.Stage, cycle int) ([]types.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Vote
	for k, v := range s.votes {
		if k.requestID == requestID && k.stage == stage && k.cycle == cycle {
			out = append(out, cloneVote(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].VotedAt.Equal(out[j].VotedAt) {
			return out[i].VotedAt.Before(out[j].VotedAt)
		}
		return out[i].VoterID < out[j].VoterID
	})
	return out, nil
}

func cloneVote(v types.Vote) types.Vote {
	v.UpdatedAt = cloneTime(v.UpdatedAt)
	return v
}
