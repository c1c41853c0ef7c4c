package service

import (
	"context"
	"sort"

	"github.com/go-faster/errors"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// RoleProvider is the read-only view of the identity system used to find
// reviewers. store.MemberStore implementations satisfy it.
type RoleProvider interface {
	GetMember(ctx context.Context, id string) (types.Member, error)
	ActiveMembersWithRole(ctx context.Context, role types.Role) ([]types.Member, error)
}

// EligibilityResolver computes who may vote on a request at a given stage
// and cycle. Nothing it returns is stored.
type EligibilityResolver struct {
	roles RoleProvider
}

func NewEligibilityResolver(roles RoleProvider) *EligibilityResolver {
	return &EligibilityResolver{roles: roles}
}

// Roster returns the active members holding the role that reviews stage.
// Dual-role members hold both roles and appear for either stage.
func (r *EligibilityResolver) Roster(ctx context.Context, stage types.Stage) ([]types.Member, error) {
	var role types.Role
	switch stage {
	case types.StageARC:
		role = types.RoleARC
	case types.StageBoard:
		role = types.RoleBoard
	default:
		return nil, invalidInput("unknown stage %q", stage)
	}

	members, err := r.roles.ActiveMembersWithRole(ctx, role)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup %s reviewers", role)
	}
	return members, nil
}

// Resolve applies the recusal rules to roster. ARC votes of the same cycle
// are read through votes so the Board carry-over recusal sees the caller's
// transaction.
func (r *EligibilityResolver) Resolve(
	ctx context.Context,
	votes store.VoteStore,
	req types.Request,
	stage types.Stage,
	cycle int,
	roster []types.Member,
) ([]types.EligibleVoter, error) {
	var arcVotes []types.Vote
	if stage == types.StageBoard {
		var err error
		arcVotes, err = votes.ListVotes(ctx, req.ID, types.StageARC, cycle)
		if err != nil {
			return nil, errors.Wrap(err, "list ARC votes")
		}
	}
	return ComputeEligibility(roster, req.OwnerID, stage, arcVotes), nil
}

// ComputeEligibility is the pure core of the resolver:
//  1. start from roster,
//  2. leave out the request owner entirely,
//  3. at Board stage, recuse dual-role members who cast a non-abstain ARC
//     vote in arcVotes (which must be the same cycle's ARC votes).
//
// Output is sorted by voter id.
func ComputeEligibility(roster []types.Member, ownerID string, stage types.Stage, arcVotes []types.Vote) []types.EligibleVoter {
	votedInARC := make(map[string]bool, len(arcVotes))
	for _, v := range arcVotes {
		if v.Choice != types.ChoiceAbstain {
			votedInARC[v.VoterID] = true
		}
	}

	seen := make(map[string]bool, len(roster))
	out := make([]types.EligibleVoter, 0, len(roster))
	for _, m := range roster {
		if !m.Active || seen[m.ID] || m.ID == ownerID {
			continue
		}
		seen[m.ID] = true

		ev := types.EligibleVoter{VoterID: m.ID, Role: m.ReviewerLabel()}
		if stage == types.StageBoard && m.DualRole() && votedInARC[m.ID] {
			ev.Recused = true
			ev.RecusalReason = reason(types.RecusalVotedInARCReview)
		}
		out = append(out, ev)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].VoterID < out[j].VoterID })
	return out
}

// CountEligible is the number of voters not recused.
func CountEligible(voters []types.EligibleVoter) int {
	n := 0
	for _, v := range voters {
		if !v.Recused {
			n++
		}
	}
	return n
}

// checkEligible returns nil when voterID may vote on ownerID's request
// given voters.
func checkEligible(voters []types.EligibleVoter, ownerID, voterID string, stage types.Stage) error {
	if voterID == ownerID {
		return &EligibilityError{VoterID: voterID, Stage: stage, Reason: types.RecusalRequestOwner}
	}
	for _, v := range voters {
		if v.VoterID != voterID {
			continue
		}
		if v.Recused {
			return &EligibilityError{VoterID: voterID, Stage: stage, Reason: *v.RecusalReason}
		}
		return nil
	}
	return &EligibilityError{VoterID: voterID, Stage: stage, Reason: ReasonNotReviewer}
}

func reason(s string) *string { return &s }
