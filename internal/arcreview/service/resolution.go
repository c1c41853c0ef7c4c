package service

import "github.com/BrandonDHaskell/arcreview/internal/arcreview/types"

// Resolve tallies votes against the eligible set. Only votes from
// non-recused eligible voters count. A stage resolves only once a choice
// actually holds a majority of the non-abstaining voters; there is no
// early resolution by elimination and no tie-breaker.
func Resolve(votes []types.Vote, eligible []types.EligibleVoter) types.Resolution {
	counted := make(map[string]bool, len(eligible))
	for _, v := range eligible {
		if !v.Recused {
			counted[v.VoterID] = true
		}
	}

	res := types.Resolution{TotalEligible: len(counted)}
	cast := 0
	for _, v := range votes {
		if !counted[v.VoterID] {
			continue
		}
		cast++
		switch v.Choice {
		case types.ChoiceApprove:
			res.ApproveCount++
		case types.ChoiceDeny:
			res.DenyCount++
		case types.ChoiceReturn:
			res.ReturnCount++
		case types.ChoiceAbstain:
			res.AbstainCount++
		}
	}

	res.ActiveVoters = res.TotalEligible - res.AbstainCount
	res.MajorityNeeded = res.ActiveVoters/2 + 1
	res.AllVotesCast = cast == res.TotalEligible

	switch {
	case res.ActiveVoters == 0:
		res.Outcome = types.OutcomeDeadlocked
	case res.ApproveCount >= res.MajorityNeeded:
		res.Outcome = types.OutcomeApproved
	case res.DenyCount >= res.MajorityNeeded:
		res.Outcome = types.OutcomeDenied
	case res.ReturnCount >= res.MajorityNeeded:
		res.Outcome = types.OutcomeReturned
	default:
		res.Outcome = types.OutcomePending
	}
	return res
}
