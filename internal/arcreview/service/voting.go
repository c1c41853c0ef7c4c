package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/notify"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// Ballot is one castVote command. Cycle 0 means the request's current cycle.
type Ballot struct {
	RequestID string
	VoterID   string
	Stage     types.Stage
	Choice    types.Choice
	Comment   string
	Cycle     int
}

// CastVote records (or revises) a vote and resolves the stage when a
// majority is reached, all in one transaction. A decisive outcome moves the
// request on, and ARC approval opens Board review in the same step.
//
// When every eligible voter has abstained the vote is still recorded and
// the resolution is returned together with ErrDeadlocked. Once a stage is
// deadlocked it takes no further votes, revisions included, until it is
// settled through Transition.
func (w *Workflow) CastVote(ctx context.Context, b Ballot) (types.Resolution, error) {
	b.VoterID = strings.TrimSpace(b.VoterID)
	if b.VoterID == "" {
		return types.Resolution{}, invalidInput("voter_id is required")
	}
	if _, err := types.ParseChoice(string(b.Choice)); err != nil {
		return types.Resolution{}, invalidInput("%v", err)
	}
	if b.Stage != types.StageARC && b.Stage != types.StageBoard {
		return types.Resolution{}, invalidInput("unknown stage %q", b.Stage)
	}
	if b.Cycle < 0 {
		return types.Resolution{}, invalidInput("cycle must be positive")
	}

	// Reviewer roles come from the identity system, outside the
	// transaction; recusal is worked out inside it.
	roster, err := w.eligibility.Roster(ctx, b.Stage)
	if err != nil {
		return types.Resolution{}, err
	}

	var (
		res        types.Resolution
		deadlocked bool
	)
	err = w.run(ctx, "cast_vote", func(ctx context.Context, u *unit) error {
		deadlocked = false

		req, err := u.lock(ctx, b.RequestID)
		if err != nil {
			return err
		}
		cycle := b.Cycle
		if cycle == 0 {
			cycle = req.Cycle
		}
		if err := acceptingVotes(req, b.Stage, cycle); err != nil {
			return err
		}

		eligible, err := w.eligibility.Resolve(ctx, u.repos.Votes(), req, b.Stage, cycle, roster)
		if err != nil {
			return err
		}
		if err := checkEligible(eligible, req.OwnerID, b.VoterID, b.Stage); err != nil {
			return err
		}

		votes := u.repos.Votes()
		before, err := votes.ListVotes(ctx, req.ID, b.Stage, cycle)
		if err != nil {
			return errors.Wrap(err, "list votes")
		}
		if prev := Resolve(before, eligible); prev.Outcome != types.OutcomePending {
			return &StageError{
				Stage:        b.Stage,
				Cycle:        cycle,
				Status:       req.Status,
				CurrentCycle: req.Cycle,
				Resolved:     true,
				Deadlocked:   prev.Outcome == types.OutcomeDeadlocked,
			}
		}

		existing, found, err := votes.GetVote(ctx, req.ID, b.VoterID, b.Stage, cycle)
		if err != nil {
			return errors.Wrap(err, "get vote")
		}

		v := types.Vote{
			ID:        uuid.NewString(),
			RequestID: req.ID,
			VoterID:   b.VoterID,
			Stage:     b.Stage,
			Cycle:     cycle,
			Choice:    b.Choice,
			Comment:   strings.TrimSpace(b.Comment),
			VotedAt:   u.now,
		}
		md := map[string]string{
			"stage":  string(b.Stage),
			"cycle":  strconv.Itoa(cycle),
			"choice": string(b.Choice),
		}
		action := types.AuditVoteCast
		if found {
			v.ID = existing.ID
			v.VotedAt = existing.VotedAt
			updated := u.now
			v.UpdatedAt = &updated
			action = types.AuditVoteChanged
			md["previous_choice"] = string(existing.Choice)
		}
		if err := votes.UpsertVote(ctx, v); err != nil {
			return errors.Wrap(err, "upsert vote")
		}
		u.record(types.AuditEntry{
			RequestID:  req.ID,
			Action:     action,
			FromStatus: req.Status,
			ToStatus:   req.Status,
			ActorID:    b.VoterID,
			Reason:     v.Comment,
			Metadata:   md,
		})
		u.notify(notify.Event{
			Type:      notify.EventVoteCast,
			RequestID: req.ID,
			Stage:     b.Stage,
			Cycle:     cycle,
			Status:    req.Status,
			ActorID:   b.VoterID,
		})

		after, err := votes.ListVotes(ctx, req.ID, b.Stage, cycle)
		if err != nil {
			return errors.Wrap(err, "list votes")
		}
		res = Resolve(after, eligible)

		switch {
		case res.Outcome.Decisive():
			return w.resolveStage(ctx, u, &req, res.Outcome, change{
				actor:  b.VoterID,
				reason: majorityReason(res),
				metadata: map[string]string{
					"cycle":           strconv.Itoa(cycle),
					"approve":         strconv.Itoa(res.ApproveCount),
					"deny":            strconv.Itoa(res.DenyCount),
					"return":          strconv.Itoa(res.ReturnCount),
					"abstain":         strconv.Itoa(res.AbstainCount),
					"majority_needed": strconv.Itoa(res.MajorityNeeded),
				},
			})
		case res.Outcome == types.OutcomeDeadlocked:
			deadlocked = true
			u.record(types.AuditEntry{
				RequestID:  req.ID,
				Action:     types.AuditStageDeadlocked,
				FromStatus: req.Status,
				ToStatus:   req.Status,
				ActorID:    types.SystemActor,
				Reason:     "all eligible voters abstained",
				Metadata: map[string]string{
					"stage":          string(b.Stage),
					"cycle":          strconv.Itoa(cycle),
					"total_eligible": strconv.Itoa(res.TotalEligible),
				},
			})
			u.notify(notify.Event{
				Type:      notify.EventStageDeadlocked,
				RequestID: req.ID,
				Stage:     b.Stage,
				Cycle:     cycle,
				Status:    req.Status,
				Outcome:   types.OutcomeDeadlocked,
			})
		}
		return nil
	})
	if err != nil {
		return types.Resolution{}, err
	}
	if deadlocked {
		return res, ErrDeadlocked
	}
	return res, nil
}

// acceptingVotes checks that req is open for votes on stage in cycle.
func acceptingVotes(req types.Request, stage types.Stage, cycle int) error {
	if cycle == req.Cycle && req.Status.UnderReview() && req.Stage == stage && !req.Resolved() {
		return nil
	}
	return &StageError{
		Stage:        stage,
		Cycle:        cycle,
		Status:       req.Status,
		CurrentCycle: req.Cycle,
		Resolved:     stageClosed(req, stage, cycle),
	}
}

// stageClosed reports whether voting on (stage, cycle) already ended.
func stageClosed(req types.Request, stage types.Stage, cycle int) bool {
	switch {
	case cycle < req.Cycle:
		return true
	case cycle > req.Cycle:
		return false
	case req.Resolved():
		return true
	case stage == types.StageARC && req.Stage == types.StageBoard:
		return true
	case stage == req.Stage && req.Status != stage.ReviewStatus() && req.Status != types.StatusSubmitted:
		// ARC_RETURNED, BOARD_RETURNED and friends.
		return true
	}
	return false
}

func majorityReason(res types.Resolution) string {
	n := res.ApproveCount
	switch res.Outcome {
	case types.OutcomeDenied:
		n = res.DenyCount
	case types.OutcomeReturned:
		n = res.ReturnCount
	}
	return fmt.Sprintf("majority %s: %d of %d active voters (needed %d)",
		strings.ToLower(string(res.Outcome)), n, res.ActiveVoters, res.MajorityNeeded)
}

// ResolveOutcome tallies a stage without changing anything. Cycle 0 means
// the current cycle. The result may be used as a projection only; it never
// triggers a transition.
func (w *Workflow) ResolveOutcome(ctx context.Context, requestID string, stage types.Stage, cycle int) (types.Resolution, error) {
	req, eligible, cycle, err := w.eligibleFor(ctx, requestID, stage, cycle)
	if err != nil {
		return types.Resolution{}, err
	}
	votes, err := w.store.Votes().ListVotes(ctx, req.ID, stage, cycle)
	if err != nil {
		return types.Resolution{}, errors.Wrap(err, "list votes")
	}
	return Resolve(votes, eligible), nil
}

// EligibleVoters lists reviewers for (stage, cycle) with recusals marked.
// An empty stage means the request's current stage; cycle 0 the current
// cycle.
func (w *Workflow) EligibleVoters(ctx context.Context, requestID string, stage types.Stage, cycle int) ([]types.EligibleVoter, error) {
	_, eligible, _, err := w.eligibleFor(ctx, requestID, stage, cycle)
	return eligible, err
}

// GetEligibleVoters is EligibleVoters for the current cycle.
func (w *Workflow) GetEligibleVoters(ctx context.Context, requestID string, stage types.Stage) ([]types.EligibleVoter, error) {
	return w.EligibleVoters(ctx, requestID, stage, 0)
}

// EligibleVoterCount is the number of non-recused eligible voters.
func (w *Workflow) EligibleVoterCount(ctx context.Context, requestID string, stage types.Stage, cycle int) (int, error) {
	eligible, err := w.EligibleVoters(ctx, requestID, stage, cycle)
	if err != nil {
		return 0, err
	}
	return CountEligible(eligible), nil
}

func (w *Workflow) eligibleFor(ctx context.Context, requestID string, stage types.Stage, cycle int) (types.Request, []types.EligibleVoter, int, error) {
	req, err := w.GetRequest(ctx, requestID)
	if err != nil {
		return types.Request{}, nil, 0, err
	}
	if stage == types.StageNone {
		stage = req.Stage
	}
	if stage == types.StageNone {
		return types.Request{}, nil, 0, &StageError{Status: req.Status, CurrentCycle: req.Cycle, Cycle: cycle}
	}
	if cycle == 0 {
		cycle = req.Cycle
	}
	if cycle < 0 || cycle > req.Cycle {
		return types.Request{}, nil, 0, invalidInput("request %s has no cycle %d", req.ID, cycle)
	}

	roster, err := w.eligibility.Roster(ctx, stage)
	if err != nil {
		return types.Request{}, nil, 0, err
	}
	eligible, err := w.eligibility.Resolve(ctx, w.store.Votes(), req, stage, cycle, roster)
	if err != nil {
		return types.Request{}, nil, 0, err
	}
	return req, eligible, cycle, nil
}

// ListVotes returns the votes of one stage and cycle; cycle 0 means the
// current cycle. Earlier cycles stay queryable after resubmission.
func (w *Workflow) ListVotes(ctx context.Context, requestID string, stage types.Stage, cycle int) ([]types.Vote, error) {
	req, err := w.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if stage != types.StageARC && stage != types.StageBoard {
		return nil, invalidInput("unknown stage %q", stage)
	}
	if cycle == 0 {
		cycle = req.Cycle
	}
	votes, err := w.store.Votes().ListVotes(ctx, req.ID, stage, cycle)
	if err != nil {
		return nil, errors.Wrap(err, "list votes")
	}
	return votes, nil
}
