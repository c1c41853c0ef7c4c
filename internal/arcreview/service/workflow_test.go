package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/notify"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/service"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// ═══════════════════════════════════════════════════════════════════════════
// Transition table
// ═══════════════════════════════════════════════════════════════════════════

func TestCanTransition_MatchesTable(t *testing.T) {
	legal := map[[2]types.Status]bool{
		{types.StatusDraft, types.StatusSubmitted}:           true,
		{types.StatusSubmitted, types.StatusARCReview}:       true,
		{types.StatusARCReview, types.StatusARCApproved}:     true,
		{types.StatusARCReview, types.StatusARCDenied}:       true,
		{types.StatusARCReview, types.StatusARCReturned}:     true,
		{types.StatusARCReturned, types.StatusSubmitted}:     true,
		{types.StatusARCApproved, types.StatusBoardReview}:   true,
		{types.StatusBoardReview, types.StatusBoardApproved}: true,
		{types.StatusBoardReview, types.StatusBoardDenied}:   true,
		{types.StatusBoardReview, types.StatusBoardReturned}: true,
		{types.StatusBoardReturned, types.StatusSubmitted}:   true,
	}

	for _, from := range types.AllStatuses {
		for _, to := range types.AllStatuses {
			assert.Equal(t, legal[[2]types.Status{from, to}], service.CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	for _, s := range []types.Status{types.StatusARCDenied, types.StatusBoardDenied, types.StatusBoardApproved} {
		assert.Empty(t, service.NextStatuses(s), "%s is terminal", s)
	}
}

func TestTransition_IllegalEdgeLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.submitted(t, "owner-1")
	before := f.audit(t, req.ID)

	_, err := f.wf.Transition(ctx, req.ID, types.StatusBoardApproved, "chair", "skip ahead")
	require.ErrorIs(t, err, service.ErrInvalidTransition)

	var te *service.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, types.StatusARCReview, te.From)
	assert.Equal(t, types.StatusBoardApproved, te.To)

	assert.Equal(t, types.StatusARCReview, f.request(t, req.ID).Status)
	assert.Len(t, f.audit(t, req.ID), len(before))
}

func TestTransition_DecisiveEdgeNeedsDeadlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.submitted(t, "owner-1")
	f.mustVote(t, req.ID, "arc-1", types.StageARC, types.ChoiceDeny)
	before := f.audit(t, req.ID)

	for _, to := range []types.Status{types.StatusARCApproved, types.StatusARCDenied, types.StatusARCReturned} {
		_, err := f.wf.Transition(ctx, req.ID, to, "board-1", "overrule")
		require.ErrorIs(t, err, service.ErrInvalidTransition, to)

		var te *service.TransitionError
		require.ErrorAs(t, err, &te)
		assert.NotEmpty(t, te.Reason)
	}

	got := f.request(t, req.ID)
	assert.Equal(t, types.StatusARCReview, got.Status)
	assert.Nil(t, got.ResolvedAt)
	assert.Len(t, f.audit(t, req.ID), len(before))
}

func TestTransition_RejectsSubmitAndBoardOpen(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "owner-1")

	_, err := f.wf.Transition(context.Background(), req.ID, types.StatusSubmitted, "chair", "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = f.wf.Transition(context.Background(), req.ID, types.StatusBoardReview, "chair", "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

// ═══════════════════════════════════════════════════════════════════════════
// Intake
// ═══════════════════════════════════════════════════════════════════════════

func TestCreateRequest_Draft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wf.CreateRequest(ctx, service.NewRequest{Description: "x"})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	_, err = f.wf.CreateRequest(ctx, service.NewRequest{OwnerID: "owner-1", Description: "  "})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	req, err := f.wf.CreateRequest(ctx, service.NewRequest{OwnerID: "owner-1", Description: "Paint door"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusDraft, req.Status)
	assert.Equal(t, types.StageNone, req.Stage)
	assert.Equal(t, 1, req.Cycle)
	assert.Nil(t, req.SubmittedAt)
	assert.Nil(t, req.DeadlineAt)

	entries := f.audit(t, req.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, types.AuditRequestCreated, entries[0].Action)
	assert.Equal(t, "owner-1", entries[0].ActorID)
}

func TestSubmit_OpensARCReviewWithDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.wf.CreateRequest(ctx, service.NewRequest{OwnerID: "owner-1", Description: "Deck"})
	require.NoError(t, err)

	_, err = f.wf.Submit(ctx, req.ID, "arc-1")
	require.ErrorIs(t, err, service.ErrNotOwner)

	req, err = f.wf.Submit(ctx, req.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusARCReview, req.Status)
	assert.Equal(t, types.StageARC, req.Stage)
	require.NotNil(t, req.SubmittedAt)
	require.NotNil(t, req.DeadlineAt)
	assert.True(t, f.clock.Now().Equal(*req.SubmittedAt))
	assert.Equal(t, 30*24*time.Hour, req.DeadlineAt.Sub(*req.SubmittedAt))

	entries := f.audit(t, req.ID)
	assert.Equal(t, 1, countAudit(entries, types.AuditRequestSubmitted, types.StatusDraft, types.StatusSubmitted))
	assert.Equal(t, 1, countAudit(entries, types.AuditStatusChanged, types.StatusSubmitted, types.StatusARCReview))
	assert.Equal(t, types.SystemActor, entries[len(entries)-1].ActorID)

	_, err = f.wf.Submit(ctx, req.ID, "owner-1")
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	_, err = f.wf.Submit(ctx, "missing", "owner-1")
	assert.ErrorIs(t, err, service.ErrRequestNotFound)
}

// ═══════════════════════════════════════════════════════════════════════════
// Scenario 1: 3 ARC members, one abstains, two approve
// ═══════════════════════════════════════════════════════════════════════════

func TestScenario_ARCApprovalOpensBoardReview(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "owner-1")

	res := f.mustVote(t, req.ID, "dual-1", types.StageARC, types.ChoiceAbstain)
	assert.Equal(t, types.OutcomePending, res.Outcome)

	res = f.mustVote(t, req.ID, "arc-1", types.StageARC, types.ChoiceApprove)
	assert.Equal(t, types.OutcomePending, res.Outcome)
	assert.Equal(t, 2, res.ActiveVoters)
	assert.Equal(t, 2, res.MajorityNeeded)

	res = f.mustVote(t, req.ID, "arc-2", types.StageARC, types.ChoiceApprove)
	assert.Equal(t, types.OutcomeApproved, res.Outcome)
	assert.True(t, res.AllVotesCast)

	got := f.request(t, req.ID)
	assert.Equal(t, types.StatusBoardReview, got.Status)
	assert.Equal(t, types.StageBoard, got.Stage)
	assert.Nil(t, got.ResolvedAt)

	entries := f.audit(t, req.ID)
	require.Equal(t, 1, countAudit(entries, types.AuditStatusChanged, types.StatusARCReview, types.StatusARCApproved))
	require.Equal(t, 1, countAudit(entries, types.AuditStatusChanged, types.StatusARCApproved, types.StatusBoardReview))

	last := entries[len(entries)-1]
	assert.Equal(t, types.StatusBoardReview, last.ToStatus)
	assert.Equal(t, types.SystemActor, last.ActorID)
	prev := entries[len(entries)-2]
	assert.Equal(t, types.StatusARCApproved, prev.ToStatus)
	assert.Equal(t, "arc-2", prev.ActorID)

	var resolved []notify.Event
	for _, ev := range f.events.Events() {
		if ev.Type == notify.EventStageResolved {
			resolved = append(resolved, ev)
		}
	}
	require.Len(t, resolved, 1)
	assert.Equal(t, types.StageARC, resolved[0].Stage)
	assert.Equal(t, types.OutcomeApproved, resolved[0].Outcome)
}

// ═══════════════════════════════════════════════════════════════════════════
// Scenario 2: Board with a dual-role member who voted in ARC
// ═══════════════════════════════════════════════════════════════════════════

func TestScenario_BoardApprovalWithCarryOverRecusal(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "owner-1")
	f.approveARC(t, req.ID, "dual-1", "arc-1")

	_, err := f.vote(t, req.ID, "dual-1", types.StageBoard, types.ChoiceApprove)
	require.ErrorIs(t, err, service.ErrNotEligible)

	res := f.mustVote(t, req.ID, "board-1", types.StageBoard, types.ChoiceApprove)
	assert.Equal(t, 4, res.TotalEligible)
	assert.Equal(t, 3, res.MajorityNeeded)
	f.mustVote(t, req.ID, "board-2", types.StageBoard, types.ChoiceApprove)
	res = f.mustVote(t, req.ID, "board-3", types.StageBoard, types.ChoiceApprove)
	assert.Equal(t, types.OutcomeApproved, res.Outcome)

	got := f.request(t, req.ID)
	assert.Equal(t, types.StatusBoardApproved, got.Status)
	require.NotNil(t, got.ResolvedAt)
	assert.Nil(t, got.AutoApprovedReason)

	_, err = f.vote(t, req.ID, "board-4", types.StageBoard, types.ChoiceDeny)
	assert.ErrorIs(t, err, service.ErrAlreadyResolved)
}

// ═══════════════════════════════════════════════════════════════════════════
// Scenario 3: Board return, resubmission, cycle 2
// ═══════════════════════════════════════════════════════════════════════════

func TestScenario_BoardReturnStartsNewCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.submitted(t, "owner-1")
	firstDeadline := *req.DeadlineAt
	f.approveARC(t, req.ID, "dual-1", "arc-1")

	f.mustVote(t, req.ID, "board-1", types.StageBoard, types.ChoiceReturn)
	f.mustVote(t, req.ID, "board-2", types.StageBoard, types.ChoiceReturn)
	res := f.mustVote(t, req.ID, "board-3", types.StageBoard, types.ChoiceReturn)
	require.Equal(t, types.OutcomeReturned, res.Outcome)
	require.Equal(t, types.StatusBoardReturned, f.request(t, req.ID).Status)

	f.clock.Advance(3 * 24 * time.Hour)
	got, err := f.wf.Submit(ctx, req.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Cycle)
	assert.Equal(t, types.StatusARCReview, got.Status, "re-enters ARC review, not Board")
	require.NotNil(t, got.DeadlineAt)
	assert.True(t, got.DeadlineAt.After(firstDeadline), "deadline recomputed from the new submission")

	cur, err := f.wf.ListVotes(ctx, req.ID, types.StageARC, 0)
	require.NoError(t, err)
	assert.Empty(t, cur)

	old, err := f.wf.ListVotes(ctx, req.ID, types.StageARC, 1)
	require.NoError(t, err)
	assert.Len(t, old, 2)
	oldBoard, err := f.wf.ListVotes(ctx, req.ID, types.StageBoard, 1)
	require.NoError(t, err)
	assert.Len(t, oldBoard, 3)

	proj, err := f.wf.ResolveOutcome(ctx, req.ID, types.StageARC, 0)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomePending, proj.Outcome)
	assert.Zero(t, proj.ApproveCount, "prior-cycle votes are not counted")

	// dual-1 voted in ARC cycle 1; that recusal does not follow into cycle 2.
	voters, err := f.wf.GetEligibleVoters(ctx, req.ID, types.StageBoard)
	require.NoError(t, err)
	assert.False(t, findVoter(t, voters, "dual-1").Recused)

	entries := f.audit(t, req.ID)
	assert.Equal(t, 1, countAudit(entries, types.AuditCycleIncremented, "", ""))
	assert.Equal(t, 1, countAudit(entries, types.AuditRequestSubmitted, types.StatusBoardReturned, types.StatusSubmitted))

	// A ballot addressed to the closed cycle is refused.
	_, err = f.wf.CastVote(ctx, service.Ballot{
		RequestID: req.ID, VoterID: "arc-2", Stage: types.StageARC, Choice: types.ChoiceApprove, Cycle: 1,
	})
	assert.ErrorIs(t, err, service.ErrAlreadyResolved)

	// Fresh cycle resolves on its own votes only.
	f.mustVote(t, req.ID, "arc-2", types.StageARC, types.ChoiceDeny)
	res = f.mustVote(t, req.ID, "arc-1", types.StageARC, types.ChoiceDeny)
	assert.Equal(t, types.OutcomeDenied, res.Outcome)
	assert.Equal(t, 0, res.ApproveCount)

	final := f.request(t, req.ID)
	assert.Equal(t, types.StatusARCDenied, final.Status)
	assert.NotNil(t, final.ResolvedAt)
}

func TestScenario_ARCReturnResubmission(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "owner-1")

	f.mustVote(t, req.ID, "arc-1", types.StageARC, types.ChoiceReturn)
	f.mustVote(t, req.ID, "arc-2", types.StageARC, types.ChoiceReturn)
	assert.Equal(t, types.StatusARCReturned, f.request(t, req.ID).Status)

	_, err := f.vote(t, req.ID, "dual-1", types.StageARC, types.ChoiceApprove)
	assert.ErrorIs(t, err, service.ErrAlreadyResolved)

	got, err := f.wf.Submit(context.Background(), req.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Cycle)
	assert.Equal(t, types.StatusARCReview, got.Status)
}

// ═══════════════════════════════════════════════════════════════════════════
// Scenario 4: everybody abstains
// ═══════════════════════════════════════════════════════════════════════════

func TestScenario_AllAbstainDeadlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.submitted(t, "owner-1")

	f.mustVote(t, req.ID, "arc-1", types.StageARC, types.ChoiceAbstain)
	f.mustVote(t, req.ID, "arc-2", types.StageARC, types.ChoiceAbstain)
	res, err := f.vote(t, req.ID, "dual-1", types.StageARC, types.ChoiceAbstain)
	require.ErrorIs(t, err, service.ErrDeadlocked)
	assert.Equal(t, types.OutcomeDeadlocked, res.Outcome)
	assert.Equal(t, 0, res.ActiveVoters)

	assert.Equal(t, types.StatusARCReview, f.request(t, req.ID).Status, "status unchanged")

	entriesBefore := f.audit(t, req.ID)
	assert.Equal(t, 1, countAudit(entriesBefore, types.AuditStageDeadlocked, "", ""))

	// The stage is locked until the chair decides: neither a revision nor a
	// repeated abstention is taken.
	for _, b := range []struct {
		voter  string
		choice types.Choice
	}{
		{"arc-1", types.ChoiceApprove},
		{"dual-1", types.ChoiceAbstain},
	} {
		res, err := f.vote(t, req.ID, b.voter, types.StageARC, b.choice)
		require.ErrorIs(t, err, service.ErrDeadlocked, b.voter)
		assert.NotErrorIs(t, err, service.ErrAlreadyResolved)
		assert.Equal(t, types.Resolution{}, res)

		var se *service.StageError
		require.ErrorAs(t, err, &se)
		assert.True(t, se.Deadlocked)
	}

	votes, err := f.wf.ListVotes(ctx, req.ID, types.StageARC, 0)
	require.NoError(t, err)
	require.Len(t, votes, 3)
	for _, v := range votes {
		assert.Equal(t, types.ChoiceAbstain, v.Choice, v.VoterID)
		assert.Nil(t, v.UpdatedAt, v.VoterID)
	}
	assert.Equal(t, types.StatusARCReview, f.request(t, req.ID).Status)
	assert.Len(t, f.audit(t, req.ID), len(entriesBefore))

	out, err := f.wf.ResolveOutcome(ctx, req.ID, types.StageARC, 0)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeDeadlocked, out.Outcome)

	// The board chair steps in.
	got, err := f.wf.Transition(ctx, req.ID, types.StatusARCApproved, "board-1", "chair decision after deadlock")
	require.NoError(t, err)
	assert.Equal(t, types.StatusBoardReview, got.Status)

	entries := f.audit(t, req.ID)
	assert.Equal(t, 1, countAudit(entries, types.AuditStatusChanged, types.StatusARCReview, types.StatusARCApproved))
	assert.Equal(t, 1, countAudit(entries, types.AuditStatusChanged, types.StatusARCApproved, types.StatusBoardReview))
}

// ═══════════════════════════════════════════════════════════════════════════
// Vote identity and stage locking
// ═══════════════════════════════════════════════════════════════════════════

func TestCastVote_SecondCastUpdatesNotDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.submitted(t, "owner-1")

	f.mustVote(t, req.ID, "arc-1", types.StageARC, types.ChoiceDeny)
	f.clock.Advance(time.Hour)
	f.mustVote(t, req.ID, "arc-1", types.StageARC, types.ChoiceReturn)

	votes, err := f.wf.ListVotes(ctx, req.ID, types.StageARC, 0)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, types.ChoiceReturn, votes[0].Choice)
	require.NotNil(t, votes[0].UpdatedAt)
	assert.True(t, votes[0].UpdatedAt.After(votes[0].VotedAt))

	entries := f.audit(t, req.ID)
	assert.Equal(t, 1, countAudit(entries, types.AuditVoteCast, "", ""))
	require.Equal(t, 1, countAudit(entries, types.AuditVoteChanged, "", ""))
	for _, e := range entries {
		if e.Action == types.AuditVoteChanged {
			assert.Equal(t, "DENY", e.Metadata["previous_choice"])
		}
	}
}

func TestCastVote_WrongStage(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "owner-1")

	_, err := f.vote(t, req.ID, "board-1", types.StageBoard, types.ChoiceApprove)
	require.ErrorIs(t, err, service.ErrWrongStage)

	var se *service.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, types.StatusARCReview, se.Status)
}

func TestCastVote_LockedAfterResolution(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "owner-1")
	f.approveARC(t, req.ID, "arc-1", "arc-2")

	_, err := f.vote(t, req.ID, "dual-1", types.StageARC, types.ChoiceDeny)
	require.ErrorIs(t, err, service.ErrAlreadyResolved)

	res, err := f.wf.ResolveOutcome(context.Background(), req.ID, types.StageARC, 0)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeApproved, res.Outcome, "outcome is monotonic")
	assert.Equal(t, 0, res.DenyCount)
}

func TestCastVote_InputValidation(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "owner-1")
	ctx := context.Background()

	for _, b := range []service.Ballot{
		{RequestID: req.ID, VoterID: "", Stage: types.StageARC, Choice: types.ChoiceApprove},
		{RequestID: req.ID, VoterID: "arc-1", Stage: types.StageARC, Choice: "MAYBE"},
		{RequestID: req.ID, VoterID: "arc-1", Stage: types.StageNone, Choice: types.ChoiceApprove},
		{RequestID: req.ID, VoterID: "arc-1", Stage: types.StageARC, Choice: types.ChoiceApprove, Cycle: -1},
	} {
		_, err := f.wf.CastVote(ctx, b)
		assert.ErrorIs(t, err, service.ErrInvalidInput, "%+v", b)
	}

	_, err := f.vote(t, "missing", "arc-1", types.StageARC, types.ChoiceApprove)
	assert.ErrorIs(t, err, service.ErrRequestNotFound)
}

func TestCastVote_EvenSplitStaysPending(t *testing.T) {
	f := newFixture(t, arcMember("a1"), arcMember("a2"), arcMember("a3"), arcMember("a4"), member("owner-1"))
	req := f.submitted(t, "owner-1")

	f.mustVote(t, req.ID, "a1", types.StageARC, types.ChoiceApprove)
	f.mustVote(t, req.ID, "a2", types.StageARC, types.ChoiceApprove)
	f.mustVote(t, req.ID, "a3", types.StageARC, types.ChoiceDeny)
	res := f.mustVote(t, req.ID, "a4", types.StageARC, types.ChoiceDeny)

	assert.Equal(t, types.OutcomePending, res.Outcome)
	assert.True(t, res.AllVotesCast)
	assert.Equal(t, types.StatusARCReview, f.request(t, req.ID).Status)
}

func TestCastVote_EmitsVoteCastEvent(t *testing.T) {
	f := newFixture(t)
	req := f.submitted(t, "owner-1")

	f.mustVote(t, req.ID, "arc-1", types.StageARC, types.ChoiceApprove)

	evs := f.events.Events()
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, notify.EventVoteCast, last.Type)
	assert.Equal(t, "arc-1", last.ActorID)
	assert.Equal(t, 1, last.Cycle)
}
