package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// NewRequest is the owner's application as entered.
type NewRequest struct {
	OwnerID         string
	ApplicantName   string
	ApplicantEmail  string
	PropertyAddress string
	Description     string
}

// CreateRequest stores a DRAFT request in cycle 1.
func (w *Workflow) CreateRequest(ctx context.Context, in NewRequest) (types.Request, error) {
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Description = strings.TrimSpace(in.Description)
	if in.OwnerID == "" {
		return types.Request{}, invalidInput("owner_id is required")
	}
	if in.Description == "" {
		return types.Request{}, invalidInput("description is required")
	}

	var req types.Request
	err := w.run(ctx, "create_request", func(ctx context.Context, u *unit) error {
		req = types.Request{
			ID:              uuid.NewString(),
			OwnerID:         in.OwnerID,
			ApplicantName:   strings.TrimSpace(in.ApplicantName),
			ApplicantEmail:  strings.TrimSpace(in.ApplicantEmail),
			PropertyAddress: strings.TrimSpace(in.PropertyAddress),
			Description:     in.Description,
			Status:          types.StatusDraft,
			Stage:           types.StageNone,
			Cycle:           1,
			CreatedAt:       u.now,
			UpdatedAt:       u.now,
		}
		if err := u.repos.Requests().CreateRequest(ctx, req); err != nil {
			return errors.Wrap(err, "create request")
		}
		u.record(types.AuditEntry{
			RequestID: req.ID,
			Action:    types.AuditRequestCreated,
			ToStatus:  types.StatusDraft,
			ActorID:   in.OwnerID,
		})
		return nil
	})
	if err != nil {
		return types.Request{}, err
	}
	return req, nil
}

// Submit hands the request to review. Only the owner may submit. A DRAFT
// is submitted as-is; a returned request first moves to the next cycle.
// Either way the request ends in ARC_REVIEW with a fresh deadline.
func (w *Workflow) Submit(ctx context.Context, requestID, actorID string) (types.Request, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return types.Request{}, invalidInput("actor is required")
	}

	var req types.Request
	err := w.run(ctx, "submit", func(ctx context.Context, u *unit) error {
		var err error
		if req, err = u.lock(ctx, requestID); err != nil {
			return err
		}
		if req.OwnerID != actorID {
			return ErrNotOwner
		}

		switch {
		case req.Status == types.StatusDraft:
		case req.Status.Returned():
			w.incrementCycle(u, &req, actorID)
		default:
			return &TransitionError{From: req.Status, To: types.StatusSubmitted}
		}

		submitted := u.now
		deadline := submitted.Add(w.window)
		req.SubmittedAt = &submitted
		req.DeadlineAt = &deadline

		if err := w.transition(ctx, u, &req, change{
			to:     types.StatusSubmitted,
			actor:  actorID,
			action: types.AuditRequestSubmitted,
			metadata: map[string]string{
				"cycle":       strconv.Itoa(req.Cycle),
				"deadline_at": deadline.Format(timeLayout),
			},
		}); err != nil {
			return err
		}

		return w.transition(ctx, u, &req, change{
			to:     types.StatusARCReview,
			actor:  types.SystemActor,
			reason: "review opens on submission",
		})
	})
	if err != nil {
		return types.Request{}, err
	}
	return req, nil
}

// incrementCycle opens the next review round of a returned request. It
// runs once per resubmission, just before the *_RETURNED -> SUBMITTED edge,
// and is persisted together with that edge. Votes of earlier cycles stay
// in the store under their own cycle number.
func (w *Workflow) incrementCycle(u *unit, req *types.Request, actorID string) int {
	prev := req.Cycle
	req.Cycle++
	req.SubmittedAt = nil
	req.DeadlineAt = nil
	req.AutoApprovedReason = nil

	u.record(types.AuditEntry{
		RequestID:  req.ID,
		Action:     types.AuditCycleIncremented,
		FromStatus: req.Status,
		ToStatus:   req.Status,
		ActorID:    actorID,
		Metadata: map[string]string{
			"previous_cycle": strconv.Itoa(prev),
			"cycle":          strconv.Itoa(req.Cycle),
		},
	})
	return req.Cycle
}

// Transition applies a legal edge on behalf of an external collaborator,
// typically the board chair settling a DEADLOCKED stage. A decisive edge is
// only accepted while the stage is deadlocked; a stage still collecting
// votes is decided by its voters or the deadline. Resubmission goes through
// Submit and Board review only opens automatically, so neither SUBMITTED nor
// BOARD_REVIEW is accepted here.
func (w *Workflow) Transition(ctx context.Context, requestID string, to types.Status, actorID, reason string) (types.Request, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return types.Request{}, invalidInput("actor is required")
	}
	switch to {
	case types.StatusSubmitted:
		return types.Request{}, invalidInput("resubmission goes through submit")
	case types.StatusBoardReview:
		return types.Request{}, invalidInput("board review opens automatically after ARC approval")
	}

	outcome := outcomeOf(to)
	var roster []types.Member
	if outcome.Decisive() {
		var err error
		if roster, err = w.eligibility.Roster(ctx, to.Stage()); err != nil {
			return types.Request{}, err
		}
	}

	var req types.Request
	err := w.run(ctx, "transition", func(ctx context.Context, u *unit) error {
		var err error
		if req, err = u.lock(ctx, requestID); err != nil {
			return err
		}
		if !CanTransition(req.Status, to) {
			return &TransitionError{From: req.Status, To: to}
		}

		c := change{actor: actorID, reason: strings.TrimSpace(reason), metadata: map[string]string{"manual": "true"}}
		if outcome.Decisive() {
			eligible, err := w.eligibility.Resolve(ctx, u.repos.Votes(), req, req.Stage, req.Cycle, roster)
			if err != nil {
				return err
			}
			votes, err := u.repos.Votes().ListVotes(ctx, req.ID, req.Stage, req.Cycle)
			if err != nil {
				return errors.Wrap(err, "list votes")
			}
			if Resolve(votes, eligible).Outcome != types.OutcomeDeadlocked {
				return &TransitionError{From: req.Status, To: to, Reason: "stage is not deadlocked"}
			}
			return w.resolveStage(ctx, u, &req, outcome, c)
		}
		c.to = to
		return w.transition(ctx, u, &req, c)
	})
	if err != nil {
		return types.Request{}, err
	}
	return req, nil
}

func outcomeOf(s types.Status) types.Outcome {
	switch s {
	case types.StatusARCApproved, types.StatusBoardApproved:
		return types.OutcomeApproved
	case types.StatusARCDenied, types.StatusBoardDenied:
		return types.OutcomeDenied
	case types.StatusARCReturned, types.StatusBoardReturned:
		return types.OutcomeReturned
	}
	return types.OutcomePending
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"
