package service

import (
	"context"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

var transitions = map[types.Status][]types.Status{
	types.StatusDraft:         {types.StatusSubmitted},
	types.StatusSubmitted:     {types.StatusARCReview},
	types.StatusARCReview:     {types.StatusARCApproved, types.StatusARCDenied, types.StatusARCReturned},
	types.StatusARCReturned:   {types.StatusSubmitted},
	types.StatusARCApproved:   {types.StatusBoardReview},
	types.StatusBoardReview:   {types.StatusBoardApproved, types.StatusBoardDenied, types.StatusBoardReturned},
	types.StatusBoardReturned: {types.StatusSubmitted},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to types.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the legal targets of from.
func NextStatuses(from types.Status) []types.Status {
	return append([]types.Status(nil), transitions[from]...)
}

type change struct {
	to       types.Status
	actor    string
	reason   string
	action   types.AuditAction
	metadata map[string]string
}

// transition applies one edge to req: CAS on the current status, then an
// audit entry. req is updated in place only on success. Callers set any
// other field changes on req beforehand; they are written with the status.
func (w *Workflow) transition(ctx context.Context, u *unit, req *types.Request, c change) error {
	from := req.Status
	if !CanTransition(from, c.to) {
		return &TransitionError{From: from, To: c.to}
	}

	next := *req
	next.Status = c.to
	next.Stage = c.to.Stage()
	next.UpdatedAt = u.now
	if c.to.Terminal() {
		now := u.now
		next.ResolvedAt = &now
	}

	if err := u.repos.Requests().UpdateRequest(ctx, next, from); err != nil {
		return mapStoreErr(err)
	}
	*req = next

	action := c.action
	if action == "" {
		action = types.AuditStatusChanged
	}
	u.record(types.AuditEntry{
		RequestID:  req.ID,
		Action:     action,
		FromStatus: from,
		ToStatus:   c.to,
		ActorID:    c.actor,
		Reason:     c.reason,
		Metadata:   c.metadata,
	})
	return nil
}

// openBoardReview chains ARC_APPROVED into BOARD_REVIEW. It runs in the
// same unit of work as the ARC approval and always as the system actor.
func (w *Workflow) openBoardReview(ctx context.Context, u *unit, req *types.Request) error {
	if req.Status != types.StatusARCApproved {
		return nil
	}
	return w.transition(ctx, u, req, change{
		to:     types.StatusBoardReview,
		actor:  types.SystemActor,
		reason: "ARC approval opens Board review",
	})
}

// resolveStage moves req to the status matching outcome for its current
// stage, opening Board review after an ARC approval.
func (w *Workflow) resolveStage(ctx context.Context, u *unit, req *types.Request, outcome types.Outcome, c change) error {
	stage := req.Stage
	c.to = stage.StatusFor(outcome)
	if c.to == "" {
		return &TransitionError{From: req.Status, To: types.Status(outcome)}
	}
	if err := w.transition(ctx, u, req, c); err != nil {
		return err
	}
	if err := w.openBoardReview(ctx, u, req); err != nil {
		return err
	}

	u.notify(eventFor(req, stage, outcome, c.actor))
	return nil
}
