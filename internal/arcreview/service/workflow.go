// Package service implements the ARC -> Board review workflow: the request
// state machine, reviewer eligibility, vote resolution, deadline-driven
// auto-approval, resubmission cycles and the audit trail.
package service

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/notify"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// DefaultReviewWindow is the statutory review period counted from submission.
const DefaultReviewWindow = 30 * 24 * time.Hour

type Dependencies struct {
	Store    store.Store
	Roles    RoleProvider
	Notifier notify.Dispatcher
	Logger   *logrus.Logger

	// Clock defaults to time.Now in UTC.
	Clock func() time.Time

	// ReviewWindow defaults to DefaultReviewWindow.
	ReviewWindow time.Duration
}

// Workflow is the operation surface consumed by the HTTP and CLI layers.
// It holds no per-request state; every mutating call is one storage
// transaction, so several processes may serve the same database.
type Workflow struct {
	store       store.Store
	eligibility *EligibilityResolver
	notifier    notify.Dispatcher
	log         *logrus.Logger
	clock       func() time.Time
	window      time.Duration
}

func New(deps Dependencies) *Workflow {
	w := &Workflow{
		store:       deps.Store,
		eligibility: NewEligibilityResolver(deps.Roles),
		notifier:    deps.Notifier,
		log:         deps.Logger,
		clock:       deps.Clock,
		window:      deps.ReviewWindow,
	}
	if w.notifier == nil {
		w.notifier = notify.Nop{}
	}
	if w.log == nil {
		w.log = logrus.StandardLogger()
	}
	if w.clock == nil {
		w.clock = func() time.Time { return time.Now().UTC() }
	}
	if w.window <= 0 {
		w.window = DefaultReviewWindow
	}
	return w
}

func (w *Workflow) now() time.Time {
	// Millisecond precision matches what the SQL store keeps.
	return w.clock().UTC().Truncate(time.Millisecond)
}

// unit collects what one transaction produced. Audit entries and events
// are only released once the transaction has committed.
type unit struct {
	repos  store.Repositories
	now    time.Time
	audit  []types.AuditEntry
	events []notify.Event
}

func (u *unit) record(e types.AuditEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = u.now
	}
	u.audit = append(u.audit, e)
}

func (u *unit) notify(ev notify.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = u.now
	}
	u.events = append(u.events, ev)
}

// lock reads the request under the transaction's row lock.
func (u *unit) lock(ctx context.Context, id string) (types.Request, error) {
	req, err := u.repos.Requests().LockRequest(ctx, id)
	if err != nil {
		return types.Request{}, mapStoreErr(err)
	}
	return req, nil
}

// run executes fn as one transaction. A compare-and-swap miss re-runs the
// whole read-resolve-write cycle once before giving up with ErrConflict.
func (w *Workflow) run(ctx context.Context, op string, fn func(ctx context.Context, u *unit) error) error {
	var u *unit
	attempt := func() error {
		return w.store.WithinTx(ctx, func(ctx context.Context, repos store.Repositories) error {
			u = &unit{repos: repos, now: w.now()}
			return fn(ctx, u)
		})
	}

	err := attempt()
	if errors.Is(err, store.ErrConflict) {
		storageConflicts.WithLabelValues(op).Inc()
		w.log.WithField("op", op).Debug("storage conflict, retrying once")
		err = attempt()
		if errors.Is(err, store.ErrConflict) {
			storageConflicts.WithLabelValues(op).Inc()
			return errors.Wrap(ErrConflict, op)
		}
	}
	if err != nil {
		return err
	}

	w.release(ctx, u)
	return nil
}

// release appends buffered audit entries and hands events to the notifier.
// Neither can undo the committed transaction: failures are logged and
// counted only.
func (w *Workflow) release(ctx context.Context, u *unit) {
	for _, e := range u.audit {
		w.observe(e)
		if err := w.store.Audit().AppendEntry(ctx, e); err != nil {
			auditFailures.Inc()
			w.log.WithFields(logrus.Fields{
				"request_id": e.RequestID,
				"action":     e.Action,
			}).WithError(err).Error("audit append failed")
		}
	}

	for _, ev := range u.events {
		if err := w.notifier.Dispatch(ctx, ev); err != nil {
			w.log.WithFields(logrus.Fields{
				"request_id": ev.RequestID,
				"event":      ev.Type,
			}).WithError(err).Warn("notification dispatch failed")
		}
	}
}

// observe updates metrics from a committed audit entry.
func (w *Workflow) observe(e types.AuditEntry) {
	switch e.Action {
	case types.AuditVoteCast, types.AuditVoteChanged:
		votesCast.WithLabelValues(e.Metadata["stage"], e.Metadata["choice"]).Inc()
	case types.AuditAutoApproved:
		autoApprovals.WithLabelValues(e.Metadata["stage"]).Inc()
		transitionsTotal.WithLabelValues(string(e.FromStatus), string(e.ToStatus)).Inc()
	case types.AuditStatusChanged, types.AuditRequestSubmitted:
		transitionsTotal.WithLabelValues(string(e.FromStatus), string(e.ToStatus)).Inc()
	case types.AuditStageDeadlocked:
		deadlocks.WithLabelValues(e.Metadata["stage"]).Inc()
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrRequestNotFound
	}
	return err
}

func eventFor(req *types.Request, stage types.Stage, outcome types.Outcome, actor string) notify.Event {
	return notify.Event{
		Type:      notify.EventStageResolved,
		RequestID: req.ID,
		Stage:     stage,
		Cycle:     req.Cycle,
		Status:    req.Status,
		Outcome:   outcome,
		ActorID:   actor,
	}
}

func (w *Workflow) GetRequest(ctx context.Context, id string) (types.Request, error) {
	req, err := w.store.Requests().GetRequest(ctx, id)
	if err != nil {
		return types.Request{}, mapStoreErr(err)
	}
	return req, nil
}
