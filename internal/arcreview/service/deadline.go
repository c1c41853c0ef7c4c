package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/notify"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// ApplyExpiredDeadlines approves every open stage whose statutory deadline
// has passed and returns the ids it changed. Each candidate is re-checked
// under its row lock, so concurrent callers never approve twice and a
// second call right after the first returns nothing.
func (w *Workflow) ApplyExpiredDeadlines(ctx context.Context) ([]string, error) {
	now := w.now()
	candidates, err := w.store.Requests().ListExpired(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "list expired requests")
	}

	var (
		applied  []string
		firstErr error
	)
	for _, c := range candidates {
		ok, err := w.autoApprove(ctx, c.ID)
		if err != nil {
			w.log.WithField("request_id", c.ID).WithError(err).Error("deadline auto-approval failed")
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "auto-approve %s", c.ID)
			}
			continue
		}
		if ok {
			applied = append(applied, c.ID)
		}
	}
	return applied, firstErr
}

func (w *Workflow) autoApprove(ctx context.Context, requestID string) (bool, error) {
	var applied bool
	err := w.run(ctx, "auto_approve", func(ctx context.Context, u *unit) error {
		applied = false

		req, err := u.lock(ctx, requestID)
		if err != nil {
			return err
		}
		if !deadlineElapsed(req, u.now) {
			return nil
		}

		// The reason stays set for the rest of the cycle, so a Board review
		// opened by an ARC auto-approval has no deadline of its own and stays
		// open until the Board decides or a deadlock is settled.
		stage := req.Stage
		reason := types.AutoApproveReasonDeadline
		req.AutoApprovedReason = &reason

		if err := w.resolveStage(ctx, u, &req, types.OutcomeApproved, change{
			actor:  types.SystemActor,
			reason: "statutory review deadline elapsed without a decision",
			action: types.AuditAutoApproved,
			metadata: map[string]string{
				"basis":       "statutory_deadline",
				"deadline_at": req.DeadlineAt.Format(timeLayout),
				"stage":       string(stage),
			},
		}); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

func deadlineElapsed(req types.Request, now time.Time) bool {
	return req.Status.UnderReview() &&
		!req.Resolved() &&
		req.AutoApprovedReason == nil &&
		req.DeadlineAt != nil &&
		!req.DeadlineAt.After(now)
}

// RequestsNearingDeadline lists open requests whose deadline falls within
// the next daysOut days. It never changes state.
func (w *Workflow) RequestsNearingDeadline(ctx context.Context, daysOut int) ([]types.Request, error) {
	if daysOut <= 0 {
		return nil, invalidInput("days must be positive")
	}
	now := w.now()
	reqs, err := w.store.Requests().ListDeadlineBetween(ctx, now, now.Add(time.Duration(daysOut)*24*time.Hour))
	if err != nil {
		return nil, errors.Wrap(err, "list nearing deadline")
	}
	return reqs, nil
}

// WarnNearingDeadlines sends a deadline_warning for each request returned
// by RequestsNearingDeadline and reports how many were sent.
func (w *Workflow) WarnNearingDeadlines(ctx context.Context, daysOut int) (int, error) {
	reqs, err := w.RequestsNearingDeadline(ctx, daysOut)
	if err != nil {
		return 0, err
	}

	now := w.now()
	sent := 0
	for _, r := range reqs {
		remaining := r.DeadlineAt.Sub(now)
		ev := notify.Event{
			Type:       notify.EventDeadlineWarning,
			RequestID:  r.ID,
			Stage:      r.Stage,
			Cycle:      r.Cycle,
			Status:     r.Status,
			DeadlineAt: r.DeadlineAt,
			DaysOut:    int(math.Ceil(remaining.Hours() / 24)),
			OccurredAt: now,
		}
		if err := w.notifier.Dispatch(ctx, ev); err != nil {
			w.log.WithField("request_id", r.ID).WithError(err).Warn("deadline warning dispatch failed")
			continue
		}
		sent++
	}
	return sent, nil
}

// DeadlineMonitor runs ApplyExpiredDeadlines lazily from request paths.
// There is no timer: overdue stages are picked up the next time anyone
// touches requests. MinInterval throttles sweeps on busy paths; zero
// sweeps on every call.
type DeadlineMonitor struct {
	wf          *Workflow
	log         *logrus.Logger
	minInterval time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewDeadlineMonitor(wf *Workflow, minInterval time.Duration, log *logrus.Logger) *DeadlineMonitor {
	if log == nil {
		log = wf.log
	}
	return &DeadlineMonitor{wf: wf, log: log, minInterval: minInterval}
}

// Sweep applies expired deadlines unless one ran within minInterval.
// Errors are logged and returned; callers on read paths usually ignore them.
func (m *DeadlineMonitor) Sweep(ctx context.Context) ([]string, error) {
	now := m.wf.now()

	m.mu.Lock()
	if m.minInterval > 0 && !m.last.IsZero() && now.Sub(m.last) < m.minInterval {
		m.mu.Unlock()
		return nil, nil
	}
	m.last = now
	m.mu.Unlock()

	applied, err := m.wf.ApplyExpiredDeadlines(ctx)
	if err != nil {
		m.log.WithError(err).Error("deadline sweep error")
		return applied, err
	}
	if len(applied) > 0 {
		m.log.WithField("requests", applied).Infof("deadline sweep: auto-approved %d request(s)", len(applied))
	}
	return applied, nil
}
