package memory

import (
	"context"
	"sort"
	"time"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

func (s *Store) CreateRequest(_ context.Context, req types.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return store.ErrConflict
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (types.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return types.Request{}, store.ErrNotFound
	}
	return cloneRequest(req), nil
}

// LockRequest is GetRequest: the caller already holds the unit-of-work lock.
func (s *Store) LockRequest(ctx context.Context, id string) (types.Request, error) {
	return s.GetRequest(ctx, id)
}

func (s *Store) UpdateRequest(_ context.Context, req types.Request, expected types.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.requests[req.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Status != expected {
		return store.ErrConflict
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *Store) ListExpired(_ context.Context, now time.Time) ([]types.Request, error) {
	return s.filter(func(r types.Request) bool {
		return !r.DeadlineAt.After(now)
	}), nil
}

func (s *Store) ListDeadlineBetween(_ context.Context, from, to time.Time) ([]types.Request, error) {
	return s.filter(func(r types.Request) bool {
		return r.DeadlineAt.After(from) && !r.DeadlineAt.After(to)
	}), nil
}

// filter walks open, never auto-approved requests that carry a deadline.
func (s *Store) filter(match func(types.Request) bool) []types.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Request
	for _, r := range s.requests {
		if !r.Status.UnderReview() || r.Resolved() || r.AutoApprovedReason != nil || r.DeadlineAt == nil {
			continue
		}
		if match(r) {
			out = append(out, cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeadlineAt.Equal(*out[j].DeadlineAt) {
			return out[i].DeadlineAt.Before(*out[j].DeadlineAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneRequest(r types.Request) types.Request {
	r.SubmittedAt = cloneTime(r.SubmittedAt)
	r.DeadlineAt = cloneTime(r.DeadlineAt)
	r.ResolvedAt = cloneTime(r.ResolvedAt)
	if r.AutoApprovedReason != nil {
		v := *r.AutoApprovedReason
		r.AutoApprovedReason = &v
	}
	return r
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
