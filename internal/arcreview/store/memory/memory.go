// Package memory holds map-backed implementations of the workflow stores.
// They are intended for tests and dev environments.
package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

type voteKey struct {
	requestID string
	voterID   string
	stage     types.Stage
	cycle     int
}

// Store keeps requests and votes in maps. Units of work are serialised by
// txMu; a failed unit restores the snapshot taken when it started.
type Store struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	requests map[string]types.Request
	votes    map[voteKey]types.Vote

	audit *AuditStore
}

func New() *Store {
	return &Store{
		requests: make(map[string]types.Request),
		votes:    make(map[voteKey]types.Vote),
		audit:    NewAuditStore(),
	}
}

func (s *Store) Requests() store.RequestStore { return s }
func (s *Store) Votes() store.VoteStore       { return s }
func (s *Store) Audit() store.AuditStore      { return s.audit }
func (s *Store) AuditLog() store.AuditReader  { return s.audit }

// AuditEntries exposes the underlying log.  Test-only helper.
func (s *Store) AuditEntries() *AuditStore { return s.audit }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos store.Repositories) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(ctx, s)
}

type snapshot struct {
	requests map[string]types.Request
	votes    map[voteKey]types.Vote
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		requests: make(map[string]types.Request, len(s.requests)),
		votes:    make(map[voteKey]types.Vote, len(s.votes)),
	}
	for k, v := range s.requests {
		snap.requests[k] = cloneRequest(v)
	}
	for k, v := range s.votes {
		snap.votes[k] = cloneVote(v)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = snap.requests
	s.votes = snap.votes
}
