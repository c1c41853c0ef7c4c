package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// AuditStore is an in-memory append-only log of workflow events.
type AuditStore struct {
	mu      sync.Mutex
	entries []types.AuditEntry

	// FailWith, when set, is returned from AppendEntry.  Test-only hook.
	FailWith error
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) AppendEntry(_ context.Context, e types.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.entries = append(s.entries, cloneEntry(e))
	return nil
}

func (s *AuditStore) ListEntries(_ context.Context, requestID string) ([]types.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.AuditEntry
	for _, e := range s.entries {
		if e.RequestID == requestID {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

// Entries returns a copy of all recorded entries.  Test-only helper.
func (s *AuditStore) Entries() []types.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.AuditEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

func cloneEntry(e types.AuditEntry) types.AuditEntry {
	if e.Metadata != nil {
		md := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	return e
}
