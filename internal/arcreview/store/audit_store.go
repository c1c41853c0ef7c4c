package store

import (
	"context"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// AuditStore persists workflow events as an append-only log. Insert is the
// only write it offers.
type AuditStore interface {
	AppendEntry(ctx context.Context, e types.AuditEntry) error
}

// AuditReader returns a request's audit history, oldest first.
type AuditReader interface {
	ListEntries(ctx context.Context, requestID string) ([]types.AuditEntry, error)
}
