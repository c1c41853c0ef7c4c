package service

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// GetAuditHistory returns every audit entry for the request, oldest first,
// across all cycles.
func (w *Workflow) GetAuditHistory(ctx context.Context, requestID string) ([]types.AuditEntry, error) {
	if _, err := w.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	entries, err := w.store.AuditLog().ListEntries(ctx, requestID)
	if err != nil {
		return nil, errors.Wrap(err, "list audit entries")
	}
	return entries, nil
}
