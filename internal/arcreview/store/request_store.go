package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

type RequestStore interface {
	CreateRequest(ctx context.Context, req types.Request) error
	GetRequest(ctx context.Context, id string) (types.Request, error)

	// LockRequest reads the request and holds it against concurrent writers
	// until the surrounding transaction ends.
	LockRequest(ctx context.Context, id string) (types.Request, error)

	// UpdateRequest persists req only if the stored status still equals
	// expected. A mismatch returns ErrConflict.
	UpdateRequest(ctx context.Context, req types.Request, expected types.Status) error

	// ListExpired returns unresolved requests under review whose deadline
	// is at or before now and that were never auto-approved.
	ListExpired(ctx context.Context, now time.Time) ([]types.Request, error)

	// ListDeadlineBetween returns unresolved requests under review, never
	// auto-approved, whose deadline falls in (from, to].
	ListDeadlineBetween(ctx context.Context, from, to time.Time) ([]types.Request, error)
}
