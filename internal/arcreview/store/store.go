package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a compare-and-swap update finds the row
	// in a different state than the caller read.
	ErrConflict = errors.New("concurrent modification")
)

// Repositories is the set of stores bound to one unit of work.
type Repositories interface {
	Requests() RequestStore
	Votes() VoteStore
}

// Store is the persistence boundary of the workflow core.
type Store interface {
	Repositories

	// Audit is the append-only writer. It is not part of the
	// transaction: entries are appended after the workflow state commits.
	Audit() AuditStore
	AuditLog() AuditReader

	// WithinTx runs fn as a single atomic unit. Returning an error rolls
	// back every write made through repos.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
