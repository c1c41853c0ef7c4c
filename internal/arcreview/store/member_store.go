package store

import (
	"context"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// MemberStore is a read-only view of the identity provider's directory.
type MemberStore interface {
	GetMember(ctx context.Context, id string) (types.Member, error)
	ActiveMembersWithRole(ctx context.Context, role types.Role) ([]types.Member, error)
}
