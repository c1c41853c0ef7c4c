package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// MemberStore is a static member directory.
type MemberStore struct {
	mu      sync.RWMutex
	members map[string]types.Member
}

func NewMemberStore(members []types.Member) *MemberStore {
	m := make(map[string]types.Member, len(members))
	for _, mem := range members {
		mem.ID = strings.TrimSpace(mem.ID)
		if mem.ID != "" {
			m[mem.ID] = mem
		}
	}
	return &MemberStore{members: m}
}

// Put adds or replaces a member, e.g. when someone joins the Board.
func (s *MemberStore) Put(m types.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *MemberStore) GetMember(_ context.Context, id string) (types.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[strings.TrimSpace(id)]
	if !ok {
		return types.Member{}, store.ErrNotFound
	}
	return m, nil
}

func (s *MemberStore) ActiveMembersWithRole(_ context.Context, role types.Role) ([]types.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Member
	for _, m := range s.members {
		if m.Active && m.HasRole(role) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
