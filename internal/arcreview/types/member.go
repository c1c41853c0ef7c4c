package types

import (
	"fmt"
	"strings"
)

// Role held by an association member.
type Role string

const (
	RoleMember Role = "member"
	RoleARC    Role = "arc"
	RoleBoard  Role = "board"
)

func ParseRole(v string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(v)))
	switch r {
	case RoleMember, RoleARC, RoleBoard:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", v)
}

// Member is the identity provider's view of a user.
type Member struct {
	ID     string
	Name   string
	Email  string
	Roles  []Role
	Active bool
}

func (m Member) HasRole(r Role) bool {
	for _, have := range m.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// DualRole reports whether the member sits on both ARC and Board.
func (m Member) DualRole() bool {
	return m.HasRole(RoleARC) && m.HasRole(RoleBoard)
}

// ReviewerLabel is the role label shown on eligibility listings.
func (m Member) ReviewerLabel() string {
	switch {
	case m.DualRole():
		return "ARC+BOARD"
	case m.HasRole(RoleARC):
		return "ARC"
	case m.HasRole(RoleBoard):
		return "BOARD"
	}
	return ""
}
