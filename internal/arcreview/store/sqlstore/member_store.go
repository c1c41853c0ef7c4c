package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

// MemberStore reads the members directory kept in sync by the identity
// system (or the dev seed).
type MemberStore struct {
	db *sqlx.DB
}

func NewMemberStore(db *sqlx.DB) *MemberStore {
	return &MemberStore{db: db}
}

type memberRow struct {
	ID     string `db:"member_id"`
	Name   string `db:"name"`
	Email  string `db:"email"`
	Active int    `db:"active"`
}

type memberRoleRow struct {
	MemberID string `db:"member_id"`
	Role     string `db:"role"`
}

func (s *MemberStore) GetMember(ctx context.Context, id string) (types.Member, error) {
	id = strings.TrimSpace(id)

	var row memberRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
SELECT member_id, name, email, active FROM members WHERE member_id = ?;`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Member{}, store.ErrNotFound
	}
	if err != nil {
		return types.Member{}, errors.Wrap(err, "GetMember")
	}

	members, err := s.withRoles(ctx, []memberRow{row})
	if err != nil {
		return types.Member{}, err
	}
	return members[0], nil
}

func (s *MemberStore) ActiveMembersWithRole(ctx context.Context, role types.Role) ([]types.Member, error) {
	var rows []memberRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
SELECT m.member_id, m.name, m.email, m.active
FROM members m
JOIN member_roles r ON r.member_id = m.member_id
WHERE r.role = ? AND m.active = 1
ORDER BY m.member_id;`), string(role)); err != nil {
		return nil, errors.Wrap(err, "ActiveMembersWithRole")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return s.withRoles(ctx, rows)
}

// withRoles loads the full role set of each member in one query.
func (s *MemberStore) withRoles(ctx context.Context, rows []memberRow) ([]types.Member, error) {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	query, args, err := sqlx.In(`
SELECT member_id, role FROM member_roles
WHERE member_id IN (?)
ORDER BY member_id, role;`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "expand member ids")
	}

	var roleRows []memberRoleRow
	if err := s.db.SelectContext(ctx, &roleRows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "load member roles")
	}

	roles := make(map[string][]types.Role, len(rows))
	for _, rr := range roleRows {
		roles[rr.MemberID] = append(roles[rr.MemberID], types.Role(rr.Role))
	}

	out := make([]types.Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Member{
			ID:     r.ID,
			Name:   r.Name,
			Email:  r.Email,
			Roles:  roles[r.ID],
			Active: r.Active == 1,
		})
	}
	return out, nil
}
