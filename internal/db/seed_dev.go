package db

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

type SeedDevOptions struct {
	// Members replaces the default dev roster when non-empty.
	Members []types.Member
}

// DevMembers is a small roster covering every reviewer shape: ARC only,
// Board only, a dual-role reviewer and a plain homeowner.
func DevMembers() []types.Member {
	return []types.Member{
		{ID: "arc-1", Name: "Avery Arc", Email: "arc-1@hoa.test", Roles: []types.Role{types.RoleMember, types.RoleARC}, Active: true},
		{ID: "arc-2", Name: "Blake Arc", Email: "arc-2@hoa.test", Roles: []types.Role{types.RoleMember, types.RoleARC}, Active: true},
		{ID: "dual-1", Name: "Casey Dual", Email: "dual-1@hoa.test", Roles: []types.Role{types.RoleMember, types.RoleARC, types.RoleBoard}, Active: true},
		{ID: "board-1", Name: "Drew Board", Email: "board-1@hoa.test", Roles: []types.Role{types.RoleMember, types.RoleBoard}, Active: true},
		{ID: "board-2", Name: "Emery Board", Email: "board-2@hoa.test", Roles: []types.Role{types.RoleMember, types.RoleBoard}, Active: true},
		{ID: "owner-1", Name: "Finley Owner", Email: "owner-1@hoa.test", Roles: []types.Role{types.RoleMember}, Active: true},
	}
}

// SeedDev upserts the dev roster. Safe to run repeatedly.
func SeedDev(ctx context.Context, db *sqlx.DB, opt SeedDevOptions) error {
	members := opt.Members
	if len(members) == 0 {
		members = DevMembers()
	}

	now := time.Now().UTC().UnixMilli()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin seed tx")
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range members {
		active := 0
		if m.Active {
			active = 1
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO members(member_id, name, email, active, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(member_id) DO UPDATE SET
  name = excluded.name,
  email = excluded.email,
  active = excluded.active,
  updated_at_ms = excluded.updated_at_ms;`),
			m.ID, m.Name, m.Email, active, now, now,
		); err != nil {
			return errors.Wrapf(err, "seed member %s", m.ID)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM member_roles WHERE member_id = ?;`), m.ID); err != nil {
			return errors.Wrapf(err, "reset roles %s", m.ID)
		}
		for _, r := range m.Roles {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO member_roles(member_id, role) VALUES (?, ?)
ON CONFLICT(member_id, role) DO NOTHING;`), m.ID, string(r)); err != nil {
				return errors.Wrapf(err, "seed role %s/%s", m.ID, r)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit seed")
	}
	return nil
}
