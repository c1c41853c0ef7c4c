package service_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/notify"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/service"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/store/memory"
	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	wf      *service.Workflow
	store   *memory.Store
	members *memory.MemberStore
	events  *notify.Recorder
	clock   *fakeClock
}

func member(id string, roles ...types.Role) types.Member {
	return types.Member{ID: id, Name: id, Roles: append([]types.Role{types.RoleMember}, roles...), Active: true}
}

func arcMember(id string) types.Member   { return member(id, types.RoleARC) }
func boardMember(id string) types.Member { return member(id, types.RoleBoard) }
func dualMember(id string) types.Member  { return member(id, types.RoleARC, types.RoleBoard) }

// defaultRoster: three ARC seats (one dual-role) and five Board seats
// (the same dual-role member plus four Board-only).
func defaultRoster() []types.Member {
	return []types.Member{
		arcMember("arc-1"),
		arcMember("arc-2"),
		dualMember("dual-1"),
		boardMember("board-1"),
		boardMember("board-2"),
		boardMember("board-3"),
		boardMember("board-4"),
		member("owner-1"),
	}
}

func newFixture(t *testing.T, roster ...types.Member) *fixture {
	t.Helper()
	if len(roster) == 0 {
		roster = defaultRoster()
	}
	return newFixtureWithStore(t, memory.New(), roster)
}

func newFixtureWithStore(t *testing.T, st *memory.Store, roster []types.Member, wrap ...func(store.Store) store.Store) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		store:   st,
		members: memory.NewMemberStore(roster),
		events:  &notify.Recorder{},
		clock:   &fakeClock{t: time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC)},
	}

	var s store.Store = st
	for _, w := range wrap {
		s = w(s)
	}

	f.wf = service.New(service.Dependencies{
		Store:    s,
		Roles:    f.members,
		Notifier: f.events,
		Logger:   log,
		Clock:    f.clock.Now,
	})
	return f
}

// submitted creates and submits a request owned by owner, leaving it in
// ARC_REVIEW.
func (f *fixture) submitted(t *testing.T, owner string) types.Request {
	t.Helper()
	ctx := context.Background()

	req, err := f.wf.CreateRequest(ctx, service.NewRequest{
		OwnerID:         owner,
		ApplicantName:   "Finley Owner",
		PropertyAddress: "12 Elm Ct",
		Description:     "Replace front fence with 4ft cedar",
	})
	require.NoError(t, err)

	req, err = f.wf.Submit(ctx, req.ID, owner)
	require.NoError(t, err)
	require.Equal(t, types.StatusARCReview, req.Status)
	return req
}

func (f *fixture) vote(t *testing.T, reqID, voter string, stage types.Stage, c types.Choice) (types.Resolution, error) {
	t.Helper()
	return f.wf.CastVote(context.Background(), service.Ballot{
		RequestID: reqID,
		VoterID:   voter,
		Stage:     stage,
		Choice:    c,
	})
}

func (f *fixture) mustVote(t *testing.T, reqID, voter string, stage types.Stage, c types.Choice) types.Resolution {
	t.Helper()
	res, err := f.vote(t, reqID, voter, stage, c)
	require.NoError(t, err, "vote %s %s %s", voter, stage, c)
	return res
}

func (f *fixture) request(t *testing.T, id string) types.Request {
	t.Helper()
	req, err := f.wf.GetRequest(context.Background(), id)
	require.NoError(t, err)
	return req
}

func (f *fixture) audit(t *testing.T, id string) []types.AuditEntry {
	t.Helper()
	entries, err := f.wf.GetAuditHistory(context.Background(), id)
	require.NoError(t, err)
	return entries
}

func countAudit(entries []types.AuditEntry, action types.AuditAction, from, to types.Status) int {
	n := 0
	for _, e := range entries {
		if e.Action == action && (from == "" || e.FromStatus == from) && (to == "" || e.ToStatus == to) {
			n++
		}
	}
	return n
}

// approveARC takes a fresh request through ARC approval into BOARD_REVIEW
// with the given ARC voters approving.
func (f *fixture) approveARC(t *testing.T, reqID string, voters ...string) {
	t.Helper()
	for _, v := range voters {
		f.mustVote(t, reqID, v, types.StageARC, types.ChoiceApprove)
	}
	require.Equal(t, types.StatusBoardReview, f.request(t, reqID).Status)
}
