package rooms

import (
	"testing"

	"parlor/pkg/errs"
	"parlor/pkg/models"
	"parlor/pkg/store"
)

func openStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
}

func TestCreateAndGet(t *testing.T) {
	openStore(t)
	r, err := Create(models.RoomGroup, "alice", CreateOptions{Name: "Design Crit"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Owner != "alice" || r.MemberCount != 1 || !r.Active {
		t.Fatalf("unexpected room: %+v", r)
	}
	got, err := Get(r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Slug == "" || got.Kind != models.RoomGroup {
		t.Fatalf("unexpected loaded room: %+v", got)
	}
	m, err := Membership(r.ID, "alice")
	if err != nil {
		t.Fatalf("creator membership: %v", err)
	}
	if m.Role != models.RoleOwner {
		t.Fatalf("creator role = %s, want owner", m.Role)
	}
}

func TestCreateRejectsDirectKind(t *testing.T) {
	openStore(t)
	if _, err := Create(models.RoomDirect, "alice", CreateOptions{}); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}

func TestAddMemberAndCount(t *testing.T) {
	openStore(t)
	r, _ := Create(models.RoomGroup, "alice", CreateOptions{})
	if _, err := AddMember(r.ID, "bob", models.RoleMember, "alice"); err != nil {
		t.Fatalf("add bob: %v", err)
	}
	if _, err := AddMember(r.ID, "bob", models.RoleMember, "alice"); !errs.IsKind(err, errs.Conflict) {
		t.Fatalf("duplicate add err = %v, want Conflict", err)
	}
	got, _ := Get(r.ID)
	if got.MemberCount != 2 {
		t.Fatalf("member count = %d, want 2", got.MemberCount)
	}
	n, err := store.CountActiveMemberships(r.ID)
	if err != nil || n != got.MemberCount {
		t.Fatalf("recount = %d (err %v), cached = %d", n, err, got.MemberCount)
	}
}

func TestAddMemberRejectsOwnerRole(t *testing.T) {
	openStore(t)
	r, _ := Create(models.RoomGroup, "alice", CreateOptions{})
	if _, err := AddMember(r.ID, "bob", models.RoleOwner, "alice"); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("err = %v, want InvalidArgument", err)
	}
}

func TestMaxMembers(t *testing.T) {
	openStore(t)
	r, _ := Create(models.RoomGroup, "alice", CreateOptions{Options: models.RoomOptions{MaxMembers: 2}})
	if _, err := AddMember(r.ID, "bob", models.RoleMember, "alice"); err != nil {
		t.Fatalf("add bob: %v", err)
	}
	if _, err := AddMember(r.ID, "carol", models.RoleMember, "alice"); !errs.IsKind(err, errs.Conflict) {
		t.Fatalf("over-capacity err = %v, want Conflict", err)
	}
}

func TestRemoveAndRejoin(t *testing.T) {
	openStore(t)
	r, _ := Create(models.RoomGroup, "alice", CreateOptions{})
	AddMember(r.ID, "bob", models.RoleModerator, "alice")
	if err := RemoveMember(r.ID, "bob"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := RemoveMember(r.ID, "bob"); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("double remove err = %v, want NotFound", err)
	}
	got, _ := Get(r.ID)
	if got.MemberCount != 1 {
		t.Fatalf("member count after leave = %d, want 1", got.MemberCount)
	}
	// rejoin reactivates the old row at the new role
	m, err := AddMember(r.ID, "bob", models.RoleMember, "alice")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if m.Role != models.RoleMember || !m.Active || m.LeftTS != 0 {
		t.Fatalf("rejoined membership: %+v", m)
	}
	got, _ = Get(r.ID)
	if got.MemberCount != 2 {
		t.Fatalf("member count after rejoin = %d, want 2", got.MemberCount)
	}
}

func TestOwnerCannotLeave(t *testing.T) {
	openStore(t)
	r, _ := Create(models.RoomGroup, "alice", CreateOptions{})
	if err := Leave(r.ID, "alice"); !errs.IsKind(err, errs.Conflict) {
		t.Fatalf("owner leave err = %v, want Conflict", err)
	}
}

func TestChangeRole(t *testing.T) {
	openStore(t)
	r, _ := Create(models.RoomGroup, "alice", CreateOptions{})
	AddMember(r.ID, "bob", models.RoleAdmin, "alice")
	AddMember(r.ID, "carol", models.RoleMember, "alice")

	// admin promotes member to moderator: outranks both
	m, err := ChangeRole(r.ID, "bob", "carol", models.RoleModerator)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if m.Role != models.RoleModerator {
		t.Fatalf("role = %s, want moderator", m.Role)
	}
	// admin cannot grant admin: does not strictly outrank the target role
	if _, err := ChangeRole(r.ID, "bob", "carol", models.RoleAdmin); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("peer grant err = %v, want Forbidden", err)
	}
	// nobody can grant owner through ChangeRole
	if _, err := ChangeRole(r.ID, "alice", "carol", models.RoleOwner); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("grant owner err = %v, want Forbidden", err)
	}
	// member cannot change anyone
	if _, err := ChangeRole(r.ID, "carol", "bob", models.RoleMember); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("member demote err = %v, want Forbidden", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	openStore(t)
	r, _ := Create(models.RoomGroup, "alice", CreateOptions{})
	AddMember(r.ID, "bob", models.RoleMember, "alice")
	if err := TransferOwnership(r.ID, "bob", "alice"); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("non-owner transfer err = %v, want Forbidden", err)
	}
	if err := TransferOwnership(r.ID, "alice", "bob"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	got, _ := Get(r.ID)
	if got.Owner != "bob" {
		t.Fatalf("owner = %s, want bob", got.Owner)
	}
	am, _ := Membership(r.ID, "alice")
	bm, _ := Membership(r.ID, "bob")
	if am.Role != models.RoleAdmin || bm.Role != models.RoleOwner {
		t.Fatalf("roles after transfer: alice=%s bob=%s", am.Role, bm.Role)
	}
	// old owner can now leave
	if err := Leave(r.ID, "alice"); err != nil {
		t.Fatalf("leave after transfer: %v", err)
	}
}

func TestDeactivate(t *testing.T) {
	openStore(t)
	r, _ := Create(models.RoomGroup, "alice", CreateOptions{})
	AddMember(r.ID, "bob", models.RoleAdmin, "alice")
	if err := Deactivate(r.ID, "bob"); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("admin deactivate err = %v, want Forbidden", err)
	}
	if err := Deactivate(r.ID, "alice"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := AddMember(r.ID, "carol", models.RoleMember, "alice"); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("join deactivated err = %v, want NotFound", err)
	}
	// the row survives for message history
	got, err := Get(r.ID)
	if err != nil || got.Active {
		t.Fatalf("deactivated row: %+v err=%v", got, err)
	}
}

func TestEnsureDirectRoom(t *testing.T) {
	openStore(t)
	r1, err := EnsureDirectRoom("alice", "bob")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if r1.Kind != models.RoomDirect || r1.MemberCount != 2 {
		t.Fatalf("direct room: %+v", r1)
	}
	// same pair in either order resolves to the same room
	r2, err := EnsureDirectRoom("bob", "alice")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if r2.ID != r1.ID {
		t.Fatalf("pair resolved to %s and %s", r1.ID, r2.ID)
	}
	if _, err := EnsureDirectRoom("alice", "alice"); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("self pair err = %v, want InvalidArgument", err)
	}
	// fixed pair: no joins, no role changes
	if _, err := AddMember(r1.ID, "carol", models.RoleMember, "alice"); !errs.IsKind(err, errs.Conflict) {
		t.Fatalf("direct add err = %v, want Conflict", err)
	}
	if _, err := ChangeRole(r1.ID, "alice", "bob", models.RoleAdmin); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("direct role err = %v, want Forbidden", err)
	}
}

func TestMembersListing(t *testing.T) {
	openStore(t)
	r, _ := Create(models.RoomGroup, "alice", CreateOptions{})
	AddMember(r.ID, "bob", models.RoleModerator, "alice")
	AddMember(r.ID, "carol", models.RoleMember, "alice")
	RemoveMember(r.ID, "carol")

	if _, err := Members(r.ID, "mallory"); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("outsider listing err = %v, want Forbidden", err)
	}
	ms, err := Members(r.ID, "bob")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("got %d members, want 2 (active only)", len(ms))
	}
	if ms[0].Role != models.RoleOwner {
		t.Fatalf("first member role = %s, want owner-first ordering", ms[0].Role)
	}
}

func TestListForUser(t *testing.T) {
	openStore(t)
	r1, _ := Create(models.RoomGroup, "alice", CreateOptions{Name: "one"})
	r2, _ := Create(models.RoomGroup, "alice", CreateOptions{Name: "two"})
	if err := TouchActivity(r1.ID, r2.LastActivityTS+10); err != nil {
		t.Fatalf("touch: %v", err)
	}
	rs, err := ListForUser("alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("got %d rooms, want 2", len(rs))
	}
	if rs[0].ID != r1.ID {
		t.Fatalf("expected most recently active room first, got %s", rs[0].ID)
	}
}

func TestSetLastReadMonotonic(t *testing.T) {
	openStore(t)
	r, _ := Create(models.RoomGroup, "alice", CreateOptions{})
	AddMember(r.ID, "bob", models.RoleMember, "alice")
	if err := SetLastRead(r.ID, "bob", "msg-00000000000000000005-000001"); err != nil {
		t.Fatalf("set: %v", err)
	}
	// an older position is a no-op
	if err := SetLastRead(r.ID, "bob", "msg-00000000000000000003-000001"); err != nil {
		t.Fatalf("set older: %v", err)
	}
	m, _ := Membership(r.ID, "bob")
	if m.LastReadMsg != "msg-00000000000000000005-000001" {
		t.Fatalf("last read = %s", m.LastReadMsg)
	}
}
