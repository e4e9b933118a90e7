package reactions

import (
	"testing"

	"parlor/pkg/errs"
	"parlor/pkg/messages"
	"parlor/pkg/models"
	"parlor/pkg/rooms"
	"parlor/pkg/store"
)

func openStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
}

func roomMessage(t *testing.T) *models.Message {
	t.Helper()
	r, err := rooms.Create(models.RoomGroup, "alice", rooms.CreateOptions{})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := rooms.AddMember(r.ID, "bob", models.RoleMember, "alice"); err != nil {
		t.Fatalf("add bob: %v", err)
	}
	m, err := messages.Send(messages.SendInput{RoomID: r.ID, Author: "alice", Content: "react to me"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return m
}

func TestToggle(t *testing.T) {
	openStore(t)
	m := roomMessage(t)

	added, err := Toggle(m.ID, "bob", "🔥")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !added {
		t.Fatalf("first toggle did not add")
	}
	// same triple toggles off
	added, err = Toggle(m.ID, "bob", "🔥")
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if added {
		t.Fatalf("second toggle did not remove")
	}
	ok, _ := store.HasReaction(m.ID, "bob", "🔥")
	if ok {
		t.Fatalf("row survived the off-toggle")
	}
}

func TestToggleAuthorization(t *testing.T) {
	openStore(t)
	m := roomMessage(t)
	if _, err := Toggle(m.ID, "mallory", "👍"); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("outsider toggle err = %v, want NotFound", err)
	}
	if _, err := Toggle(m.ID, "bob", "not an emoji "); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("bad emoji err = %v, want InvalidArgument", err)
	}
	if err := messages.Delete(m.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := Toggle(m.ID, "bob", "👍"); !errs.IsKind(err, errs.Conflict) {
		t.Fatalf("deleted toggle err = %v, want Conflict", err)
	}
}

func TestListForMessageGroups(t *testing.T) {
	openStore(t)
	m := roomMessage(t)
	Toggle(m.ID, "alice", "👍")
	Toggle(m.ID, "bob", "👍")
	Toggle(m.ID, "bob", "🔥")

	groups, err := ListForMessage(m.ID, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	// highest count first
	if groups[0].Emoji != "👍" || groups[0].Count != 2 {
		t.Fatalf("first group: %+v", groups[0])
	}
	if len(groups[0].Users) != 2 || groups[0].Users[0] != "alice" {
		t.Fatalf("group users: %+v", groups[0].Users)
	}
	if _, err := ListForMessage(m.ID, "mallory"); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("outsider list err = %v, want NotFound", err)
	}
}
