package messages

import (
	"testing"
	"time"

	"parlor/pkg/errs"
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

func makeRoom(t *testing.T, owner string, members ...string) *models.Room {
	t.Helper()
	r, err := rooms.Create(models.RoomGroup, owner, rooms.CreateOptions{})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, u := range members {
		if _, err := rooms.AddMember(r.ID, u, models.RoleMember, owner); err != nil {
			t.Fatalf("add %s: %v", u, err)
		}
	}
	return r
}

func TestSendToRoomFanOut(t *testing.T) {
	openStore(t)
	r := makeRoom(t, "alice", "bob", "carol")
	m, err := Send(SendInput{RoomID: r.ID, Author: "alice", Content: "hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.Type != models.MsgText {
		t.Fatalf("default type = %s", m.Type)
	}
	// delivery rows for everyone except the author
	recs, err := store.ListDeliveries(m.ID)
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d delivery rows, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec.Status != models.DeliverySent || rec.SentTS == 0 {
			t.Fatalf("bad fan-out row: %+v", rec)
		}
	}
	got, _ := rooms.Get(r.ID)
	if got.LastActivityTS < m.TS {
		t.Fatalf("activity not touched: %d < %d", got.LastActivityTS, m.TS)
	}
}

func TestSendTargetValidation(t *testing.T) {
	openStore(t)
	r := makeRoom(t, "alice")
	if _, err := Send(SendInput{RoomID: r.ID, RecipientID: "bob", Author: "alice", Content: "x"}); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("both targets err = %v", err)
	}
	if _, err := Send(SendInput{Author: "alice", Content: "x"}); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("no target err = %v", err)
	}
	if _, err := Send(SendInput{RoomID: r.ID, Author: "alice"}); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("empty content err = %v", err)
	}
}

func TestSendRequiresMembership(t *testing.T) {
	openStore(t)
	r := makeRoom(t, "alice")
	if _, err := Send(SendInput{RoomID: r.ID, Author: "mallory", Content: "hi"}); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("outsider send err = %v, want Forbidden", err)
	}
}

func TestAnnouncementRequiresModerator(t *testing.T) {
	openStore(t)
	r := makeRoom(t, "alice", "bob")
	if _, err := Send(SendInput{RoomID: r.ID, Author: "bob", Type: models.MsgAnnouncement, Content: "big news"}); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("member announcement err = %v, want Forbidden", err)
	}
	m, err := Send(SendInput{RoomID: r.ID, Author: "alice", Type: models.MsgAnnouncement, Content: "big news"})
	if err != nil {
		t.Fatalf("owner announcement: %v", err)
	}
	// untracked types carry no delivery fan-out
	recs, _ := store.ListDeliveries(m.ID)
	if len(recs) != 0 {
		t.Fatalf("announcement got %d delivery rows, want 0", len(recs))
	}
}

func TestSendDirect(t *testing.T) {
	openStore(t)
	m, err := Send(SendInput{RecipientID: "bob", Author: "alice", Content: "hey"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	recs, _ := store.ListDeliveries(m.ID)
	if len(recs) != 1 || recs[0].UserID != "bob" {
		t.Fatalf("direct fan-out: %+v", recs)
	}
	// the direct room container exists and saw the activity
	dr, err := rooms.EnsureDirectRoom("bob", "alice")
	if err != nil {
		t.Fatalf("direct room: %v", err)
	}
	if dr.LastActivityTS < m.TS {
		t.Fatalf("direct room activity not touched")
	}
	if _, err := Send(SendInput{RecipientID: "alice", Author: "alice", Content: "me"}); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("self DM err = %v", err)
	}
}

func TestSendDirectBlocked(t *testing.T) {
	openStore(t)
	if err := store.SaveBlock(&models.BlockRelation{Blocker: "bob", Blocked: "alice", TS: time.Now().UnixNano()}); err != nil {
		t.Fatalf("save block: %v", err)
	}
	// the block cuts both directions
	if _, err := Send(SendInput{RecipientID: "bob", Author: "alice", Content: "hey"}); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("blocked send err = %v, want Forbidden", err)
	}
	if _, err := Send(SendInput{RecipientID: "alice", Author: "bob", Content: "hey"}); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("blocker send err = %v, want Forbidden", err)
	}
}

func TestReplyReferences(t *testing.T) {
	openStore(t)
	r := makeRoom(t, "alice", "bob")
	orig, _ := Send(SendInput{RoomID: r.ID, Author: "alice", Content: "first"})

	if _, err := Send(SendInput{RoomID: r.ID, Author: "bob", Content: "re", ReplyTo: orig.ID}); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if _, err := Send(SendInput{RoomID: r.ID, Author: "bob", Content: "re", ReplyTo: "msg-00000000000000000001-000001"}); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("dangling reply err = %v, want NotFound", err)
	}
	// cross-room references are hidden, not rejected as forbidden
	other := makeRoom(t, "alice", "bob")
	if _, err := Send(SendInput{RoomID: other.ID, Author: "bob", Content: "re", ReplyTo: orig.ID}); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("cross-room reply err = %v, want NotFound", err)
	}
	// deleted targets cannot be referenced
	if err := Delete(orig.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := Send(SendInput{RoomID: r.ID, Author: "bob", Content: "re", ReplyTo: orig.ID}); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("deleted reply err = %v, want NotFound", err)
	}
}

func TestEdit(t *testing.T) {
	openStore(t)
	r := makeRoom(t, "alice", "bob")
	m, _ := Send(SendInput{RoomID: r.ID, Author: "alice", Content: "v1"})

	if _, err := Edit(m.ID, "bob", "v2"); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("non-author edit err = %v, want Forbidden", err)
	}
	got, err := Edit(m.ID, "alice", "v2")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got.Content != "v2" || !got.Edited {
		t.Fatalf("edited row: %+v", got)
	}
	if len(got.EditHistory) != 1 || got.EditHistory[0].Content != "v1" {
		t.Fatalf("edit history: %+v", got.EditHistory)
	}
	got, _ = Edit(m.ID, "alice", "v3")
	if len(got.EditHistory) != 2 {
		t.Fatalf("history length = %d, want 2", len(got.EditHistory))
	}
	if err := Delete(m.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := Edit(m.ID, "alice", "v4"); !errs.IsKind(err, errs.Conflict) {
		t.Fatalf("edit deleted err = %v, want Conflict", err)
	}
}

func TestDeleteAuthorization(t *testing.T) {
	openStore(t)
	r := makeRoom(t, "alice", "bob", "carol")
	rooms.ChangeRole(r.ID, "alice", "carol", models.RoleModerator)
	m, _ := Send(SendInput{RoomID: r.ID, Author: "bob", Content: "oops", Attachments: []models.Attachment{{URL: "https://cdn/x"}}})

	if err := Delete(m.ID, "bob"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	got, _ := store.GetMessageRow(m.ID)
	if !got.Deleted || got.Content != "" || got.Attachments != nil {
		t.Fatalf("not redacted: %+v", got)
	}
	if err := Delete(m.ID, "bob"); !errs.IsKind(err, errs.Conflict) {
		t.Fatalf("double delete err = %v, want Conflict", err)
	}

	m2, _ := Send(SendInput{RoomID: r.ID, Author: "bob", Content: "again"})
	if err := Delete(m2.ID, "carol"); err != nil {
		t.Fatalf("moderator delete: %v", err)
	}
	m3, _ := Send(SendInput{RoomID: r.ID, Author: "alice", Content: "mine"})
	if err := Delete(m3.ID, "bob"); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("member delete of other err = %v, want Forbidden", err)
	}
}

func TestPinUnpin(t *testing.T) {
	openStore(t)
	r := makeRoom(t, "alice", "bob")
	m, _ := Send(SendInput{RoomID: r.ID, Author: "bob", Content: "keep this"})

	if _, err := Pin(m.ID, "bob"); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("member pin err = %v, want Forbidden", err)
	}
	got, err := Pin(m.ID, "alice")
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	if !got.Pinned || got.PinnedBy != "alice" {
		t.Fatalf("pinned row: %+v", got)
	}
	got, err = Unpin(m.ID, "alice")
	if err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if got.Pinned || got.PinnedBy != "" {
		t.Fatalf("unpinned row: %+v", got)
	}

	dm, _ := Send(SendInput{RecipientID: "bob", Author: "alice", Content: "dm"})
	if _, err := Pin(dm.ID, "alice"); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("direct pin err = %v, want InvalidArgument", err)
	}
}

func TestGetVisibility(t *testing.T) {
	openStore(t)
	r := makeRoom(t, "alice", "bob")
	m, _ := Send(SendInput{RoomID: r.ID, Author: "alice", Content: "private-ish"})

	if _, err := Get(m.ID, "bob"); err != nil {
		t.Fatalf("member get: %v", err)
	}
	if _, err := Get(m.ID, "mallory"); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("outsider get err = %v, want NotFound", err)
	}

	dm, _ := Send(SendInput{RecipientID: "carol", Author: "alice", Content: "psst"})
	if _, err := Get(dm.ID, "carol"); err != nil {
		t.Fatalf("recipient get: %v", err)
	}
	if _, err := Get(dm.ID, "bob"); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("third-party DM get err = %v, want NotFound", err)
	}
}

func TestTimelinePaging(t *testing.T) {
	openStore(t)
	r := makeRoom(t, "alice", "bob")
	var ids []string
	for i := 0; i < 5; i++ {
		m, err := Send(SendInput{RoomID: r.ID, Author: "alice", Content: "n"})
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		ids = append(ids, m.ID)
	}
	page, err := ListRoom(r.ID, "bob", 2, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[3] || page[1].ID != ids[4] {
		t.Fatalf("latest page: %v", msgIDs(page))
	}
	prev, err := ListRoom(r.ID, "bob", 2, page[0].ID)
	if err != nil {
		t.Fatalf("list before: %v", err)
	}
	if len(prev) != 2 || prev[0].ID != ids[1] || prev[1].ID != ids[2] {
		t.Fatalf("previous page: %v", msgIDs(prev))
	}
	if _, err := ListRoom(r.ID, "mallory", 10, ""); !errs.IsKind(err, errs.Forbidden) {
		t.Fatalf("outsider list err = %v, want Forbidden", err)
	}
}

func TestDirectTimeline(t *testing.T) {
	openStore(t)
	Send(SendInput{RecipientID: "bob", Author: "alice", Content: "1"})
	Send(SendInput{RecipientID: "alice", Author: "bob", Content: "2"})
	// unrelated pair does not leak in
	Send(SendInput{RecipientID: "carol", Author: "alice", Content: "x"})

	msgs, err := ListDirect("alice", "bob", 10, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "1" || msgs[1].Content != "2" {
		t.Fatalf("direct timeline: %v", msgIDs(msgs))
	}
}

func msgIDs(ms []models.Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
