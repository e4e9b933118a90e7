package store_test

import (
	"fmt"
	"testing"

	"parlor/pkg/models"
	"parlor/pkg/store"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func msgID(ts int64, seq uint64) string {
	return fmt.Sprintf("msg-%020d-%06d", ts, seq)
}

func appendRoomMessage(t *testing.T, roomID string, m *models.Message) {
	t.Helper()
	b := store.NewBatch()
	if b == nil {
		t.Fatalf("NewBatch returned nil")
	}
	defer b.Close()
	if err := store.BatchSetMessage(b, m); err != nil {
		t.Fatalf("BatchSetMessage: %v", err)
	}
	if err := store.BatchAppendRoomTimeline(b, roomID, m); err != nil {
		t.Fatalf("BatchAppendRoomTimeline: %v", err)
	}
	if err := store.ApplyBatch(b); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
}

func TestTimelineOrderingUnderSameTimestamp(t *testing.T) {
	openTestStore(t)

	room := "room-a"
	// insert out of order: same timestamp distinguished by sequence
	ids := []string{
		msgID(1000, 3),
		msgID(1000, 1),
		msgID(999, 9),
		msgID(1000, 2),
	}
	for _, id := range ids {
		appendRoomMessage(t, room, &models.Message{
			ID: id, RoomID: room, Author: "alice", Type: models.MsgText, Content: "x", TS: 1,
		})
	}

	got, err := store.ListRoomMessages(room, 0, "")
	if err != nil {
		t.Fatalf("ListRoomMessages: %v", err)
	}
	want := []string{msgID(999, 9), msgID(1000, 1), msgID(1000, 2), msgID(1000, 3)}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], got[i].ID)
		}
	}
}

func TestTimelineBeforeCursor(t *testing.T) {
	openTestStore(t)

	room := "room-b"
	for i := int64(1); i <= 5; i++ {
		id := msgID(i*100, uint64(i))
		appendRoomMessage(t, room, &models.Message{
			ID: id, RoomID: room, Author: "alice", Type: models.MsgText, Content: "x",
		})
	}

	got, err := store.ListRoomMessages(room, 2, msgID(400, 4))
	if err != nil {
		t.Fatalf("ListRoomMessages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].ID != msgID(200, 2) || got[1].ID != msgID(300, 3) {
		t.Fatalf("unexpected window: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestDirectTimelineSharedBetweenPair(t *testing.T) {
	openTestStore(t)

	m := &models.Message{ID: msgID(50, 1), RecipientID: "bob", Author: "alice", Type: models.MsgText, Content: "hi"}
	b := store.NewBatch()
	defer b.Close()
	if err := store.BatchSetMessage(b, m); err != nil {
		t.Fatalf("BatchSetMessage: %v", err)
	}
	if err := store.BatchAppendDirectTimeline(b, "alice", "bob", m); err != nil {
		t.Fatalf("BatchAppendDirectTimeline: %v", err)
	}
	if err := store.ApplyBatch(b); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	// both orderings of the pair resolve to the same timeline
	fromA, err := store.ListDirectMessages("alice", "bob", 0, "")
	if err != nil {
		t.Fatalf("ListDirectMessages: %v", err)
	}
	fromB, err := store.ListDirectMessages("bob", "alice", 0, "")
	if err != nil {
		t.Fatalf("ListDirectMessages reversed: %v", err)
	}
	if len(fromA) != 1 || len(fromB) != 1 || fromA[0].ID != fromB[0].ID {
		t.Fatalf("pair timelines disagree: %d vs %d", len(fromA), len(fromB))
	}
}

func TestAdvanceDeliveryMonotonic(t *testing.T) {
	openTestStore(t)

	msg := msgID(10, 1)
	b := store.NewBatch()
	defer b.Close()
	if err := store.BatchSetDelivery(b, &models.DeliveryRecord{
		MessageID: msg, UserID: "bob", Status: models.DeliverySent, SentTS: 5,
	}); err != nil {
		t.Fatalf("BatchSetDelivery: %v", err)
	}
	if err := store.ApplyBatch(b); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	rec, advanced, err := store.AdvanceDelivery(msg, "bob", models.DeliveryRead, 20)
	if err != nil {
		t.Fatalf("AdvanceDelivery read: %v", err)
	}
	if !advanced || rec.Status != models.DeliveryRead {
		t.Fatalf("expected advance to read, got %v advanced=%v", rec.Status, advanced)
	}
	if rec.DeliveredTS == 0 {
		t.Fatalf("read must imply a delivered timestamp")
	}

	// a stale delivered arriving after read must not regress
	rec, advanced, err = store.AdvanceDelivery(msg, "bob", models.DeliveryDelivered, 30)
	if err != nil {
		t.Fatalf("AdvanceDelivery stale: %v", err)
	}
	if advanced || rec.Status != models.DeliveryRead {
		t.Fatalf("stale delivered regressed state: %v advanced=%v", rec.Status, advanced)
	}
	if rec.ReadTS != 20 {
		t.Fatalf("read timestamp overwritten: %d", rec.ReadTS)
	}

	// duplicate read is a no-op as well
	_, advanced, err = store.AdvanceDelivery(msg, "bob", models.DeliveryRead, 40)
	if err != nil {
		t.Fatalf("AdvanceDelivery duplicate: %v", err)
	}
	if advanced {
		t.Fatalf("duplicate read reported a transition")
	}

	// unknown recipient pair surfaces not-found
	if _, _, err := store.AdvanceDelivery(msg, "mallory", models.DeliveryRead, 50); !store.IsNotFound(err) {
		t.Fatalf("expected not-found for unknown pair, got %v", err)
	}
}

func TestCountDeliveriesCumulative(t *testing.T) {
	openTestStore(t)

	msg := msgID(11, 1)
	b := store.NewBatch()
	defer b.Close()
	for _, u := range []string{"u1", "u2", "u3"} {
		if err := store.BatchSetDelivery(b, &models.DeliveryRecord{
			MessageID: msg, UserID: u, Status: models.DeliverySent, SentTS: 1,
		}); err != nil {
			t.Fatalf("BatchSetDelivery: %v", err)
		}
	}
	if err := store.ApplyBatch(b); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if _, _, err := store.AdvanceDelivery(msg, "u1", models.DeliveryDelivered, 2); err != nil {
		t.Fatalf("advance u1: %v", err)
	}
	if _, _, err := store.AdvanceDelivery(msg, "u2", models.DeliveryRead, 3); err != nil {
		t.Fatalf("advance u2: %v", err)
	}

	c, err := store.CountDeliveries(msg)
	if err != nil {
		t.Fatalf("CountDeliveries: %v", err)
	}
	if c.Sent != 3 || c.Delivered != 2 || c.Read != 1 {
		t.Fatalf("unexpected counts: %+v", c)
	}
}

func TestToggleReactionParity(t *testing.T) {
	openTestStore(t)

	msg := msgID(12, 1)
	for i, wantAdded := range []bool{true, false, true} {
		added, err := store.ToggleReaction(msg, "bob", "👍", int64(i+1))
		if err != nil {
			t.Fatalf("ToggleReaction call %d: %v", i+1, err)
		}
		if added != wantAdded {
			t.Fatalf("call %d: expected added=%v, got %v", i+1, wantAdded, added)
		}
	}
	// a different emoji is a separate row
	if _, err := store.ToggleReaction(msg, "bob", "❤️", 4); err != nil {
		t.Fatalf("ToggleReaction heart: %v", err)
	}
	rs, err := store.ListReactions(msg)
	if err != nil {
		t.Fatalf("ListReactions: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 reaction rows, got %d", len(rs))
	}
}

func TestMembershipRecount(t *testing.T) {
	openTestStore(t)

	room := "room-c"
	for i, active := range []bool{true, true, false, true} {
		m := &models.Membership{
			RoomID: room, UserID: fmt.Sprintf("u%d", i), Role: models.RoleMember, Active: active,
		}
		if err := store.SaveMembership(m); err != nil {
			t.Fatalf("SaveMembership: %v", err)
		}
	}
	n, err := store.CountActiveMemberships(room)
	if err != nil {
		t.Fatalf("CountActiveMemberships: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 active memberships, got %d", n)
	}

	// relationship markers track only active rows
	rooms, err := store.ListUserRoomIDs("u2")
	if err != nil {
		t.Fatalf("ListUserRoomIDs: %v", err)
	}
	if len(rooms) != 0 {
		t.Fatalf("inactive membership left a relationship marker: %v", rooms)
	}
}

func TestTouchRoomActivityLastWriteWins(t *testing.T) {
	openTestStore(t)

	r := &models.Room{ID: "room-d", Kind: models.RoomGroup, Owner: "alice", Active: true, LastActivityTS: 100}
	if err := store.SaveRoom(r); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}
	if err := store.TouchRoomActivity(r.ID, 50); err != nil {
		t.Fatalf("TouchRoomActivity older: %v", err)
	}
	got, err := store.GetRoom(r.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if got.LastActivityTS != 100 {
		t.Fatalf("older touch overwrote activity: %d", got.LastActivityTS)
	}
	if err := store.TouchRoomActivity(r.ID, 200); err != nil {
		t.Fatalf("TouchRoomActivity newer: %v", err)
	}
	got, _ = store.GetRoom(r.ID)
	if got.LastActivityTS != 200 {
		t.Fatalf("newer touch did not advance activity: %d", got.LastActivityTS)
	}
}

func TestInviteIndexes(t *testing.T) {
	openTestStore(t)

	inv := &models.Invitation{
		ID: "inv-1", RoomID: "room-e", Inviter: "alice", Invitee: "bob",
		Status: models.InvitePending, CreatedTS: 1,
	}
	if err := store.SaveInvite(inv); err != nil {
		t.Fatalf("SaveInvite: %v", err)
	}
	byRoom, err := store.ListRoomInvites("room-e")
	if err != nil {
		t.Fatalf("ListRoomInvites: %v", err)
	}
	if len(byRoom) != 1 || byRoom[0].ID != "inv-1" {
		t.Fatalf("room index missed the invite: %+v", byRoom)
	}
	byUser, err := store.ListUserInvites("bob")
	if err != nil {
		t.Fatalf("ListUserInvites: %v", err)
	}
	if len(byUser) != 1 || byUser[0].ID != "inv-1" {
		t.Fatalf("user index missed the invite: %+v", byUser)
	}
}

func TestBlockDirections(t *testing.T) {
	openTestStore(t)

	if err := store.SaveBlock(&models.BlockRelation{Blocker: "bob", Blocked: "alice", TS: 1}); err != nil {
		t.Fatalf("SaveBlock: %v", err)
	}
	if ok, err := store.BlockExists("bob", "alice"); err != nil || !ok {
		t.Fatalf("expected forward block, got ok=%v err=%v", ok, err)
	}
	if ok, err := store.BlockExists("alice", "bob"); err != nil || ok {
		t.Fatalf("reverse direction must not exist, got ok=%v err=%v", ok, err)
	}
	if ok, err := store.BlockedEither("alice", "bob"); err != nil || !ok {
		t.Fatalf("either-direction check failed: ok=%v err=%v", ok, err)
	}
	// repeated block keeps the original timestamp
	if err := store.SaveBlock(&models.BlockRelation{Blocker: "bob", Blocked: "alice", TS: 99}); err != nil {
		t.Fatalf("SaveBlock repeat: %v", err)
	}
	blocks, err := store.ListBlocks("bob")
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if len(blocks) != 1 || blocks[0].TS != 1 {
		t.Fatalf("repeat block altered the row: %+v", blocks)
	}
}

func TestCountRoomUnread(t *testing.T) {
	openTestStore(t)

	room := "room-f"
	entries := []struct {
		id     string
		author string
		typ    models.MessageType
	}{
		{msgID(100, 1), "alice", models.MsgText},
		{msgID(200, 2), "bob", models.MsgText},
		{msgID(300, 3), "alice", models.MsgText},
		{msgID(400, 4), "alice", models.MsgSystem},
		{msgID(500, 5), "alice", models.MsgText},
	}
	for _, e := range entries {
		appendRoomMessage(t, room, &models.Message{
			ID: e.id, RoomID: room, Author: e.author, Type: e.typ, Content: "x",
		})
	}

	// bob read through the second entry; system entries and his own do
	// not count
	n, err := store.CountRoomUnread(room, "bob", msgID(200, 2))
	if err != nil {
		t.Fatalf("CountRoomUnread: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 unread, got %d", n)
	}

	// never-read counts everything tracked from others
	n, err = store.CountRoomUnread(room, "bob", "")
	if err != nil {
		t.Fatalf("CountRoomUnread from start: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 unread from start, got %d", n)
	}
}

func TestPresenceUpdateCreatesRow(t *testing.T) {
	openTestStore(t)

	p, err := store.UpdatePresence("carol", func(p *models.Presence) error {
		p.Sessions["s1"] = models.Device{Kind: "web", ConnectedTS: 1}
		p.Status = models.PresenceOnline
		p.LastSeenTS = 1
		return nil
	})
	if err != nil {
		t.Fatalf("UpdatePresence: %v", err)
	}
	if p.Status != models.PresenceOnline || len(p.Sessions) != 1 {
		t.Fatalf("unexpected presence after create: %+v", p)
	}

	got, err := store.GetPresence("carol")
	if err != nil {
		t.Fatalf("GetPresence: %v", err)
	}
	if got.Sessions["s1"].Kind != "web" {
		t.Fatalf("session device lost on persist: %+v", got.Sessions)
	}
}
