package moderation

import (
	"testing"

	"parlor/pkg/errs"
	"parlor/pkg/invites"
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

func TestBlockUnblock(t *testing.T) {
	openStore(t)
	if err := Block("alice", "alice"); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("self block err = %v", err)
	}
	if err := Block("alice", "bob"); err != nil {
		t.Fatalf("block: %v", err)
	}
	ok, err := IsBlocked("alice", "bob")
	if err != nil || !ok {
		t.Fatalf("IsBlocked = %v, %v", ok, err)
	}
	// directional
	ok, _ = IsBlocked("bob", "alice")
	if ok {
		t.Fatalf("reverse direction reported blocked")
	}

	// idempotent: timestamp survives the repeat
	first, _ := Blocks("alice")
	if err := Block("alice", "bob"); err != nil {
		t.Fatalf("re-block: %v", err)
	}
	second, _ := Blocks("alice")
	if len(second) != 1 || second[0].TS != first[0].TS {
		t.Fatalf("re-block changed rows: %+v vs %+v", first, second)
	}

	if err := Unblock("alice", "bob"); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	ok, _ = IsBlocked("alice", "bob")
	if ok {
		t.Fatalf("still blocked after unblock")
	}
	// absent row unblock is a no-op
	if err := Unblock("alice", "bob"); err != nil {
		t.Fatalf("double unblock: %v", err)
	}
}

func TestBlockInvalidatesInvites(t *testing.T) {
	openStore(t)
	r, _ := rooms.Create(models.RoomGroup, "alice", rooms.CreateOptions{})
	inv, err := invites.Create(invites.CreateInput{RoomID: r.ID, Inviter: "alice", Invitee: "bob"})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := Block("bob", "alice"); err != nil {
		t.Fatalf("block: %v", err)
	}
	got, _ := store.GetInvite(inv.ID)
	if got.Status != models.InviteDeclined {
		t.Fatalf("invitation status = %s, want declined", got.Status)
	}
}

func reportedMessage(t *testing.T) *models.Report {
	t.Helper()
	r, _ := rooms.Create(models.RoomGroup, "alice", rooms.CreateOptions{})
	rooms.AddMember(r.ID, "bob", models.RoleMember, "alice")
	m, err := messages.Send(messages.SendInput{RoomID: r.ID, Author: "alice", Content: "spam"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	rp, err := Report(ReportInput{MessageID: m.ID, Reporter: "bob", Reason: "spam"})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	return rp
}

func TestReport(t *testing.T) {
	openStore(t)
	rp := reportedMessage(t)
	if rp.Status != models.ReportPending || rp.ID == "" {
		t.Fatalf("report: %+v", rp)
	}
	// reporters must see the message
	if _, err := Report(ReportInput{MessageID: rp.MessageID, Reporter: "mallory", Reason: "x"}); !errs.IsKind(err, errs.NotFound) {
		t.Fatalf("outsider report err = %v, want NotFound", err)
	}
	if _, err := Report(ReportInput{MessageID: rp.MessageID, Reporter: "bob", Reason: "  "}); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("empty reason err = %v", err)
	}
}

func TestReviewStateMachine(t *testing.T) {
	openStore(t)
	rp := reportedMessage(t)

	if _, err := Review(ReviewInput{ReportID: rp.ID, Reviewer: "mod", Status: models.ReportPending}); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("pending review err = %v", err)
	}
	// intermediate hold
	got, err := Review(ReviewInput{ReportID: rp.ID, Reviewer: "mod", Status: models.ReportReviewed, Notes: "looking"})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if got.Status != models.ReportReviewed || got.AssignedTo != "mod" || got.ResolvedTS != 0 {
		t.Fatalf("reviewed report: %+v", got)
	}
	// reviewed can still close
	got, err = Review(ReviewInput{ReportID: rp.ID, Reviewer: "mod", Status: models.ReportDismissed})
	if err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if got.Status != models.ReportDismissed || got.ResolvedTS == 0 {
		t.Fatalf("dismissed report: %+v", got)
	}
	// terminal conflicts
	if _, err := Review(ReviewInput{ReportID: rp.ID, Reviewer: "mod", Status: models.ReportResolved}); !errs.IsKind(err, errs.Conflict) {
		t.Fatalf("reopen err = %v, want Conflict", err)
	}
}

func TestReviewRemovesMessage(t *testing.T) {
	openStore(t)
	rp := reportedMessage(t)

	if _, err := Review(ReviewInput{ReportID: rp.ID, Reviewer: "mod", Status: models.ReportDismissed, RemoveMessage: true}); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("dismiss+remove err = %v", err)
	}
	if _, err := Review(ReviewInput{ReportID: rp.ID, Reviewer: "mod", Status: models.ReportResolved, RemoveMessage: true}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	m, err := store.GetMessageRow(rp.MessageID)
	if err != nil {
		t.Fatalf("load message: %v", err)
	}
	if !m.Deleted || m.Content != "" {
		t.Fatalf("message not redacted: %+v", m)
	}
}

func TestListReports(t *testing.T) {
	openStore(t)
	rp := reportedMessage(t)
	Review(ReviewInput{ReportID: rp.ID, Reviewer: "mod", Status: models.ReportResolved})
	reportedMessage(t)

	all, err := ListReports("")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d, want 2", len(all))
	}
	pending, err := ListReports(models.ReportPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if _, err := ListReports("weird"); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("bad status err = %v", err)
	}
}
