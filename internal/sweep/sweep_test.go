package sweep

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"parlor/pkg/invites"
	"parlor/pkg/rooms"
	"parlor/pkg/store"
)

func openStore(t *testing.T) {
	t.Helper()
	if err := store.Open(filepath.Join(t.TempDir(), "store")); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestRunByName(t *testing.T) {
	openStore(t)
	jobs := Jobs("*/5 * * * *", "0 * * * *")

	room, err := rooms.Create("group", "alice", rooms.CreateOptions{Name: "r"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := invites.Create(invites.CreateInput{
		RoomID:  room.ID,
		Inviter: "alice",
		Invitee: "bob",
		TTL:     time.Nanosecond,
	}); err != nil {
		t.Fatalf("create invite: %v", err)
	}

	n, err := Run(jobs, "invites")
	if err != nil {
		t.Fatalf("run invites: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	// nothing stale on a fresh store
	n, err = Run(jobs, "presence")
	if err != nil {
		t.Fatalf("run presence: %v", err)
	}
	if n != 0 {
		t.Fatalf("demoted = %d, want 0", n)
	}

	if _, err := Run(jobs, "compost"); err == nil {
		t.Fatalf("unknown job did not error")
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	jobs := []Job{{Name: "broken", Cron: "not a cron", Fn: func(int64) (int, error) { return 0, nil }}}
	if _, err := Start(context.Background(), jobs); err == nil {
		t.Fatalf("bad cron accepted")
	}
}

func TestStartAndCancel(t *testing.T) {
	openStore(t)
	cancel, err := Start(context.Background(), Jobs("*/5 * * * *", "0 * * * *"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
}
