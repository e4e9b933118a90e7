package upgrade

import (
	"context"
	"path/filepath"
	"testing"

	"parlor/pkg/models"
	"parlor/pkg/rooms"
	"parlor/pkg/store"
	"parlor/pkg/store/keys"
)

func openStore(t *testing.T) {
	t.Helper()
	if err := store.Open(filepath.Join(t.TempDir(), "store")); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestRunPersistsVersion(t *testing.T) {
	openStore(t)

	ran, err := Run(context.Background(), "1.0.0")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !ran {
		t.Fatalf("first run did not sync")
	}
	v, err := store.GetKey(keys.SystemVersionKey)
	if err != nil || string(v) != "1.0.0" {
		t.Fatalf("stored version = %q, err %v", v, err)
	}
	if _, err := store.GetKey(inProgressKey); !store.IsNotFound(err) {
		t.Fatalf("in-progress marker survived: %v", err)
	}

	// same version is a no-op
	ran, err = Run(context.Background(), "1.0.0")
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if ran {
		t.Fatalf("rerun synced at same version")
	}
}

func TestAuditRepairsDriftedCount(t *testing.T) {
	openStore(t)

	room, err := rooms.Create("group", "alice", rooms.CreateOptions{Name: "r"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := rooms.AddMember(room.ID, "bob", models.RoleMember, "alice"); err != nil {
		t.Fatalf("add member: %v", err)
	}

	// corrupt the cached count
	if _, err := store.UpdateRoom(room.ID, func(r *models.Room) error {
		r.MemberCount = 99
		return nil
	}); err != nil {
		t.Fatalf("corrupt count: %v", err)
	}

	fixed, err := AuditMemberCounts(context.Background())
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if fixed != 1 {
		t.Fatalf("fixed = %d, want 1", fixed)
	}
	got, err := store.GetRoom(room.ID)
	if err != nil {
		t.Fatalf("load room: %v", err)
	}
	if got.MemberCount != 2 {
		t.Fatalf("member count = %d, want 2", got.MemberCount)
	}

	// clean state audits to zero repairs
	fixed, err = AuditMemberCounts(context.Background())
	if err != nil || fixed != 0 {
		t.Fatalf("second audit fixed = %d, err %v", fixed, err)
	}
}
