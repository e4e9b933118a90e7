package presence

import (
	"testing"
	"time"

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

func TestConnectDisconnectMultiDevice(t *testing.T) {
	openStore(t)
	p, err := Connect("alice", "s1", models.Device{Kind: "web"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if p.Status != models.PresenceOnline || len(p.Sessions) != 1 {
		t.Fatalf("after first connect: %+v", p)
	}
	p, _ = Connect("alice", "s2", models.Device{Kind: "ios"})
	if len(p.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(p.Sessions))
	}

	// closing one of two sessions keeps the user online, no deadline
	p, err = Disconnect("alice", "s1")
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if p.Status != models.PresenceOnline || p.OfflineAfterTS != 0 {
		t.Fatalf("after partial disconnect: %+v", p)
	}

	// closing the last session arms the deadline but stays online
	p, _ = Disconnect("alice", "s2")
	if p.Status != models.PresenceOnline || p.OfflineAfterTS == 0 {
		t.Fatalf("after last disconnect: %+v", p)
	}
}

func TestGetUnknownUserIsOffline(t *testing.T) {
	openStore(t)
	p, err := Get("nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Status != models.PresenceOffline {
		t.Fatalf("status = %s, want offline", p.Status)
	}
}

func TestSetStatus(t *testing.T) {
	openStore(t)
	// manual status requires a session
	if _, err := SetStatus("alice", models.PresenceBusy, ""); !errs.IsKind(err, errs.Conflict) {
		t.Fatalf("no-session set err = %v, want Conflict", err)
	}
	Connect("alice", "s1", models.Device{})
	p, err := SetStatus("alice", models.PresenceBusy, "recording")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if p.Status != models.PresenceBusy || p.CustomText != "recording" {
		t.Fatalf("after set: %+v", p)
	}
	// online/offline are not manually settable
	if _, err := SetStatus("alice", models.PresenceOnline, ""); !errs.IsKind(err, errs.InvalidArgument) {
		t.Fatalf("manual online err = %v, want InvalidArgument", err)
	}
	p, err = ClearStatus("alice")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if p.Status != models.PresenceOnline || p.CustomText != "" {
		t.Fatalf("after clear: %+v", p)
	}
}

func TestSweepDemotesPastDeadline(t *testing.T) {
	openStore(t)
	SetStaleness(time.Minute)
	t.Cleanup(func() { SetStaleness(30 * time.Minute) })

	Connect("alice", "s1", models.Device{})
	p, _ := Disconnect("alice", "s1")

	// before the deadline nothing happens
	n, err := SweepStale(p.OfflineAfterTS - 1)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("early sweep demoted %d", n)
	}
	got, _ := Get("alice")
	if got.Status != models.PresenceOnline {
		t.Fatalf("demoted early: %+v", got)
	}

	n, err = SweepStale(p.OfflineAfterTS)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("demoted = %d, want 1", n)
	}
	got, _ = Get("alice")
	if got.Status != models.PresenceOffline || got.OfflineAfterTS != 0 || len(got.Sessions) != 0 {
		t.Fatalf("after demotion: %+v", got)
	}
	// already offline rows are skipped
	n, _ = SweepStale(p.OfflineAfterTS + 1)
	if n != 0 {
		t.Fatalf("second sweep demoted %d", n)
	}
}

func TestSweepDemotesSilentSessions(t *testing.T) {
	openStore(t)
	SetStaleness(time.Minute)
	t.Cleanup(func() { SetStaleness(30 * time.Minute) })

	p, _ := Connect("alice", "s1", models.Device{})
	// client crashed: sessions open but no heartbeat past the window
	n, err := SweepStale(p.LastSeenTS + (2 * time.Minute).Nanoseconds())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("demoted = %d, want 1", n)
	}
}

func TestHeartbeatKeepsAlive(t *testing.T) {
	openStore(t)
	SetStaleness(time.Minute)
	t.Cleanup(func() { SetStaleness(30 * time.Minute) })

	p, _ := Connect("alice", "s1", models.Device{})
	start := p.LastSeenTS
	if err := Heartbeat("alice", "s1"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	got, _ := Get("alice")
	if got.LastSeenTS < start {
		t.Fatalf("last seen went backwards")
	}
	// a heartbeat for a closed session does not resurrect it
	Disconnect("alice", "s1")
	if err := Heartbeat("alice", "s1"); err != nil {
		t.Fatalf("stale heartbeat: %v", err)
	}
	got, _ = Get("alice")
	if len(got.Sessions) != 0 {
		t.Fatalf("heartbeat resurrected session: %+v", got)
	}
}
