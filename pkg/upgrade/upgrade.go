// Package upgrade performs startup migrations between versions and
// audits derived state that must stay consistent with the raw rows.
package upgrade

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/store"
	"parlor/pkg/store/keys"
)

const inProgressKey = "system:migration_in_progress"

// Run checks the stored version against the running one and performs
// sync work on change. Returns whether a sync ran.
func Run(ctx context.Context, newVersion string) (bool, error) {
	stored := storedVersion()
	logger.Info("upgrade_version_check", "stored", stored, "running", newVersion)
	if stored == newVersion {
		return false, nil
	}

	marker := map[string]string{
		"from":       stored,
		"to":         newVersion,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
	mb, _ := json.Marshal(marker)
	if err := store.SaveKey(inProgressKey, mb); err != nil {
		return true, fmt.Errorf("write in-progress marker: %w", err)
	}

	if err := Sync(ctx, stored, newVersion); err != nil {
		logger.Error("upgrade_sync_failed", "from", stored, "to", newVersion, "error", err)
		return true, err
	}

	if err := store.SaveKey(keys.SystemVersionKey, []byte(newVersion)); err != nil {
		return true, fmt.Errorf("persist version: %w", err)
	}
	if err := store.DeleteKey(inProgressKey); err != nil {
		logger.Error("upgrade_delete_inprogress_failed", "error", err)
	}
	logger.Info("upgrade_version_persisted", "version", newVersion)
	return true, nil
}

// Sync holds the between-version migration work. Every step must be
// idempotent; a crash mid-sync reruns the whole thing.
func Sync(ctx context.Context, from, to string) error {
	logger.Info("upgrade_sync_start", "from", from, "to", to)
	fixed, err := AuditMemberCounts(ctx)
	if err != nil {
		return err
	}
	if fixed > 0 {
		logger.Warn("upgrade_member_counts_repaired", "rooms", fixed)
	}
	logger.Info("upgrade_sync_done", "from", from, "to", to)
	return nil
}

// AuditMemberCounts recounts active memberships per room and repairs
// cached counts that drifted. Returns the number of rooms fixed.
func AuditMemberCounts(ctx context.Context) (int, error) {
	ids, err := store.ListRoomIDs()
	if err != nil {
		return 0, fmt.Errorf("list rooms: %w", err)
	}
	fixed := 0
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return fixed, ctx.Err()
		default:
		}
		actual, err := store.CountActiveMemberships(id)
		if err != nil {
			logger.Error("upgrade_recount_failed", "room", id, "error", err)
			continue
		}
		r, err := store.GetRoom(id)
		if err != nil {
			logger.Error("upgrade_load_room_failed", "room", id, "error", err)
			continue
		}
		if r.MemberCount == actual {
			continue
		}
		cached := r.MemberCount
		if _, err := store.UpdateRoom(id, func(r *models.Room) error {
			r.MemberCount = actual
			return nil
		}); err != nil {
			logger.Error("upgrade_repair_failed", "room", id, "error", err)
			continue
		}
		logger.Warn("upgrade_member_count_drift", "room", id, "cached", cached, "actual", actual)
		fixed++
	}
	return fixed, nil
}

func storedVersion() string {
	v, err := store.GetKey(keys.SystemVersionKey)
	if err != nil {
		return ""
	}
	return string(v)
}
