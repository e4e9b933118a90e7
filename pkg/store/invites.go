package store

import (
	"encoding/json"
	"fmt"

	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/store/keys"
)

// SaveInvite persists an invitation plus its room index and, when the
// invitee is a known user, the invitee index, in one atomic batch.
func SaveInvite(inv *models.Invitation) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal invitation: %w", err)
	}
	b := NewBatch()
	if b == nil {
		return errNotOpen
	}
	defer b.Close()
	if err := b.Set([]byte(keys.GenInviteKey(inv.ID)), data, nil); err != nil {
		return err
	}
	if err := b.Set([]byte(keys.GenRoomInviteIdx(inv.RoomID, inv.ID)), []byte(inv.ID), nil); err != nil {
		return err
	}
	if inv.Invitee != "" {
		if err := b.Set([]byte(keys.GenUserInviteIdx(inv.Invitee, inv.ID)), []byte(inv.ID), nil); err != nil {
			return err
		}
	}
	if err := ApplyBatch(b); err != nil {
		logger.Error("save_invite_failed", "invite", inv.ID, "error", err)
		return err
	}
	return nil
}

// GetInvite loads an invitation row.
func GetInvite(inviteID string) (*models.Invitation, error) {
	v, err := GetKey(keys.GenInviteKey(inviteID))
	if err != nil {
		return nil, err
	}
	var inv models.Invitation
	if err := json.Unmarshal(v, &inv); err != nil {
		return nil, fmt.Errorf("invalid invitation row: %w", err)
	}
	return &inv, nil
}

// UpdateInvite applies fn to the invitation under its lock and saves
// the result, serializing accept/decline/expiry transitions so each
// terminal transition happens exactly once.
func UpdateInvite(inviteID string, fn func(*models.Invitation) error) (*models.Invitation, error) {
	var out *models.Invitation
	err := WithLock(keys.GenInviteKey(inviteID), func() error {
		inv, err := GetInvite(inviteID)
		if err != nil {
			return err
		}
		if err := fn(inv); err != nil {
			return err
		}
		data, err := json.Marshal(inv)
		if err != nil {
			return fmt.Errorf("failed to marshal invitation: %w", err)
		}
		if err := SaveKey(keys.GenInviteKey(inviteID), data); err != nil {
			logger.Error("update_invite_failed", "invite", inviteID, "error", err)
			return err
		}
		out = inv
		return nil
	})
	return out, err
}

func resolveInviteIndex(prefix string) ([]models.Invitation, error) {
	var out []models.Invitation
	var scanErr error
	err := scanPrefix(prefix, func(_ string, v []byte) bool {
		inv, err := GetInvite(string(v))
		if err != nil {
			if IsNotFound(err) {
				return true
			}
			scanErr = err
			return false
		}
		out = append(out, *inv)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, scanErr
}

// ListRoomInvites returns all invitations issued for a room.
func ListRoomInvites(roomID string) ([]models.Invitation, error) {
	return resolveInviteIndex(keys.GenRoomInvitePrefix(roomID))
}

// ListUserInvites returns all invitations addressed to a known user.
func ListUserInvites(userID string) ([]models.Invitation, error) {
	return resolveInviteIndex(keys.GenUserInvitePrefix(userID))
}

// ScanInvites walks every invitation row; the expiry sweep uses this.
func ScanInvites(fn func(*models.Invitation) bool) error {
	return scanPrefix(keys.InvitePrefix, func(_ string, v []byte) bool {
		var inv models.Invitation
		if err := json.Unmarshal(v, &inv); err != nil {
			return true
		}
		return fn(&inv)
	})
}
