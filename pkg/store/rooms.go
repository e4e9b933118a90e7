package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/store/keys"

	"github.com/cockroachdb/pebble"
)

// WithRoomLock serializes read-modify-write sequences touching one
// room aggregate (member counts, activity touches, role changes).
func WithRoomLock(roomID string, fn func() error) error {
	return WithLock(keys.GenRoomKey(roomID), fn)
}

// SaveRoom persists a room row.
func SaveRoom(r *models.Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}
	if err := SaveKey(keys.GenRoomKey(r.ID), data); err != nil {
		logger.Error("save_room_failed", "room", r.ID, "error", err)
		return err
	}
	return nil
}

// GetRoom loads a room row; pebble.ErrNotFound when absent.
func GetRoom(roomID string) (*models.Room, error) {
	v, err := GetKey(keys.GenRoomKey(roomID))
	if err != nil {
		return nil, err
	}
	var r models.Room
	if err := json.Unmarshal(v, &r); err != nil {
		return nil, fmt.Errorf("invalid room row: %w", err)
	}
	return &r, nil
}

// UpdateRoom applies fn to the stored room under the room lock and
// persists the result. fn returning an error aborts without writing.
func UpdateRoom(roomID string, fn func(*models.Room) error) (*models.Room, error) {
	var out *models.Room
	err := WithRoomLock(roomID, func() error {
		r, err := GetRoom(roomID)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		if err := SaveRoom(r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// TouchRoomActivity advances the room's lastActivity timestamp,
// last-write-wins: an older ts than the stored one is a no-op.
func TouchRoomActivity(roomID string, ts int64) error {
	_, err := UpdateRoom(roomID, func(r *models.Room) error {
		if ts > r.LastActivityTS {
			r.LastActivityTS = ts
		}
		return nil
	})
	return err
}

// BatchSetRoom appends a room row write to a batch.
func BatchSetRoom(b *pebble.Batch, r *models.Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}
	return b.Set([]byte(keys.GenRoomKey(r.ID)), data, nil)
}

// SaveMembership persists a membership row plus its user→room
// relationship marker in one atomic batch.
func SaveMembership(m *models.Membership) error {
	b := NewBatch()
	if b == nil {
		return errNotOpen
	}
	defer b.Close()
	if err := BatchSetMembership(b, m); err != nil {
		return err
	}
	if err := ApplyBatch(b); err != nil {
		logger.Error("save_membership_failed", "room", m.RoomID, "user", m.UserID, "error", err)
		return err
	}
	return nil
}

// BatchSetMembership appends a membership row and its relationship
// marker to a batch.
func BatchSetMembership(b *pebble.Batch, m *models.Membership) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal membership: %w", err)
	}
	if err := b.Set([]byte(keys.GenMemberKey(m.RoomID, m.UserID)), data, nil); err != nil {
		return err
	}
	rel := keys.GenRelUserRoomKey(m.UserID, m.RoomID)
	if m.Active {
		return b.Set([]byte(rel), []byte(m.RoomID), nil)
	}
	return b.Delete([]byte(rel), nil)
}

// GetMembership loads one membership row; pebble.ErrNotFound when the
// user never joined the room.
func GetMembership(roomID, userID string) (*models.Membership, error) {
	v, err := GetKey(keys.GenMemberKey(roomID, userID))
	if err != nil {
		return nil, err
	}
	var m models.Membership
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, fmt.Errorf("invalid membership row: %w", err)
	}
	return &m, nil
}

// ListMemberships returns all membership rows of a room, inactive ones
// included; callers filter on Active.
func ListMemberships(roomID string) ([]models.Membership, error) {
	var out []models.Membership
	err := scanPrefix(keys.GenMemberPrefix(roomID), func(_ string, v []byte) bool {
		var m models.Membership
		if err := json.Unmarshal(v, &m); err == nil {
			out = append(out, m)
		}
		return true
	})
	return out, err
}

// CountActiveMemberships recounts active membership rows of a room;
// used by the startup audit to repair the cached member count.
func CountActiveMemberships(roomID string) (int, error) {
	n := 0
	err := scanPrefix(keys.GenMemberPrefix(roomID), func(_ string, v []byte) bool {
		var m models.Membership
		if err := json.Unmarshal(v, &m); err == nil && m.Active {
			n++
		}
		return true
	})
	return n, err
}

// ListUserRoomIDs returns the ids of rooms the user actively belongs
// to, via the relationship markers.
func ListUserRoomIDs(userID string) ([]string, error) {
	var out []string
	err := scanPrefix(keys.GenRelUserRoomPrefix(userID), func(_ string, v []byte) bool {
		out = append(out, string(v))
		return true
	})
	return out, err
}

// ListRoomIDs returns every room id in the store, for maintenance scans.
func ListRoomIDs() ([]string, error) {
	var out []string
	err := scanPrefix(keys.RoomPrefix, func(k string, _ []byte) bool {
		if keys.IsRoomMetaKey(k) {
			out = append(out, strings.TrimPrefix(k, keys.RoomPrefix))
		}
		return true
	})
	return out, err
}
