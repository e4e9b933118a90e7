package store

import (
	"encoding/json"
	"fmt"

	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/store/keys"
)

// GetPresence loads a user's presence row; pebble.ErrNotFound for
// users never seen.
func GetPresence(userID string) (*models.Presence, error) {
	v, err := GetKey(keys.GenPresenceKey(userID))
	if err != nil {
		return nil, err
	}
	var p models.Presence
	if err := json.Unmarshal(v, &p); err != nil {
		return nil, fmt.Errorf("invalid presence row: %w", err)
	}
	return &p, nil
}

// SavePresence persists a presence row.
func SavePresence(p *models.Presence) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}
	if err := SaveKey(keys.GenPresenceKey(p.UserID), data); err != nil {
		logger.Error("save_presence_failed", "user", p.UserID, "error", err)
		return err
	}
	return nil
}

// UpdatePresence applies fn to the user's presence row under the
// per-user lock, creating a fresh offline row when none exists, so
// concurrent connect/disconnect events from different devices apply as
// atomic set operations rather than overwrites.
func UpdatePresence(userID string, fn func(*models.Presence) error) (*models.Presence, error) {
	var out *models.Presence
	err := WithLock(keys.GenPresenceKey(userID), func() error {
		p, err := GetPresence(userID)
		if err != nil {
			if !IsNotFound(err) {
				return err
			}
			p = &models.Presence{
				UserID:   userID,
				Status:   models.PresenceOffline,
				Sessions: make(map[string]models.Device),
			}
		}
		if p.Sessions == nil {
			p.Sessions = make(map[string]models.Device)
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := SavePresence(p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// ScanPresence walks every presence row; fn returning false stops the
// scan. The staleness sweep uses this.
func ScanPresence(fn func(*models.Presence) bool) error {
	return scanPrefix(keys.PresencePrefix, func(_ string, v []byte) bool {
		var p models.Presence
		if err := json.Unmarshal(v, &p); err != nil {
			return true
		}
		return fn(&p)
	})
}
