// Package presence keeps multi-device presence: a user is online while
// any session is open, and goes offline only after every session closed
// and the staleness window passed.
package presence

import (
	"time"

	"parlor/pkg/cache"
	"parlor/pkg/errs"
	"parlor/pkg/events"
	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/store"
	"parlor/pkg/telemetry"
	"parlor/pkg/validation"
)

var staleness = 30 * time.Minute

// SetStaleness installs the configured staleness threshold at startup.
// It is both the heartbeat deadline and the offline grace window.
func SetStaleness(d time.Duration) {
	if d > 0 {
		staleness = d
	}
}

func now() int64 { return time.Now().UTC().UnixNano() }

// Connect registers an open session for the user. The first session of
// an offline user flips them online.
func Connect(userID, sessionID string, dev models.Device) (*models.Presence, error) {
	if err := validation.RequireID("user", userID); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, errs.E(errs.InvalidArgument, "session id is required")
	}
	var changed bool
	p, err := store.UpdatePresence(userID, func(p *models.Presence) error {
		ts := now()
		if dev.ConnectedTS == 0 {
			dev.ConnectedTS = ts
		}
		p.Sessions[sessionID] = dev
		p.LastSeenTS = ts
		p.OfflineAfterTS = 0
		if p.Status == models.PresenceOffline {
			p.Status = models.PresenceOnline
			changed = true
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "connect presence")
	}
	cache.InvalidatePresence(userID)
	if changed {
		publishChange(p)
	}
	return p, nil
}

// Disconnect removes a session. Closing the last session does not flip
// the user offline immediately; it arms the demotion deadline for the
// staleness sweep, so brief reconnects keep presence stable.
func Disconnect(userID, sessionID string) (*models.Presence, error) {
	p, err := store.UpdatePresence(userID, func(p *models.Presence) error {
		delete(p.Sessions, sessionID)
		ts := now()
		p.LastSeenTS = ts
		if len(p.Sessions) == 0 {
			p.OfflineAfterTS = ts + staleness.Nanoseconds()
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "disconnect presence")
	}
	cache.InvalidatePresence(userID)
	return p, nil
}

// Heartbeat refreshes last-seen for an open session. Unknown sessions
// are ignored rather than resurrected; the client should reconnect.
func Heartbeat(userID, sessionID string) error {
	_, err := store.UpdatePresence(userID, func(p *models.Presence) error {
		if _, ok := p.Sessions[sessionID]; !ok {
			return nil
		}
		p.LastSeenTS = now()
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.Internal, err, "heartbeat")
	}
	return nil
}

// SetStatus applies a manual status. Only away and busy can be set by
// hand; online and offline are derived from connections. A manual
// status requires at least one open session.
func SetStatus(userID string, status models.PresenceStatus, customText string) (*models.Presence, error) {
	if !status.Manual() {
		return nil, errs.E(errs.InvalidArgument, "status %q cannot be set manually", string(status))
	}
	var changed bool
	p, err := store.UpdatePresence(userID, func(p *models.Presence) error {
		if len(p.Sessions) == 0 {
			return errs.E(errs.Conflict, "user %s has no open session", userID)
		}
		if p.Status != status || p.CustomText != customText {
			changed = true
		}
		p.Status = status
		p.CustomText = customText
		p.LastSeenTS = now()
		return nil
	})
	if err != nil {
		if errs.KindOf(err) != errs.Internal {
			return nil, err
		}
		return nil, errs.Wrap(errs.Internal, err, "set status")
	}
	cache.InvalidatePresence(userID)
	if changed {
		publishChange(p)
	}
	return p, nil
}

// ClearStatus returns the user to connection-derived online.
func ClearStatus(userID string) (*models.Presence, error) {
	p, err := store.UpdatePresence(userID, func(p *models.Presence) error {
		if len(p.Sessions) == 0 {
			return errs.E(errs.Conflict, "user %s has no open session", userID)
		}
		p.Status = models.PresenceOnline
		p.CustomText = ""
		p.LastSeenTS = now()
		return nil
	})
	if err != nil {
		if errs.KindOf(err) != errs.Internal {
			return nil, err
		}
		return nil, errs.Wrap(errs.Internal, err, "clear status")
	}
	cache.InvalidatePresence(userID)
	publishChange(p)
	return p, nil
}

// Get returns the user's presence. Users never seen read as offline
// rather than missing. Reads go through the cache when enabled.
func Get(userID string) (*models.Presence, error) {
	if p, ok := cache.GetPresence(userID); ok {
		return p, nil
	}
	p, err := store.GetPresence(userID)
	if err != nil {
		if store.IsNotFound(err) {
			return &models.Presence{UserID: userID, Status: models.PresenceOffline}, nil
		}
		return nil, errs.Wrap(errs.Internal, err, "load presence")
	}
	cache.SetPresence(p)
	return p, nil
}

// GetMany resolves presence for a set of users in one call.
func GetMany(userIDs []string) (map[string]*models.Presence, error) {
	out := make(map[string]*models.Presence, len(userIDs))
	for _, id := range userIDs {
		p, err := Get(id)
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

// SweepStale demotes users whose demotion deadline has passed, and arms
// a deadline for rows whose sessions all went silent past the staleness
// window without a disconnect (crashed clients). Returns the number of
// users demoted.
func SweepStale(nowTS int64) (int, error) {
	var candidates []string
	err := store.ScanPresence(func(p *models.Presence) bool {
		if p.Status == models.PresenceOffline {
			return true
		}
		if p.OfflineAfterTS != 0 && nowTS >= p.OfflineAfterTS {
			candidates = append(candidates, p.UserID)
			return true
		}
		if len(p.Sessions) > 0 && nowTS-p.LastSeenTS > staleness.Nanoseconds() {
			candidates = append(candidates, p.UserID)
		}
		return true
	})
	if err != nil {
		return 0, errs.Wrap(errs.Internal, err, "scan presence")
	}
	demoted := 0
	for _, id := range candidates {
		var did bool
		p, err := store.UpdatePresence(id, func(p *models.Presence) error {
			// re-check under the lock: the user may have reconnected
			stale := (p.OfflineAfterTS != 0 && nowTS >= p.OfflineAfterTS) ||
				(len(p.Sessions) > 0 && nowTS-p.LastSeenTS > staleness.Nanoseconds())
			if p.Status == models.PresenceOffline || !stale {
				return nil
			}
			p.Status = models.PresenceOffline
			p.CustomText = ""
			p.Sessions = make(map[string]models.Device)
			p.OfflineAfterTS = 0
			did = true
			return nil
		})
		if err != nil {
			logger.Warn("presence_demote_failed", "user", id, "error", err)
			continue
		}
		if did {
			demoted++
			cache.InvalidatePresence(id)
			publishChange(p)
		}
	}
	telemetry.RecordSweep("presence", demoted)
	if demoted > 0 {
		logger.Info("presence_sweep", "demoted", demoted)
	}
	return demoted, nil
}

// publishChange fans the change out to everyone sharing a room with
// the user. Audience resolution failures degrade to no fan-out.
func publishChange(p *models.Presence) {
	_ = events.Publish(events.Event{
		Type:     events.PresenceChanged,
		Audience: watcherIDs(p.UserID),
		TS:       now(),
		Payload: map[string]any{
			"user_id":     p.UserID,
			"status":      p.Status,
			"custom_text": p.CustomText,
		},
	})
}

func watcherIDs(userID string) []string {
	roomIDs, err := store.ListUserRoomIDs(userID)
	if err != nil {
		logger.Warn("presence_audience_failed", "user", userID, "error", err)
		return nil
	}
	seen := map[string]bool{userID: true}
	out := []string{userID}
	for _, rid := range roomIDs {
		ms, err := store.ListMemberships(rid)
		if err != nil {
			continue
		}
		for _, m := range ms {
			if m.Active && !seen[m.UserID] {
				seen[m.UserID] = true
				out = append(out, m.UserID)
			}
		}
	}
	return out
}
