package models

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline:
		return true
	}
	return false
}

// Manual reports whether the status may be set by the user directly.
// online and offline are connection-derived only.
func (s PresenceStatus) Manual() bool {
	return s == PresenceAway || s == PresenceBusy
}

// Device describes one open connection of a user.
type Device struct {
	Kind        string `json:"kind,omitempty"` // web, ios, android, ...
	UserAgent   string `json:"user_agent,omitempty"`
	ConnectedTS int64  `json:"connected_ts,omitempty"`
}

type Presence struct {
	UserID     string         `json:"user_id"`
	Status     PresenceStatus `json:"status"`
	CustomText string         `json:"custom_text,omitempty"`
	// LastSeenTS refreshes on connect, heartbeat and disconnect.
	LastSeenTS int64 `json:"last_seen_ts,omitempty"`
	// Sessions maps open session ids to their devices; mutated only by
	// set-union on connect and set-difference on disconnect.
	Sessions map[string]Device `json:"sessions,omitempty"`
	// OfflineAfterTS is the demotion deadline recorded when the session
	// set empties (last seen + staleness threshold); zero while any
	// session remains open. The sweep demotes only past this deadline.
	OfflineAfterTS int64 `json:"offline_after_ts,omitempty"`
}
