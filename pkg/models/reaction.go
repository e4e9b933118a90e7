package models

// Reaction is unique per (message, user, emoji); re-reacting toggles
// the row rather than duplicating it.
type Reaction struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
	TS        int64  `json:"ts,omitempty"`
}

// ReactionGroup aggregates one emoji's reactions on a message.
type ReactionGroup struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users,omitempty"`
}
