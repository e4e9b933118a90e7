package models

// MessageType partitions message handling: user content types carry
// delivery fan-out, system and announcement do not.
type MessageType string

const (
	MsgText         MessageType = "text"
	MsgImage        MessageType = "image"
	MsgVideo        MessageType = "video"
	MsgAudio        MessageType = "audio"
	MsgFile         MessageType = "file"
	MsgSystem       MessageType = "system"
	MsgAnnouncement MessageType = "announcement"
	MsgTip          MessageType = "tip"
	MsgGift         MessageType = "gift"
)

func (t MessageType) Valid() bool {
	switch t {
	case MsgText, MsgImage, MsgVideo, MsgAudio, MsgFile, MsgSystem, MsgAnnouncement, MsgTip, MsgGift:
		return true
	}
	return false
}

// Tracked reports whether messages of this type get per-recipient
// delivery records. System-scoped content has no read/unread semantics.
func (t MessageType) Tracked() bool {
	return t != MsgSystem && t != MsgAnnouncement
}

type Message struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id,omitempty"`
	// RecipientID targets a direct message; exactly one of RoomID and
	// RecipientID is set, never both, never neither.
	RecipientID string      `json:"recipient_id,omitempty"`
	Author      string      `json:"author"`
	Type        MessageType `json:"type"`
	Content     string      `json:"content,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	// ReplyTo and ForwardOf are resolved by id lookup, never embedded.
	ReplyTo   string `json:"reply_to,omitempty"`
	ForwardOf string `json:"forward_of,omitempty"`
	TS        int64  `json:"ts"`
	Edited    bool   `json:"edited,omitempty"`
	// EditHistory is append-only: prior content plus the edit time.
	EditHistory []EditEntry `json:"edit_history,omitempty"`
	// Deleted redacts content but keeps the row so replies stay resolvable.
	Deleted   bool   `json:"deleted,omitempty"`
	DeletedTS int64  `json:"deleted_ts,omitempty"`
	DeletedBy string `json:"deleted_by,omitempty"`
	Pinned    bool   `json:"pinned,omitempty"`
	PinnedBy  string `json:"pinned_by,omitempty"`
	PinnedTS  int64  `json:"pinned_ts,omitempty"`
}

// Direct reports whether the message targets a single recipient rather
// than a room.
func (m *Message) Direct() bool { return m.RecipientID != "" }

// Attachment is a reference only; binary content lives with the
// storage collaborator.
type Attachment struct {
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	MIME      string `json:"mime,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

type EditEntry struct {
	Content  string `json:"content"`
	EditedTS int64  `json:"edited_ts"`
}
