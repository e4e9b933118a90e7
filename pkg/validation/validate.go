package validation

import (
	"strings"
	"unicode/utf8"

	"parlor/pkg/errs"
	"parlor/pkg/models"
)

// Limits bounds user-supplied payloads. Zero values fall back to the
// package defaults below.
type Limits struct {
	MaxContentBytes int
	MaxAttachments  int
}

const (
	defaultMaxContentBytes = 64 * 1024
	defaultMaxAttachments  = 8
	// enough for multi-codepoint ZWJ emoji sequences
	maxEmojiBytes = 64
)

var limits = Limits{
	MaxContentBytes: defaultMaxContentBytes,
	MaxAttachments:  defaultMaxAttachments,
}

// SetLimits installs limits from config at startup.
func SetLimits(l Limits) {
	if l.MaxContentBytes <= 0 {
		l.MaxContentBytes = defaultMaxContentBytes
	}
	if l.MaxAttachments <= 0 {
		l.MaxAttachments = defaultMaxAttachments
	}
	limits = l
}

// Target enforces the room-XOR-recipient addressing rule.
func Target(roomID, recipientID string) error {
	if roomID != "" && recipientID != "" {
		return errs.E(errs.InvalidArgument, "message cannot target both a room and a direct recipient")
	}
	if roomID == "" && recipientID == "" {
		return errs.E(errs.InvalidArgument, "message must target a room or a direct recipient")
	}
	return nil
}

// Content checks the message body and attachment list.
func Content(content string, attachments []models.Attachment) error {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return errs.E(errs.InvalidArgument, "message content is empty")
	}
	if len(content) > limits.MaxContentBytes {
		return errs.E(errs.InvalidArgument, "message content exceeds %d bytes", limits.MaxContentBytes)
	}
	if len(attachments) > limits.MaxAttachments {
		return errs.E(errs.InvalidArgument, "too many attachments: %d > %d", len(attachments), limits.MaxAttachments)
	}
	for i, a := range attachments {
		if strings.TrimSpace(a.URL) == "" {
			return errs.E(errs.InvalidArgument, "attachment %d has no url", i)
		}
	}
	return nil
}

// MessageType checks the type enum.
func MessageType(t models.MessageType) error {
	if !t.Valid() {
		return errs.E(errs.InvalidArgument, "unknown message type %q", string(t))
	}
	return nil
}

// Emoji checks a reaction emoji token.
func Emoji(e string) error {
	if e == "" {
		return errs.E(errs.InvalidArgument, "emoji is empty")
	}
	if len(e) > maxEmojiBytes {
		return errs.E(errs.InvalidArgument, "emoji exceeds %d bytes", maxEmojiBytes)
	}
	if !utf8.ValidString(e) {
		return errs.E(errs.InvalidArgument, "emoji is not valid utf-8")
	}
	if strings.ContainsAny(e, " \t\n:") {
		return errs.E(errs.InvalidArgument, "emoji contains separator characters")
	}
	return nil
}

// RoomKind checks the room kind enum.
func RoomKind(k models.RoomKind) error {
	if !k.Valid() {
		return errs.E(errs.InvalidArgument, "unknown room kind %q", string(k))
	}
	return nil
}

// Role checks the membership role enum.
func Role(r models.Role) error {
	if !r.Valid() {
		return errs.E(errs.InvalidArgument, "unknown role %q", string(r))
	}
	return nil
}

// RequireID rejects empty identifier fields. Key segments use ":" as a
// separator, so identifiers must not contain it.
func RequireID(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return errs.E(errs.InvalidArgument, "%s is required", field)
	}
	if strings.Contains(v, ":") {
		return errs.E(errs.InvalidArgument, "%s contains invalid character ':'", field)
	}
	return nil
}
