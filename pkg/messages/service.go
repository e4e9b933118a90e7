// Package messages implements the message pipeline: validation,
// authorization, canonical row plus timeline plus delivery fan-out in
// one atomic batch, and the edit/delete/pin lifecycle on top.
package messages

import (
	"time"

	"parlor/pkg/cache"
	"parlor/pkg/errs"
	"parlor/pkg/events"
	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/rooms"
	"parlor/pkg/store"
	"parlor/pkg/store/keys"
	"parlor/pkg/telemetry"
	"parlor/pkg/utils"
	"parlor/pkg/validation"
)

// SendInput carries everything needed to accept one message.
type SendInput struct {
	RoomID      string
	RecipientID string
	Author      string
	Type        models.MessageType
	Content     string
	Attachments []models.Attachment
	ReplyTo     string
	ForwardOf   string
}

func now() int64 { return time.Now().UTC().UnixNano() }

// Send validates, authorizes and persists a message. The canonical row,
// its timeline entry and the per-recipient delivery rows land in a
// single batch: either the message exists with its full sent fan-out or
// not at all.
func Send(in SendInput) (*models.Message, error) {
	if err := validation.Target(in.RoomID, in.RecipientID); err != nil {
		return nil, err
	}
	if err := validation.RequireID("author", in.Author); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = models.MsgText
	}
	if err := validation.MessageType(in.Type); err != nil {
		return nil, err
	}
	if err := validation.Content(in.Content, in.Attachments); err != nil {
		return nil, err
	}
	if in.RoomID != "" {
		return sendToRoom(in)
	}
	return sendDirect(in)
}

func sendToRoom(in SendInput) (*models.Message, error) {
	minRole := models.RoleMember
	if in.Type == models.MsgAnnouncement || in.Type == models.MsgSystem {
		minRole = models.RoleModerator
	}
	if _, err := rooms.RequireRole(in.RoomID, in.Author, minRole); err != nil {
		return nil, err
	}

	var (
		msg      *models.Message
		audience []string
	)
	err := store.WithRoomLock(in.RoomID, func() error {
		r, err := store.GetRoom(in.RoomID)
		if err != nil {
			if store.IsNotFound(err) {
				return errs.E(errs.NotFound, "room %s not found", in.RoomID)
			}
			return errs.Wrap(errs.Internal, err, "load room")
		}
		if !r.Active {
			return errs.E(errs.NotFound, "room %s is deactivated", in.RoomID)
		}
		m := newMessage(in)
		if err := checkReference(m, in.ReplyTo); err != nil {
			return err
		}
		if err := checkReference(m, in.ForwardOf); err != nil {
			return err
		}

		members, err := store.ListMemberships(in.RoomID)
		if err != nil {
			return errs.Wrap(errs.Internal, err, "list memberships")
		}

		b := store.NewBatch()
		if b == nil {
			return errs.E(errs.Internal, "store not open")
		}
		defer b.Close()
		if err := store.BatchSetMessage(b, m); err != nil {
			return err
		}
		if err := store.BatchAppendRoomTimeline(b, in.RoomID, m); err != nil {
			return err
		}
		for _, mem := range members {
			if !mem.Active {
				continue
			}
			audience = append(audience, mem.UserID)
			if mem.UserID == m.Author || !m.Type.Tracked() {
				continue
			}
			rec := &models.DeliveryRecord{
				MessageID: m.ID,
				UserID:    mem.UserID,
				Status:    models.DeliverySent,
				SentTS:    m.TS,
			}
			if err := store.BatchSetDelivery(b, rec); err != nil {
				return err
			}
		}
		if m.TS > r.LastActivityTS {
			r.LastActivityTS = m.TS
		}
		if err := store.BatchSetRoom(b, r); err != nil {
			return err
		}
		if err := store.ApplyBatch(b); err != nil {
			return errs.Wrap(errs.Internal, err, "persist message")
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.RecordMessage(string(msg.Type), "room")
	for _, uid := range audience {
		if uid != msg.Author {
			cache.InvalidateUnread(in.RoomID, uid)
		}
	}
	logger.Info("message_sent", "msg", msg.ID, "room", in.RoomID, "type", string(msg.Type))
	_ = events.Publish(events.Event{Type: events.MessageCreated, RoomID: in.RoomID, Audience: audience, TS: msg.TS, Payload: msg})
	return msg, nil
}

func sendDirect(in SendInput) (*models.Message, error) {
	if err := validation.RequireID("recipient", in.RecipientID); err != nil {
		return nil, err
	}
	if in.RecipientID == in.Author {
		return nil, errs.E(errs.InvalidArgument, "cannot send a direct message to yourself")
	}
	if in.Type == models.MsgAnnouncement || in.Type == models.MsgSystem {
		return nil, errs.E(errs.InvalidArgument, "%s messages cannot target a direct recipient", in.Type)
	}
	blocked, err := store.BlockedEither(in.Author, in.RecipientID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "check blocks")
	}
	if blocked {
		return nil, errs.E(errs.Forbidden, "messaging between these users is blocked")
	}
	dr, err := rooms.EnsureDirectRoom(in.Author, in.RecipientID)
	if err != nil {
		return nil, err
	}

	m := newMessage(in)
	// serialize per pair so reference checks and the append stay ordered
	lo, hi := keys.PairLoHi(in.Author, in.RecipientID)
	err = store.WithLock(keys.GenDirectMsgPrefix(lo, hi), func() error {
		if err := checkReference(m, in.ReplyTo); err != nil {
			return err
		}
		if err := checkReference(m, in.ForwardOf); err != nil {
			return err
		}
		b := store.NewBatch()
		if b == nil {
			return errs.E(errs.Internal, "store not open")
		}
		defer b.Close()
		if err := store.BatchSetMessage(b, m); err != nil {
			return err
		}
		if err := store.BatchAppendDirectTimeline(b, in.Author, in.RecipientID, m); err != nil {
			return err
		}
		rec := &models.DeliveryRecord{
			MessageID: m.ID,
			UserID:    in.RecipientID,
			Status:    models.DeliverySent,
			SentTS:    m.TS,
		}
		if err := store.BatchSetDelivery(b, rec); err != nil {
			return err
		}
		if err := store.ApplyBatch(b); err != nil {
			return errs.Wrap(errs.Internal, err, "persist message")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := store.TouchRoomActivity(dr.ID, m.TS); err != nil {
		logger.Warn("direct_activity_touch_failed", "room", dr.ID, "error", err)
	}
	telemetry.RecordMessage(string(m.Type), "direct")
	logger.Info("message_sent", "msg", m.ID, "recipient", in.RecipientID, "type", string(m.Type))
	_ = events.Publish(events.Event{Type: events.MessageCreated, Audience: []string{in.Author, in.RecipientID}, TS: m.TS, Payload: m})
	return m, nil
}

func newMessage(in SendInput) *models.Message {
	return &models.Message{
		ID:          utils.GenMessageID(),
		RoomID:      in.RoomID,
		RecipientID: in.RecipientID,
		Author:      in.Author,
		Type:        in.Type,
		Content:     in.Content,
		Attachments: in.Attachments,
		ReplyTo:     in.ReplyTo,
		ForwardOf:   in.ForwardOf,
		TS:          now(),
	}
}

// checkReference validates a reply-to or forward-of target: it must
// exist, live in the same conversation as m, and not be deleted.
func checkReference(m *models.Message, refID string) error {
	if refID == "" {
		return nil
	}
	ref, err := store.GetMessageRow(refID)
	if err != nil {
		if store.IsNotFound(err) {
			return errs.E(errs.NotFound, "referenced message %s not found", refID)
		}
		return errs.Wrap(errs.Internal, err, "load referenced message")
	}
	if ref.Deleted {
		return errs.E(errs.NotFound, "referenced message %s not found", refID)
	}
	if !sameScope(m, ref) {
		return errs.E(errs.NotFound, "referenced message %s not found", refID)
	}
	return nil
}

func sameScope(a, b *models.Message) bool {
	if a.RoomID != "" {
		return a.RoomID == b.RoomID
	}
	if b.RecipientID == "" {
		return false
	}
	alo, ahi := keys.PairLoHi(a.Author, a.RecipientID)
	blo, bhi := keys.PairLoHi(b.Author, b.RecipientID)
	return alo == blo && ahi == bhi
}

// Get returns the message if viewer may see it; NotFound otherwise,
// hiding existence from outsiders.
func Get(msgID, viewer string) (*models.Message, error) {
	m, err := store.GetMessageRow(msgID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errs.E(errs.NotFound, "message %s not found", msgID)
		}
		return nil, errs.Wrap(errs.Internal, err, "load message")
	}
	if !visibleTo(m, viewer) {
		return nil, errs.E(errs.NotFound, "message %s not found", msgID)
	}
	return m, nil
}

func visibleTo(m *models.Message, viewer string) bool {
	if m.Direct() {
		return viewer == m.Author || viewer == m.RecipientID
	}
	_, err := rooms.Membership(m.RoomID, viewer)
	return err == nil
}

// Audience returns the user ids allowed to observe the message: the
// room's active members, or the direct pair.
func Audience(m *models.Message) []string {
	if m.Direct() {
		return []string{m.Author, m.RecipientID}
	}
	ids, err := rooms.ActiveMemberIDs(m.RoomID)
	if err != nil {
		logger.Warn("message_audience_failed", "msg", m.ID, "error", err)
		return nil
	}
	return ids
}

// Edit replaces the content of the author's own message, appending the
// prior content to the edit history.
func Edit(msgID, actor, content string) (*models.Message, error) {
	if err := validation.Content(content, nil); err != nil {
		return nil, err
	}
	var out *models.Message
	err := store.WithLock(keys.GenMessageKey(msgID), func() error {
		m, err := store.GetMessageRow(msgID)
		if err != nil {
			if store.IsNotFound(err) {
				return errs.E(errs.NotFound, "message %s not found", msgID)
			}
			return errs.Wrap(errs.Internal, err, "load message")
		}
		if m.Author != actor {
			return errs.E(errs.Forbidden, "only the author can edit a message")
		}
		if m.Deleted {
			return errs.E(errs.Conflict, "message %s is deleted", msgID)
		}
		ts := now()
		m.EditHistory = append(m.EditHistory, models.EditEntry{Content: m.Content, EditedTS: ts})
		m.Content = content
		m.Edited = true
		if err := store.SaveMessageRow(m); err != nil {
			return errs.Wrap(errs.Internal, err, "save message")
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = events.Publish(events.Event{Type: events.MessageEdited, RoomID: out.RoomID, Audience: Audience(out), TS: now(), Payload: out})
	return out, nil
}

// Delete soft-deletes a message: content and attachments are redacted,
// the row stays so replies keep resolving. The author may always delete
// their own message; in rooms, moderators and above may delete anyone's.
func Delete(msgID, actor string) error {
	err := store.WithLock(keys.GenMessageKey(msgID), func() error {
		m, err := store.GetMessageRow(msgID)
		if err != nil {
			if store.IsNotFound(err) {
				return errs.E(errs.NotFound, "message %s not found", msgID)
			}
			return errs.Wrap(errs.Internal, err, "load message")
		}
		if m.Deleted {
			return errs.E(errs.Conflict, "message %s is already deleted", msgID)
		}
		if m.Author != actor {
			if m.Direct() {
				return errs.E(errs.Forbidden, "only the author can delete a direct message")
			}
			if _, err := rooms.RequireRole(m.RoomID, actor, models.RoleModerator); err != nil {
				return err
			}
		}
		redact(m, actor)
		if err := store.SaveMessageRow(m); err != nil {
			return errs.Wrap(errs.Internal, err, "save message")
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("message_deleted", "msg", msgID, "actor", actor)
	publishDeleted(msgID)
	return nil
}

// Redact removes a message's content without a role check; callers
// authorize. Used by moderation when a report review removes content.
// Already-deleted messages are left as they are.
func Redact(msgID, actor string) error {
	return store.WithLock(keys.GenMessageKey(msgID), func() error {
		m, err := store.GetMessageRow(msgID)
		if err != nil {
			if store.IsNotFound(err) {
				return errs.E(errs.NotFound, "message %s not found", msgID)
			}
			return errs.Wrap(errs.Internal, err, "load message")
		}
		if m.Deleted {
			return nil
		}
		redact(m, actor)
		if err := store.SaveMessageRow(m); err != nil {
			return errs.Wrap(errs.Internal, err, "save message")
		}
		publishDeleted(msgID)
		return nil
	})
}

func redact(m *models.Message, actor string) {
	m.Deleted = true
	m.DeletedTS = now()
	m.DeletedBy = actor
	m.Content = ""
	m.Attachments = nil
	m.Pinned = false
}

func publishDeleted(msgID string) {
	m, err := store.GetMessageRow(msgID)
	if err != nil {
		return
	}
	_ = events.Publish(events.Event{
		Type:     events.MessageDeleted,
		RoomID:   m.RoomID,
		Audience: Audience(m),
		TS:       m.DeletedTS,
		Payload:  map[string]string{"id": m.ID, "room_id": m.RoomID},
	})
}

// Pin marks a room message pinned. Moderator and above only; direct
// messages cannot be pinned.
func Pin(msgID, actor string) (*models.Message, error) {
	return setPinned(msgID, actor, true)
}

// Unpin clears the pin.
func Unpin(msgID, actor string) (*models.Message, error) {
	return setPinned(msgID, actor, false)
}

func setPinned(msgID, actor string, pinned bool) (*models.Message, error) {
	var out *models.Message
	err := store.WithLock(keys.GenMessageKey(msgID), func() error {
		m, err := store.GetMessageRow(msgID)
		if err != nil {
			if store.IsNotFound(err) {
				return errs.E(errs.NotFound, "message %s not found", msgID)
			}
			return errs.Wrap(errs.Internal, err, "load message")
		}
		if m.Direct() {
			return errs.E(errs.InvalidArgument, "direct messages cannot be pinned")
		}
		if m.Deleted {
			return errs.E(errs.Conflict, "message %s is deleted", msgID)
		}
		if _, err := rooms.RequireRole(m.RoomID, actor, models.RoleModerator); err != nil {
			return err
		}
		m.Pinned = pinned
		if pinned {
			m.PinnedBy = actor
			m.PinnedTS = now()
		} else {
			m.PinnedBy = ""
			m.PinnedTS = 0
		}
		if err := store.SaveMessageRow(m); err != nil {
			return errs.Wrap(errs.Internal, err, "save message")
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = events.Publish(events.Event{Type: events.MessagePinned, RoomID: out.RoomID, Audience: Audience(out), TS: now(), Payload: out})
	return out, nil
}

// ListRoom pages a room's timeline for an active member, ascending,
// ending strictly before beforeID when set.
func ListRoom(roomID, viewer string, limit int, beforeID string) ([]models.Message, error) {
	if _, err := rooms.Membership(roomID, viewer); err != nil {
		return nil, err
	}
	out, err := store.ListRoomMessages(roomID, limit, beforeID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list room messages")
	}
	return out, nil
}

// ListDirect pages the direct timeline between viewer and other.
func ListDirect(viewer, other string, limit int, beforeID string) ([]models.Message, error) {
	if err := validation.RequireID("user", other); err != nil {
		return nil, err
	}
	out, err := store.ListDirectMessages(viewer, other, limit, beforeID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list direct messages")
	}
	return out, nil
}
