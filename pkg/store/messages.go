package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/store/keys"
	"parlor/pkg/utils"

	"github.com/cockroachdb/pebble"
)

// TimelineEntry is the compact value stored at each timeline position.
// The canonical row lives under m:<id>; entries carry just enough to
// count unreads and filter without resolving every row.
type TimelineEntry struct {
	ID     string             `json:"id"`
	Author string             `json:"author"`
	Type   models.MessageType `json:"type"`
}

// SaveMessageRow persists the canonical message row. Edits and
// soft-deletes rewrite this row only; timeline entries are append-only.
func SaveMessageRow(m *models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := SaveKey(keys.GenMessageKey(m.ID), data); err != nil {
		logger.Error("save_message_failed", "msg", m.ID, "error", err)
		return err
	}
	return nil
}

// GetMessageRow loads the canonical message row.
func GetMessageRow(msgID string) (*models.Message, error) {
	v, err := GetKey(keys.GenMessageKey(msgID))
	if err != nil {
		return nil, err
	}
	var m models.Message
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, fmt.Errorf("invalid message row: %w", err)
	}
	return &m, nil
}

// BatchSetMessage appends the canonical row write to a batch.
func BatchSetMessage(b *pebble.Batch, m *models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.Set([]byte(keys.GenMessageKey(m.ID)), data, nil)
}

// BatchAppendRoomTimeline appends the room timeline entry for m. The
// position is recovered from the message id so key order matches id
// order exactly.
func BatchAppendRoomTimeline(b *pebble.Batch, roomID string, m *models.Message) error {
	ts, seq, err := utils.IDTimeSeq(m.ID)
	if err != nil {
		return err
	}
	entry, err := json.Marshal(TimelineEntry{ID: m.ID, Author: m.Author, Type: m.Type})
	if err != nil {
		return fmt.Errorf("failed to marshal timeline entry: %w", err)
	}
	return b.Set([]byte(keys.GenRoomMsgKey(roomID, ts, seq)), entry, nil)
}

// BatchAppendDirectTimeline appends the direct timeline entry for m
// under the sorted pair of the two participants.
func BatchAppendDirectTimeline(b *pebble.Batch, userA, userB string, m *models.Message) error {
	ts, seq, err := utils.IDTimeSeq(m.ID)
	if err != nil {
		return err
	}
	entry, err := json.Marshal(TimelineEntry{ID: m.ID, Author: m.Author, Type: m.Type})
	if err != nil {
		return fmt.Errorf("failed to marshal timeline entry: %w", err)
	}
	return b.Set([]byte(keys.GenDirectMsgKey(userA, userB, ts, seq)), entry, nil)
}

// keyUpperBound returns the smallest key greater than every key with
// the given prefix.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// listTimeline walks a timeline prefix newest-first from the position
// strictly before beforeID (or the end when beforeID is empty),
// resolving canonical rows, and returns up to limit messages in
// ascending order.
func listTimeline(prefix string, limit int, beforeID string) ([]models.Message, error) {
	if db == nil {
		return nil, errNotOpen
	}
	pfx := []byte(prefix)
	upper := keyUpperBound(pfx)
	if beforeID != "" {
		ts, seq, err := utils.IDTimeSeq(beforeID)
		if err != nil {
			return nil, err
		}
		upper = []byte(prefix + keys.PadTS(ts) + ":" + keys.PadSeq(seq))
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for ok := iter.SeekLT(upper); ok; ok = iter.Prev() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		var e TimelineEntry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			logger.Warn("timeline_entry_invalid", "key", string(iter.Key()), "error", err)
			continue
		}
		m, err := GetMessageRow(e.ID)
		if err != nil {
			if IsNotFound(err) {
				logger.Warn("timeline_entry_dangling", "msg", e.ID)
				continue
			}
			return nil, err
		}
		out = append(out, *m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	// reverse into ascending creation order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ListRoomMessages returns up to limit room messages ending strictly
// before beforeID (all latest when beforeID is empty), ascending.
func ListRoomMessages(roomID string, limit int, beforeID string) ([]models.Message, error) {
	return listTimeline(keys.GenRoomMsgPrefix(roomID), limit, beforeID)
}

// ListDirectMessages returns up to limit direct messages between the
// pair ending strictly before beforeID, ascending.
func ListDirectMessages(userA, userB string, limit int, beforeID string) ([]models.Message, error) {
	return listTimeline(keys.GenDirectMsgPrefix(userA, userB), limit, beforeID)
}

// ScanRoomTimelineAfter walks room timeline entries strictly after the
// position of afterID (from the start when empty), calling fn until it
// returns false.
func ScanRoomTimelineAfter(roomID string, afterID string, fn func(TimelineEntry) bool) error {
	prefix := keys.GenRoomMsgPrefix(roomID)
	start := prefix
	if afterID != "" {
		ts, seq, err := utils.IDTimeSeq(afterID)
		if err != nil {
			return err
		}
		// seq+1 seeks past the exact position of afterID
		start = prefix + keys.PadTS(ts) + ":" + keys.PadSeq(seq+1)
	}
	if db == nil {
		return errNotOpen
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	for iter.SeekGE([]byte(start)); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		var e TimelineEntry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		if !fn(e) {
			break
		}
	}
	return iter.Error()
}

// CountRoomUnread counts tracked timeline entries after the member's
// last-read position that were authored by someone else.
func CountRoomUnread(roomID, userID, lastReadMsg string) (int, error) {
	n := 0
	err := ScanRoomTimelineAfter(roomID, lastReadMsg, func(e TimelineEntry) bool {
		if e.Author != userID && e.Type.Tracked() {
			n++
		}
		return true
	})
	return n, err
}
