package store

import (
	"encoding/json"
	"fmt"

	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/store/keys"
)

// ToggleReaction inserts the (message, user, emoji) row when absent
// and deletes it when present, under the message's reaction lock. The
// single operation removes the check-then-insert race. Returns whether
// the reaction is present after the call.
func ToggleReaction(msgID, userID, emoji string, now int64) (bool, error) {
	added := false
	key := keys.GenReactionKey(msgID, userID, emoji)
	err := WithLock(keys.GenReactionPrefix(msgID), func() error {
		_, err := GetKey(key)
		if err == nil {
			return DeleteKey(key)
		}
		if !IsNotFound(err) {
			return err
		}
		data, merr := json.Marshal(models.Reaction{
			MessageID: msgID,
			UserID:    userID,
			Emoji:     emoji,
			TS:        now,
		})
		if merr != nil {
			return fmt.Errorf("failed to marshal reaction: %w", merr)
		}
		if err := SaveKey(key, data); err != nil {
			logger.Error("save_reaction_failed", "msg", msgID, "user", userID, "error", err)
			return err
		}
		added = true
		return nil
	})
	return added, err
}

// ListReactions returns all reaction rows of a message.
func ListReactions(msgID string) ([]models.Reaction, error) {
	var out []models.Reaction
	err := scanPrefix(keys.GenReactionPrefix(msgID), func(_ string, v []byte) bool {
		var r models.Reaction
		if err := json.Unmarshal(v, &r); err == nil {
			out = append(out, r)
		}
		return true
	})
	return out, err
}

// HasReaction reports whether the exact (message, user, emoji) row
// exists.
func HasReaction(msgID, userID, emoji string) (bool, error) {
	_, err := GetKey(keys.GenReactionKey(msgID, userID, emoji))
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}
