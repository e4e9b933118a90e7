// Package reactions toggles emoji reactions on visible messages.
package reactions

import (
	"sort"
	"time"

	"parlor/pkg/errs"
	"parlor/pkg/events"
	"parlor/pkg/messages"
	"parlor/pkg/models"
	"parlor/pkg/store"
	"parlor/pkg/telemetry"
	"parlor/pkg/validation"
)

// Toggle adds the (message, user, emoji) reaction when absent and
// removes it when present. The actor must be able to see the message.
// Returns whether the reaction is present after the call.
func Toggle(msgID, actor, emoji string) (bool, error) {
	if err := validation.Emoji(emoji); err != nil {
		return false, err
	}
	m, err := messages.Get(msgID, actor)
	if err != nil {
		return false, err
	}
	if m.Deleted {
		return false, errs.E(errs.Conflict, "message %s is deleted", msgID)
	}
	added, err := store.ToggleReaction(msgID, actor, emoji, time.Now().UTC().UnixNano())
	if err != nil {
		return false, errs.Wrap(errs.Internal, err, "toggle reaction")
	}
	telemetry.RecordReactionToggle(added)
	_ = events.Publish(events.Event{
		Type:     events.ReactionToggled,
		RoomID:   m.RoomID,
		Audience: messages.Audience(m),
		TS:       time.Now().UTC().UnixNano(),
		Payload: map[string]any{
			"message_id": msgID,
			"user_id":    actor,
			"emoji":      emoji,
			"added":      added,
		},
	})
	return added, nil
}

// ListForMessage returns the message's reactions grouped per emoji,
// sorted by count descending then emoji, for a viewer who can see it.
func ListForMessage(msgID, viewer string) ([]models.ReactionGroup, error) {
	if _, err := messages.Get(msgID, viewer); err != nil {
		return nil, err
	}
	rows, err := store.ListReactions(msgID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list reactions")
	}
	byEmoji := make(map[string]*models.ReactionGroup)
	for _, r := range rows {
		g, ok := byEmoji[r.Emoji]
		if !ok {
			g = &models.ReactionGroup{Emoji: r.Emoji}
			byEmoji[r.Emoji] = g
		}
		g.Count++
		g.Users = append(g.Users, r.UserID)
	}
	out := make([]models.ReactionGroup, 0, len(byEmoji))
	for _, g := range byEmoji {
		sort.Strings(g.Users)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out, nil
}
