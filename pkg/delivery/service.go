// Package delivery advances per-recipient message delivery state.
// Status only moves forward; counts are always derived from the rows.
package delivery

import (
	"time"

	"parlor/pkg/errs"
	"parlor/pkg/events"
	"parlor/pkg/logger"
	"parlor/pkg/messages"
	"parlor/pkg/models"
	"parlor/pkg/rooms"
	"parlor/pkg/store"
	"parlor/pkg/telemetry"
)

func now() int64 { return time.Now().UTC().UnixNano() }

// MarkDelivered records that userID's device received the message.
// Duplicates and regressions are accepted no-ops; an event goes out
// only when the status actually advanced.
func MarkDelivered(msgID, userID string) (*models.DeliveryRecord, error) {
	return advance(msgID, userID, models.DeliveryDelivered)
}

// MarkRead records that userID read the message. Reading implies
// delivery: a sent→read jump fills the delivered timestamp too.
func MarkRead(msgID, userID string) (*models.DeliveryRecord, error) {
	return advance(msgID, userID, models.DeliveryRead)
}

func advance(msgID, userID string, to models.DeliveryStatus) (*models.DeliveryRecord, error) {
	rec, advanced, err := store.AdvanceDelivery(msgID, userID, to, now())
	if err != nil {
		if store.IsNotFound(err) {
			// no row means the user was never in the recipient set
			return nil, errs.E(errs.NotFound, "no delivery record for message %s and user %s", msgID, userID)
		}
		return nil, errs.Wrap(errs.Internal, err, "advance delivery")
	}
	if advanced {
		telemetry.RecordDeliveryAdvance(string(to))
		publishUpdate(rec)
	}
	return rec, nil
}

func publishUpdate(rec *models.DeliveryRecord) {
	audience := []string{rec.UserID}
	if m, err := store.GetMessageRow(rec.MessageID); err == nil {
		audience = append(audience, m.Author)
	}
	_ = events.Publish(events.Event{
		Type:     events.DeliveryUpdated,
		Audience: audience,
		TS:       now(),
		Payload:  rec,
	})
}

// Counts returns the per-status totals for a message the viewer can
// see. Read implies delivered implies sent, so counts are cumulative.
func Counts(msgID, viewer string) (models.DeliveryCounts, error) {
	if _, err := messages.Get(msgID, viewer); err != nil {
		return models.DeliveryCounts{}, err
	}
	c, err := store.CountDeliveries(msgID)
	if err != nil {
		return models.DeliveryCounts{}, errs.Wrap(errs.Internal, err, "count deliveries")
	}
	return c, nil
}

// ListForMessage returns the delivery rows of a message the viewer can
// see, for per-recipient receipts.
func ListForMessage(msgID, viewer string) ([]models.DeliveryRecord, error) {
	if _, err := messages.Get(msgID, viewer); err != nil {
		return nil, err
	}
	recs, err := store.ListDeliveries(msgID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "list deliveries")
	}
	return recs, nil
}

// MarkRoomRead advances every unread tracked message in the room to
// read for userID and moves the member's read position to the end of
// the timeline. Returns the number of records advanced.
func MarkRoomRead(roomID, userID string) (int, error) {
	m, err := rooms.Membership(roomID, userID)
	if err != nil {
		return 0, err
	}
	advancedTotal := 0
	lastID := ""
	ts := now()
	err = store.ScanRoomTimelineAfter(roomID, m.LastReadMsg, func(e store.TimelineEntry) bool {
		lastID = e.ID
		if e.Author == userID || !e.Type.Tracked() {
			return true
		}
		rec, advanced, aerr := store.AdvanceDelivery(e.ID, userID, models.DeliveryRead, ts)
		if aerr != nil {
			// rows can be missing for entries that predate the member
			if !store.IsNotFound(aerr) {
				logger.Warn("room_read_advance_failed", "msg", e.ID, "user", userID, "error", aerr)
			}
			return true
		}
		if advanced {
			advancedTotal++
			telemetry.RecordDeliveryAdvance(string(models.DeliveryRead))
			publishUpdate(rec)
		}
		return true
	})
	if err != nil {
		return advancedTotal, errs.Wrap(errs.Internal, err, "scan room timeline")
	}
	if lastID != "" {
		if err := rooms.SetLastRead(roomID, userID, lastID); err != nil {
			return advancedTotal, err
		}
	}
	return advancedTotal, nil
}
