package store

import (
	"encoding/json"
	"fmt"

	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/store/keys"

	"github.com/cockroachdb/pebble"
)

// BatchSetDelivery appends a delivery row write to a batch; used for
// the initial sent fan-out at message creation.
func BatchSetDelivery(b *pebble.Batch, rec *models.DeliveryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery record: %w", err)
	}
	return b.Set([]byte(keys.GenDeliveryKey(rec.MessageID, rec.UserID)), data, nil)
}

// GetDelivery loads the delivery row for one (message, recipient)
// pair; pebble.ErrNotFound when the recipient was never in the set.
func GetDelivery(msgID, userID string) (*models.DeliveryRecord, error) {
	v, err := GetKey(keys.GenDeliveryKey(msgID, userID))
	if err != nil {
		return nil, err
	}
	var rec models.DeliveryRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("invalid delivery row: %w", err)
	}
	return &rec, nil
}

// AdvanceDelivery moves the pair's status forward under the per-pair
// lock. The ordinal check makes regressions and duplicates no-ops, so
// out-of-order confirmations from multiple devices are safe. Returns
// the stored record and whether a transition happened.
func AdvanceDelivery(msgID, userID string, to models.DeliveryStatus, now int64) (*models.DeliveryRecord, bool, error) {
	var rec *models.DeliveryRecord
	advanced := false
	err := WithLock(keys.GenDeliveryKey(msgID, userID), func() error {
		cur, err := GetDelivery(msgID, userID)
		if err != nil {
			return err
		}
		if to.Rank() <= cur.Status.Rank() {
			rec = cur
			return nil
		}
		cur.Status = to
		switch to {
		case models.DeliveryDelivered:
			cur.DeliveredTS = now
		case models.DeliveryRead:
			cur.ReadTS = now
			// a direct read implies delivery happened
			if cur.DeliveredTS == 0 {
				cur.DeliveredTS = now
			}
		}
		data, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("failed to marshal delivery record: %w", err)
		}
		if err := SaveKey(keys.GenDeliveryKey(msgID, userID), data); err != nil {
			logger.Error("advance_delivery_failed", "msg", msgID, "user", userID, "error", err)
			return err
		}
		rec = cur
		advanced = true
		return nil
	})
	return rec, advanced, err
}

// ListDeliveries returns all delivery rows of a message.
func ListDeliveries(msgID string) ([]models.DeliveryRecord, error) {
	var out []models.DeliveryRecord
	err := scanPrefix(keys.GenDeliveryPrefix(msgID), func(_ string, v []byte) bool {
		var rec models.DeliveryRecord
		if err := json.Unmarshal(v, &rec); err == nil {
			out = append(out, rec)
		}
		return true
	})
	return out, err
}

// CountDeliveries derives per-status counts for a message by scanning
// its delivery rows; counts are never stored redundantly.
func CountDeliveries(msgID string) (models.DeliveryCounts, error) {
	var c models.DeliveryCounts
	err := scanPrefix(keys.GenDeliveryPrefix(msgID), func(_ string, v []byte) bool {
		var rec models.DeliveryRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return true
		}
		// ranks are cumulative: read implies delivered implies sent
		switch rec.Status {
		case models.DeliveryRead:
			c.Read++
			c.Delivered++
			c.Sent++
		case models.DeliveryDelivered:
			c.Delivered++
			c.Sent++
		case models.DeliverySent:
			c.Sent++
		}
		return true
	})
	return c, err
}
