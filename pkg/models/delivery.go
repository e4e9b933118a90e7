package models

// DeliveryStatus advances sent → delivered → read and never regresses.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
)

// Rank orders statuses for the per-pair compare-and-swap; a transition
// applies only when the new rank is strictly greater.
func (s DeliveryStatus) Rank() int {
	switch s {
	case DeliveryRead:
		return 3
	case DeliveryDelivered:
		return 2
	case DeliverySent:
		return 1
	}
	return 0
}

type DeliveryRecord struct {
	MessageID   string         `json:"message_id"`
	UserID      string         `json:"user_id"`
	Status      DeliveryStatus `json:"status"`
	SentTS      int64          `json:"sent_ts,omitempty"`
	DeliveredTS int64          `json:"delivered_ts,omitempty"`
	ReadTS      int64          `json:"read_ts,omitempty"`
}

// DeliveryCounts is derived per message by counting records per status,
// never stored.
type DeliveryCounts struct {
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
}
