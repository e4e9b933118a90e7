package models

// BlockRelation is directional: blocker blocks blocked. Checked on
// every message-send and invitation path.
type BlockRelation struct {
	Blocker string `json:"blocker"`
	Blocked string `json:"blocked"`
	TS      int64  `json:"ts,omitempty"`
}

type ReportStatus string

const (
	ReportPending ReportStatus = "pending"
	// ReportReviewed holds a report a moderator has looked at without
	// closing it; it may still be resolved or dismissed.
	ReportReviewed  ReportStatus = "reviewed"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportReviewed, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

// Terminal reports whether the report admits no further review.
func (s ReportStatus) Terminal() bool {
	return s == ReportResolved || s == ReportDismissed
}

type Report struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	Reporter  string `json:"reporter"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
	// Evidence holds reference URLs or ids, never binary content.
	Evidence   []string     `json:"evidence,omitempty"`
	Status     ReportStatus `json:"status"`
	AssignedTo string       `json:"assigned_to,omitempty"`
	Notes      string       `json:"notes,omitempty"`
	CreatedTS  int64        `json:"created_ts,omitempty"`
	ResolvedTS int64        `json:"resolved_ts,omitempty"`
}
