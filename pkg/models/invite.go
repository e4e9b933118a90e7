package models

// InviteStatus: pending is the only state that transitions; accepted,
// declined and expired are immutable once reached.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
	InviteExpired  InviteStatus = "expired"
)

// Terminal reports whether the status admits no further transition.
func (s InviteStatus) Terminal() bool { return s != InvitePending }

type Invitation struct {
	ID      string `json:"id"`
	RoomID  string `json:"room_id"`
	Inviter string `json:"inviter"`
	// Invitee is a known user id; Email targets an external address
	// instead. Exactly one of the two is set.
	Invitee string `json:"invitee,omitempty"`
	Email   string `json:"email,omitempty"`
	// Message is optional free text shown with the invitation.
	Message   string       `json:"message,omitempty"`
	Status    InviteStatus `json:"status"`
	CreatedTS int64        `json:"created_ts,omitempty"`
	// ExpiresTS zero means the invitation never expires.
	ExpiresTS  int64 `json:"expires_ts,omitempty"`
	ResolvedTS int64 `json:"resolved_ts,omitempty"`
	// ResolvedBy records who accepted or declined; sweeps leave it empty.
	ResolvedBy string `json:"resolved_by,omitempty"`
}

// ExpiredAt reports whether the invitation's TTL has passed at now (ns).
func (i *Invitation) ExpiredAt(now int64) bool {
	return i.ExpiresTS > 0 && now > i.ExpiresTS
}
