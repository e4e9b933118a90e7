package models

// RoomKind scopes a conversation container.
type RoomKind string

const (
	RoomDirect    RoomKind = "direct"
	RoomGroup     RoomKind = "group"
	RoomCommunity RoomKind = "community"
	RoomFanClub   RoomKind = "fanclub"
)

func (k RoomKind) Valid() bool {
	switch k {
	case RoomDirect, RoomGroup, RoomCommunity, RoomFanClub:
		return true
	}
	return false
}

// Role is the permission tier of a membership. Ranks form a strict
// hierarchy: owner > admin > moderator > member.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleOwner     Role = "owner"
)

func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleModerator:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

func (r Role) Valid() bool { return r.Rank() > 0 }

// Outranks reports whether r sits strictly above other.
func (r Role) Outranks(other Role) bool { return r.Rank() > other.Rank() }

// AtLeast reports whether r sits at or above other.
func (r Role) AtLeast(other Role) bool { return r.Rank() >= other.Rank() }

type Room struct {
	ID   string   `json:"id"`
	Kind RoomKind `json:"kind"`
	Name string   `json:"name,omitempty"`
	// Description is optional display copy shown in room listings.
	Description string `json:"description,omitempty"`
	// Slug is generated from name and id for human-friendly URLs.
	Slug    string `json:"slug,omitempty"`
	Owner   string `json:"owner"`
	Private bool   `json:"private,omitempty"`
	// MemberCount caches the number of active memberships; kept in
	// lockstep with membership writes, audited at startup.
	MemberCount int         `json:"member_count"`
	Options     RoomOptions `json:"options,omitempty"`
	CreatedTS   int64       `json:"created_ts,omitempty"`
	// LastActivityTS is last-write-wins by timestamp under concurrent sends.
	LastActivityTS int64 `json:"last_activity_ts,omitempty"`
	Active         bool  `json:"active"`
	DeactivatedTS  int64 `json:"deactivated_ts,omitempty"`
}

// RoomOptions carries per-room configuration. Extra holds free-form
// client options the core does not interpret.
type RoomOptions struct {
	// JoinPolicy "invite" (default) requires an invitation or a
	// moderator adding the member; "open" lets anyone join.
	JoinPolicy string            `json:"join_policy,omitempty"`
	MaxMembers int               `json:"max_members,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// JoinPolicy values.
const (
	JoinInvite = "invite"
	JoinOpen   = "open"
)

// NotifyLevel values for membership notification settings.
const (
	NotifyAll      = "all"
	NotifyMentions = "mentions"
	NotifyNone     = "none"
)

type Membership struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	// InvitedBy is a non-owning back-reference to the inviter.
	InvitedBy string `json:"invited_by,omitempty"`
	JoinedTS  int64  `json:"joined_ts,omitempty"`
	LeftTS    int64  `json:"left_ts,omitempty"`
	Active    bool   `json:"active"`
	// LastReadTS advances when the member marks the room read;
	// LastReadMsg records the timeline position for unread counting.
	LastReadTS  int64  `json:"last_read_ts,omitempty"`
	LastReadMsg string `json:"last_read_msg,omitempty"`
	Muted       bool   `json:"muted,omitempty"`
	NotifyLevel string `json:"notify_level,omitempty"`
}
