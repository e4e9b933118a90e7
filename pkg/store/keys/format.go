package keys

const (
	// notation dictionary for key formats:
	// r   = room
	// u   = user segment
	// m   = message
	// d   = direct conversation (sorted user pair)
	// dl  = delivery record
	// rx  = reaction
	// p   = presence
	// i   = invitation
	// b   = block relation
	// rp  = report
	// rel = relationship marker
	// idx = index
	// All keys are lowercase; segments are separated by ":"
	// <...> = variable segment (e.g. <room_id>, <msg_id>)

	// primary storage key formats
	RoomKey      = "r:%s"        // r:<room_id>
	MemberKey    = "r:%s:u:%s"   // r:<room_id>:u:<user_id>
	MessageKey   = "m:%s"        // m:<msg_id>
	DeliveryKey  = "dl:%s:u:%s"  // dl:<msg_id>:u:<user_id>
	ReactionKey  = "rx:%s:u:%s:e:%s" // rx:<msg_id>:u:<user_id>:e:<emoji>
	PresenceKey  = "p:%s"        // p:<user_id>
	InviteKey    = "i:%s"        // i:<invite_id>
	BlockKey     = "b:%s:%s"     // b:<blocker>:<blocked>
	ReportKey    = "rp:%s"       // rp:<report_id>

	// timeline entry formats (value = compact entry, not the full row)
	RoomMsgKey   = "r:%s:m:%s:%s"    // r:<room_id>:m:<ts>:<seq>
	DirectMsgKey = "d:%s:%s:m:%s:%s" // d:<lo_user>:<hi_user>:m:<ts>:<seq>

	// direct-pair room marker (value = room_id); "room" cannot collide
	// with the "m" timeline segment under the same pair prefix
	DirectRoomKey = "d:%s:%s:room"

	// relationship markers
	RelUserRoom = "rel:u:%s:r:%s" // rel:u:<user_id>:r:<room_id>

	// invitation indexes
	RoomInviteIdx = "idx:r:%s:i:%s" // idx:r:<room_id>:i:<invite_id>
	UserInviteIdx = "idx:u:%s:i:%s" // idx:u:<user_id>:i:<invite_id>

	// scan prefixes
	MemberPrefix     = "r:%s:u:"
	RoomMsgPrefix    = "r:%s:m:"
	DirectMsgPrefix  = "d:%s:%s:m:"
	DeliveryPrefix   = "dl:%s:u:"
	ReactionPrefix   = "rx:%s:u:"
	PresencePrefix   = "p:"
	InvitePrefix     = "i:"
	BlockOutPrefix   = "b:%s:"
	ReportPrefix     = "rp:"
	RoomPrefix       = "r:"
	RelUserRoomPfx   = "rel:u:%s:r:"
	RoomInvitePrefix = "idx:r:%s:i:"
	UserInvitePrefix = "idx:u:%s:i:"

	// padding widths (fixed for lexicographic ordering)
	TSPadWidth  = 20 // e.g. %020d
	SeqPadWidth = 6  // e.g. %06d

	// system keys
	SystemVersionKey = "system:version"
)
