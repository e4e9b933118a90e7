package keys

import (
	"fmt"
)

// rooms and memberships
func GenRoomKey(roomID string) string {
	return fmt.Sprintf(RoomKey, roomID)
}

func GenMemberKey(roomID, userID string) string {
	return fmt.Sprintf(MemberKey, roomID, userID)
}

func GenMemberPrefix(roomID string) string {
	return fmt.Sprintf(MemberPrefix, roomID)
}

func GenRelUserRoomKey(userID, roomID string) string {
	return fmt.Sprintf(RelUserRoom, userID, roomID)
}

func GenRelUserRoomPrefix(userID string) string {
	return fmt.Sprintf(RelUserRoomPfx, userID)
}

// messages and timelines
func GenMessageKey(msgID string) string {
	return fmt.Sprintf(MessageKey, msgID)
}

func GenRoomMsgKey(roomID string, ts int64, seq uint64) string {
	return fmt.Sprintf(RoomMsgKey, roomID, PadTS(ts), PadSeq(seq))
}

func GenRoomMsgPrefix(roomID string) string {
	return fmt.Sprintf(RoomMsgPrefix, roomID)
}

func GenDirectMsgKey(userA, userB string, ts int64, seq uint64) string {
	lo, hi := PairLoHi(userA, userB)
	return fmt.Sprintf(DirectMsgKey, lo, hi, PadTS(ts), PadSeq(seq))
}

func GenDirectMsgPrefix(userA, userB string) string {
	lo, hi := PairLoHi(userA, userB)
	return fmt.Sprintf(DirectMsgPrefix, lo, hi)
}

func GenDirectRoomKey(userA, userB string) string {
	lo, hi := PairLoHi(userA, userB)
	return fmt.Sprintf(DirectRoomKey, lo, hi)
}

// delivery
func GenDeliveryKey(msgID, userID string) string {
	return fmt.Sprintf(DeliveryKey, msgID, userID)
}

func GenDeliveryPrefix(msgID string) string {
	return fmt.Sprintf(DeliveryPrefix, msgID)
}

// reactions
func GenReactionKey(msgID, userID, emoji string) string {
	return fmt.Sprintf(ReactionKey, msgID, userID, emoji)
}

func GenReactionPrefix(msgID string) string {
	return fmt.Sprintf(ReactionPrefix, msgID)
}

// presence
func GenPresenceKey(userID string) string {
	return fmt.Sprintf(PresenceKey, userID)
}

// invitations
func GenInviteKey(inviteID string) string {
	return fmt.Sprintf(InviteKey, inviteID)
}

func GenRoomInviteIdx(roomID, inviteID string) string {
	return fmt.Sprintf(RoomInviteIdx, roomID, inviteID)
}

func GenRoomInvitePrefix(roomID string) string {
	return fmt.Sprintf(RoomInvitePrefix, roomID)
}

func GenUserInviteIdx(userID, inviteID string) string {
	return fmt.Sprintf(UserInviteIdx, userID, inviteID)
}

func GenUserInvitePrefix(userID string) string {
	return fmt.Sprintf(UserInvitePrefix, userID)
}

// moderation
func GenBlockKey(blocker, blocked string) string {
	return fmt.Sprintf(BlockKey, blocker, blocked)
}

func GenBlockOutPrefix(blocker string) string {
	return fmt.Sprintf(BlockOutPrefix, blocker)
}

func GenReportKey(reportID string) string {
	return fmt.Sprintf(ReportKey, reportID)
}

// helpers
func PadTS(ts int64) string {
	return fmt.Sprintf("%0*d", TSPadWidth, ts)
}

func PadSeq(seq uint64) string {
	return fmt.Sprintf("%0*d", SeqPadWidth, seq)
}

// PairLoHi orders a user pair so both sides of a direct conversation
// resolve to the same timeline.
func PairLoHi(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}
