package keys

import (
	"fmt"
	"strconv"
	"strings"
)

type MemberKeyParts struct {
	RoomID string
	UserID string
}

type TimelineKeyParts struct {
	TS  int64
	Seq uint64
}

type DeliveryKeyParts struct {
	MsgID  string
	UserID string
}

type ReactionKeyParts struct {
	MsgID  string
	UserID string
	Emoji  string
}

type BlockKeyParts struct {
	Blocker string
	Blocked string
}

func parsePaddedInt(s string, width int) (int64, error) {
	if len(s) == 0 || len(s) > width {
		return 0, fmt.Errorf("length invalid: %s", s)
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return 0, nil
	}
	return strconv.ParseInt(trimmed, 10, 64)
}

func parsePaddedUint(s string, width int) (uint64, error) {
	if len(s) == 0 || len(s) > width {
		return 0, fmt.Errorf("length invalid: %s", s)
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return 0, nil
	}
	return strconv.ParseUint(trimmed, 10, 64)
}

func ParseMemberKey(key string) (*MemberKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "r" || parts[2] != "u" {
		return nil, fmt.Errorf("invalid member key: %s", key)
	}
	return &MemberKeyParts{RoomID: parts[1], UserID: parts[3]}, nil
}

// ParseRoomMsgKey extracts the timeline position from a room timeline key.
func ParseRoomMsgKey(key string) (*TimelineKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 5 || parts[0] != "r" || parts[2] != "m" {
		return nil, fmt.Errorf("invalid room timeline key: %s", key)
	}
	ts, err := parsePaddedInt(parts[3], TSPadWidth)
	if err != nil {
		return nil, err
	}
	seq, err := parsePaddedUint(parts[4], SeqPadWidth)
	if err != nil {
		return nil, err
	}
	return &TimelineKeyParts{TS: ts, Seq: seq}, nil
}

func ParseDeliveryKey(key string) (*DeliveryKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "dl" || parts[2] != "u" {
		return nil, fmt.Errorf("invalid delivery key: %s", key)
	}
	return &DeliveryKeyParts{MsgID: parts[1], UserID: parts[3]}, nil
}

func ParseReactionKey(key string) (*ReactionKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 6 || parts[0] != "rx" || parts[2] != "u" || parts[4] != "e" {
		return nil, fmt.Errorf("invalid reaction key: %s", key)
	}
	return &ReactionKeyParts{MsgID: parts[1], UserID: parts[3], Emoji: parts[5]}, nil
}

func ParseBlockKey(key string) (*BlockKeyParts, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "b" {
		return nil, fmt.Errorf("invalid block key: %s", key)
	}
	return &BlockKeyParts{Blocker: parts[1], Blocked: parts[2]}, nil
}

// IsRoomMetaKey reports whether key is a bare room row rather than a
// membership or timeline key under the same prefix.
func IsRoomMetaKey(key string) bool {
	parts := strings.Split(key, ":")
	return len(parts) == 2 && parts[0] == "r"
}

func ParseKeyTimestamp(s string) (int64, error) {
	return parsePaddedInt(s, TSPadWidth)
}

func ParseKeySequence(s string) (uint64, error) {
	return parsePaddedUint(s, SeqPadWidth)
}
