package utils

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var idSeq uint64

// GenMessageID generates a unique message ID from the current UTC
// nanosecond timestamp and an atomic sequence number. Both components
// are zero-padded so IDs sort lexicographically in creation order,
// giving a deterministic total order under same-timestamp writes.
// The format is "msg-<ts20>-<seq6>".
func GenMessageID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("msg-%020d-%06d", n, s)
}

// GenRoomID generates a unique room ID with the same sortable layout.
// The format is "room-<ts20>-<seq6>".
func GenRoomID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("room-%020d-%06d", n, s)
}

// IDTimeSeq recovers the timestamp and sequence components from an ID
// produced by GenMessageID or GenRoomID.
func IDTimeSeq(id string) (ts int64, seq uint64, err error) {
	i := strings.IndexByte(id, '-')
	if i < 0 {
		return 0, 0, fmt.Errorf("malformed id: %s", id)
	}
	rest := id[i+1:]
	j := strings.IndexByte(rest, '-')
	if j < 0 {
		return 0, 0, fmt.Errorf("malformed id: %s", id)
	}
	ts, err = strconv.ParseInt(rest[:j], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed id timestamp: %s", id)
	}
	seq, err = strconv.ParseUint(rest[j+1:], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed id sequence: %s", id)
	}
	return ts, seq, nil
}
