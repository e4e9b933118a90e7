package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"parlor/pkg/logger"
	"parlor/pkg/telemetry"
)

// Event names pushed through the bus. Payload schemas live with the
// publishing package.
const (
	MessageCreated  = "message.created"
	MessageEdited   = "message.edited"
	MessageDeleted  = "message.deleted"
	MessagePinned   = "message.pinned"
	ReactionToggled = "reaction.toggled"
	DeliveryUpdated = "delivery.updated"
	PresenceChanged = "presence.changed"
	RoomCreated     = "room.created"
	MemberAdded     = "member.added"
	MemberRemoved   = "member.removed"
	InviteCreated   = "invite.created"
	InviteResolved  = "invite.resolved"
	UserBlocked     = "user.blocked"
)

// Event is the publish-side description. Payload is marshaled exactly
// once regardless of subscriber count.
type Event struct {
	Type     string
	RoomID   string
	Audience []string
	TS       int64
	Payload  any
}

type frame struct {
	Type   string          `json:"type"`
	RoomID string          `json:"room_id,omitempty"`
	TS     int64           `json:"ts"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Item is a delivered event backed by a pooled buffer shared between
// subscribers. Every receiver MUST call Done() exactly once.
type Item struct {
	Type     string
	RoomID   string
	Audience []string
	TS       int64

	data []byte
	buf  *bytebufferpool.ByteBuffer
	refs int32
	bus  *Bus
}

// Frame returns the wire-ready JSON bytes. The slice is only valid
// until Done() is called.
func (it *Item) Frame() []byte { return it.data }

// Done releases this receiver's reference. The pooled buffer goes back
// once the last receiver is finished.
func (it *Item) Done() {
	if atomic.AddInt32(&it.refs, -1) != 0 {
		return
	}
	if it.buf != nil {
		// avoid retaining huge buffers in the pool
		if it.bus == nil || int64(cap(it.buf.B)) <= it.bus.maxPooled {
			bytebufferpool.Put(it.buf)
		}
		it.buf = nil
	}
	it.data = nil
}

// Subscriber receives items on a bounded channel. A subscriber that
// falls behind loses events rather than blocking publishers.
type Subscriber struct {
	ch  chan *Item
	id  uint64
	bus *Bus
}

// C returns the receive channel. It is closed by Close.
func (s *Subscriber) C() <-chan *Item { return s.ch }

// Close unregisters the subscriber and releases any undelivered items.
// Callers must stop receiving before Close.
func (s *Subscriber) Close() {
	s.bus.mu.Lock()
	if _, ok := s.bus.subs[s.id]; !ok {
		s.bus.mu.Unlock()
		return
	}
	delete(s.bus.subs, s.id)
	close(s.ch)
	s.bus.mu.Unlock()
	for it := range s.ch {
		it.Done()
	}
}

// Bus is a bounded fan-out queue. Publishing never blocks: slow
// subscribers drop, and durability stays in the store.
type Bus struct {
	mu        sync.RWMutex
	subs      map[uint64]*Subscriber
	nextID    uint64
	subBuf    int
	maxPooled int64

	published uint64
	dropped   uint64
}

// NewBus creates a bus whose subscribers buffer subscriberBuffer items.
// Buffers larger than maxPooledBytes are not returned to the pool.
func NewBus(subscriberBuffer int, maxPooledBytes int64) *Bus {
	if subscriberBuffer <= 0 {
		subscriberBuffer = 128
	}
	if maxPooledBytes <= 0 {
		maxPooledBytes = 1 << 20
	}
	return &Bus{
		subs:      make(map[uint64]*Subscriber),
		subBuf:    subscriberBuffer,
		maxPooled: maxPooledBytes,
	}
}

// Subscribe registers a new receiver.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscriber{ch: make(chan *Item, b.subBuf), id: b.nextID, bus: b}
	b.subs[s.id] = s
	return s
}

// Publish marshals the event once and hands a shared item to every
// current subscriber. Subscribers with full buffers are skipped.
func (b *Bus) Publish(ev Event) error {
	var data json.RawMessage
	if ev.Payload != nil {
		d, err := json.Marshal(ev.Payload)
		if err != nil {
			return err
		}
		data = d
	}
	fb, err := json.Marshal(frame{Type: ev.Type, RoomID: ev.RoomID, TS: ev.TS, Data: data})
	if err != nil {
		return err
	}

	bb := bytebufferpool.Get()
	bb.B = append(bb.B[:0], fb...)

	it := &Item{
		Type:     ev.Type,
		RoomID:   ev.RoomID,
		Audience: ev.Audience,
		TS:       ev.TS,
		data:     bb.B[:len(fb)],
		buf:      bb,
		bus:      b,
	}

	atomic.AddUint64(&b.published, 1)
	telemetry.RecordEventPublished()

	b.mu.RLock()
	// one reference per subscriber plus one held by this publish call,
	// so the buffer survives until fan-out finishes even if receivers
	// are quick
	atomic.StoreInt32(&it.refs, int32(len(b.subs))+1)
	for _, s := range b.subs {
		select {
		case s.ch <- it:
		default:
			atomic.AddUint64(&b.dropped, 1)
			telemetry.RecordEventDropped()
			logger.Debug("event_dropped", "type", ev.Type, "room", ev.RoomID)
			it.Done()
		}
	}
	b.mu.RUnlock()
	it.Done()
	return nil
}

// Published returns the total number of accepted events.
func (b *Bus) Published() uint64 { return atomic.LoadUint64(&b.published) }

// Dropped returns the number of per-subscriber deliveries skipped.
func (b *Bus) Dropped() uint64 { return atomic.LoadUint64(&b.dropped) }

var (
	defaultMu  sync.RWMutex
	defaultBus = NewBus(128, 1<<20)
)

// Default returns the process-wide bus.
func Default() *Bus {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultBus
}

// SetDefault replaces the process-wide bus. Call at startup before
// anything subscribes.
func SetDefault(b *Bus) {
	if b == nil {
		return
	}
	defaultMu.Lock()
	defaultBus = b
	defaultMu.Unlock()
}

// Publish sends on the default bus.
func Publish(ev Event) error { return Default().Publish(ev) }
