// Package gateway fans bus events out to websocket clients. The bus
// stays fire-and-forget; durable state lives in the store, so a client
// that misses frames resyncs over the HTTP API.
package gateway

import (
	"context"

	"parlor/pkg/events"
	"parlor/pkg/logger"
)

// Hub routes published events to the connected clients of each user in
// the event's audience. Events with an empty audience are internal and
// never leave the process.
type Hub struct {
	clients map[string]map[*Client]struct{}
	sendBuf int

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a hub whose clients buffer sendBuf outbound frames
// each before the hub starts dropping for them.
func NewHub(sendBuf int) *Hub {
	if sendBuf <= 0 {
		sendBuf = 256
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		sendBuf:    sendBuf,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run subscribes to the default bus and pumps until ctx is canceled.
// Closing done lets in-flight pump teardowns proceed once nobody is
// receiving on unregister anymore.
func (h *Hub) Run(ctx context.Context) {
	sub := events.Default().Subscribe()
	defer sub.Close()
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for c := range conns {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			return
		case c := <-h.register:
			conns := h.clients[c.userID]
			if conns == nil {
				conns = make(map[*Client]struct{})
				h.clients[c.userID] = conns
			}
			conns[c] = struct{}{}
		case c := <-h.unregister:
			if conns, ok := h.clients[c.userID]; ok {
				if _, ok := conns[c]; ok {
					delete(conns, c)
					close(c.send)
					if len(conns) == 0 {
						delete(h.clients, c.userID)
					}
				}
			}
		case it, ok := <-sub.C():
			if !ok {
				return
			}
			h.dispatch(it)
		}
	}
}

// dispatch copies the frame once and offers it to every connected
// client in the audience. Full client buffers drop the frame; the
// client catches up over HTTP.
func (h *Hub) dispatch(it *events.Item) {
	defer it.Done()
	if len(it.Audience) == 0 {
		return
	}
	var frame []byte
	for _, userID := range it.Audience {
		conns := h.clients[userID]
		if len(conns) == 0 {
			continue
		}
		if frame == nil {
			// the item's bytes return to the pool on Done
			frame = append([]byte(nil), it.Frame()...)
		}
		for c := range conns {
			select {
			case c.send <- frame:
			default:
				logger.Debug("gateway_frame_dropped", "user", userID, "type", it.Type)
			}
		}
	}
}
