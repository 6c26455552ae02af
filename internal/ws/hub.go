package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"roomrelay/internal/services/relay"
)

// Hub keeps the live connections by id and delivers relay notifications to
// them.
type Hub struct {
	conns sync.Map // connID -> *clientConn
}

var _ relay.Broadcaster = (*Hub)(nil)

func NewHub() *Hub { return &Hub{} }

func (h *Hub) add(c *clientConn) { h.conns.Store(c.id, c) }

func (h *Hub) remove(c *clientConn) { h.conns.CompareAndDelete(c.id, c) }

// Send encodes n and queues it for connID. A connection whose queue is full
// is dropped instead of stalling the room.
func (h *Hub) Send(connID string, n relay.Notification) {
	v, ok := h.conns.Load(connID)
	if !ok {
		return
	}
	c := v.(*clientConn)

	frame, err := json.Marshal(outEnvelope{Event: n.Event, Body: n.Body})
	if err != nil {
		zap.L().Error("ws.encode", zap.String("event", n.Event), zap.Error(err))
		return
	}
	if !c.enqueue(frame) {
		zap.L().Warn("ws.slow_consumer", zap.String("conn", connID), zap.String("event", n.Event))
		// closing only wakes the read pump; the disconnect runs there, never
		// under the caller's room lock
		go c.close()
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	n := 0
	h.conns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CloseAll drops every live connection.
func (h *Hub) CloseAll() {
	h.conns.Range(func(_, v any) bool {
		v.(*clientConn).close()
		return true
	})
}
