package relay

import "roomrelay/internal/rooms"

// Broadcaster delivers a notification to one connection. Implementations
// must not block: the coordinator calls Send while holding a room lock so
// that per-room delivery order matches history order.
type Broadcaster interface {
	Send(connID string, n Notification)
}

func (s *relayService) toConn(connID string, n Notification) {
	metricNotifications.WithLabelValues(n.Event).Inc()
	s.out.Send(connID, n)
}

func (s *relayService) toAll(members []rooms.Member, n Notification) {
	for _, m := range members {
		s.toConn(m.ConnectionID, n)
	}
}

func (s *relayService) toOthers(members []rooms.Member, except string, n Notification) {
	for _, m := range members {
		if m.ConnectionID != except {
			s.toConn(m.ConnectionID, n)
		}
	}
}
