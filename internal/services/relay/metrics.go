package relay

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"roomrelay/internal/rooms"
)

var (
	metricRoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_rooms_active",
		Help: "Rooms currently held in memory",
	})

	metricRoomsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_rooms_created_total",
		Help: "Rooms created, by kind",
	}, []string{"kind"})

	metricRoomsDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_rooms_destroyed_total",
		Help: "Rooms destroyed, by reason",
	}, []string{"reason"})

	metricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_sessions_active",
		Help: "Connections currently seated in a room",
	})

	metricMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_total",
		Help: "Chat messages appended to room history",
	})

	metricRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_rejections_total",
		Help: "Inbound events rejected or dropped, by reason",
	}, []string{"reason"})

	metricNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_notifications_total",
		Help: "Outbound notifications handed to the transport, by event",
	}, []string{"event"})
)

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, rooms.ErrInvalidRoomCode):
		return "invalid_room_code"
	case errors.Is(err, rooms.ErrRoomAlreadyExists):
		return "room_already_exists"
	case errors.Is(err, rooms.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, rooms.ErrRoomClosed):
		return "room_closed"
	case errors.Is(err, rooms.ErrRoomSpaceExhausted):
		return "room_space_exhausted"
	case errors.Is(err, rooms.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, rooms.ErrAlreadyInRoom):
		return "already_in_room"
	}
	return "other"
}
