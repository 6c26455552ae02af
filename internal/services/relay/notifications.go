package relay

import (
	"time"

	"roomrelay/internal/rooms"
)

// Outbound event names.
const (
	EventRoomCreated     = "room-created"
	EventRoomJoined      = "room-joined"
	EventMessageHistory  = "message-history"
	EventNewMessage      = "new-message"
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventRoomClosed      = "room-closed"
	EventForceDisconnect = "force-disconnect"
	EventError           = "error"
)

// Notification is one outbound event addressed to a connection.
type Notification struct {
	Event string
	Body  any
}

type RoomCreatedBody struct {
	RoomCode  string `json:"roomCode"`
	Username  string `json:"username"`
	IsCreator bool   `json:"isCreator"`
	UserCount int    `json:"userCount"`
	IsCustom  bool   `json:"isCustom"`
}

type RoomJoinedBody struct {
	RoomCode  string `json:"roomCode"`
	Username  string `json:"username"`
	IsCreator bool   `json:"isCreator"`
	UserCount int    `json:"userCount"`
	IsCustom  bool   `json:"isCustom"`
}

type MessageHistoryBody struct {
	Messages []rooms.Message `json:"messages"`
}

// PresenceBody is sent for both user-joined and user-left.
type PresenceBody struct {
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
	UserCount int       `json:"userCount"`
}

type RoomClosedBody struct {
	ClosedBy  string    `json:"closedBy"`
	Timestamp time.Time `json:"timestamp"`
}

type ForceDisconnectBody struct{}

type ErrorBody struct {
	Reason string `json:"reason"`
}

// ErrorNotification wraps err for the connection that caused it.
func ErrorNotification(err error) Notification {
	return Notification{Event: EventError, Body: ErrorBody{Reason: err.Error()}}
}
