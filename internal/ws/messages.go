package ws

import (
	"encoding/json"
	"strings"
)

// Envelope wraps every WS frame in both directions.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "join-room"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// outEnvelope is the encoded form of a relay notification.
type outEnvelope struct {
	Event string `json:"event"`
	Body  any    `json:"body"`
}

// ──────────────────────────── Request DTOs ─────────────────────────────────

// CreateRoomRequest is the body for "create-room". The room code length is
// checked by the relay so the client gets a readable error.
type CreateRoomRequest struct {
	Username string `json:"username" validate:"required,min=2,max=32"`
	RoomCode string `json:"roomCode"`
}

func (r *CreateRoomRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.RoomCode = strings.TrimSpace(r.RoomCode)
}

// CreateRandomRoomRequest is the body for "create-random-room".
type CreateRandomRoomRequest struct {
	Username string `json:"username" validate:"required,min=2,max=32"`
}

func (r *CreateRandomRoomRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

// JoinRoomRequest is the body for "join-room".
type JoinRoomRequest struct {
	RoomCode string `json:"roomCode" validate:"required"`
	Username string `json:"username" validate:"required,min=2,max=32"`
}

func (r *JoinRoomRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.RoomCode = strings.TrimSpace(r.RoomCode)
}

// SendMessageRequest is the body for "send-message".
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

func (r *SendMessageRequest) normalize() {
	r.Content = strings.TrimSpace(r.Content)
}

// CloseRoomRequest is the (empty) body for "close-room".
type CloseRoomRequest struct{}
