package lifecycle

import "time"

// Event types.
const (
	RoomCreated   = "room_created"
	RoomClosed    = "room_closed"
	RoomDestroyed = "room_destroyed"
)

// Destroy reasons.
const (
	ReasonClosedByCreator = "closed_by_creator"
	ReasonEmpty           = "empty"
)

// Event describes a room lifecycle transition.
type Event struct {
	Type         string
	RoomCode     string
	IsCustom     bool
	CreatedAt    time.Time
	At           time.Time
	Reason       string
	MemberCount  int
	MessageCount int
}
