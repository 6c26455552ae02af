package rooms

import (
	"sync"
	"time"
)

// Status is the lifecycle stage of a room.
type Status int

const (
	StatusOpen Status = iota
	StatusClosing
	StatusDestroyed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosing:
		return "closing"
	case StatusDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Member is one connection sitting in a room.
type Member struct {
	ConnectionID string    `json:"connectionId"`
	Username     string    `json:"username"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Room owns the membership and history of a single room code.
//
// A Room is not safe for concurrent use on its own: every read or
// read-modify-write sequence must run between Lock and Unlock. Holding the
// lock across a whole event handler is what keeps counts, history and
// broadcasts consistent for that room while other rooms proceed in parallel.
type Room struct {
	mu sync.Mutex

	code            string
	creatorConnID   string
	isCustom        bool
	createdAt       time.Time
	members         []Member
	history         []Message
	closed          bool
	evictionPending bool
	evictionGen     uint64
	destroyed       bool
}

func newRoom(code, creatorConnID string, isCustom bool, now time.Time) *Room {
	return &Room{
		code:          code,
		creatorConnID: creatorConnID,
		isCustom:      isCustom,
		createdAt:     now,
	}
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// Immutable after creation; safe without the lock.
func (r *Room) Code() string                { return r.code }
func (r *Room) CreatorConnectionID() string { return r.creatorConnID }
func (r *Room) IsCustom() bool              { return r.isCustom }
func (r *Room) CreatedAt() time.Time        { return r.createdAt }

func (r *Room) Closed() bool      { return r.closed }
func (r *Room) Destroyed() bool   { return r.destroyed }
func (r *Room) MemberCount() int  { return len(r.members) }
func (r *Room) MessageCount() int { return len(r.history) }

func (r *Room) Status() Status {
	switch {
	case r.destroyed:
		return StatusDestroyed
	case r.closed || r.evictionPending:
		return StatusClosing
	}
	return StatusOpen
}

// AddMember appends a member and returns the new member count. Adding a
// connection that is already present only reports the current count.
func (r *Room) AddMember(connID, username string, now time.Time) (int, error) {
	if r.closed || r.destroyed {
		return len(r.members), ErrRoomClosed
	}
	if r.indexOf(connID) >= 0 {
		return len(r.members), nil
	}
	r.members = append(r.members, Member{ConnectionID: connID, Username: username, JoinedAt: now})
	r.evictionPending = false
	return len(r.members), nil
}

// RemoveMember drops connID if present and returns the new member count.
func (r *Room) RemoveMember(connID string) int {
	if i := r.indexOf(connID); i >= 0 {
		r.members = append(r.members[:i], r.members[i+1:]...)
	}
	return len(r.members)
}

func (r *Room) AppendMessage(msg Message) error {
	if r.closed || r.destroyed {
		return ErrRoomClosed
	}
	r.history = append(r.history, msg)
	return nil
}

// Close marks the room closed. It reports whether this call did the closing.
func (r *Room) Close() bool {
	if r.closed {
		return false
	}
	r.closed = true
	r.evictionPending = false
	return true
}

// MarkEvictionPending flags an empty room as waiting for its grace timer
// and returns the generation that timer must present when it fires.
func (r *Room) MarkEvictionPending() uint64 {
	r.evictionPending = true
	r.evictionGen++
	return r.evictionGen
}

func (r *Room) EvictionPending() bool { return r.evictionPending }

// EvictionDue reports whether gen is still the live eviction window of an
// empty room. A rejoin followed by a new departure starts a new generation.
func (r *Room) EvictionDue(gen uint64) bool {
	return r.evictionPending && r.evictionGen == gen && len(r.members) == 0
}

func (r *Room) markDestroyed() {
	r.destroyed = true
	r.evictionPending = false
}

// HistorySnapshot copies the history, leaving out structurally broken
// entries so they never reach a joining client.
func (r *Room) HistorySnapshot() []Message {
	out := make([]Message, 0, len(r.history))
	for _, m := range r.history {
		if m.valid() {
			out = append(out, m)
		}
	}
	return out
}

// Members returns a copy of the member list in join order.
func (r *Room) Members() []Member {
	out := make([]Member, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Room) HasMember(connID string) bool { return r.indexOf(connID) >= 0 }

func (r *Room) indexOf(connID string) int {
	for i, m := range r.members {
		if m.ConnectionID == connID {
			return i
		}
	}
	return -1
}
