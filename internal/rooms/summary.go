package rooms

import "time"

// Summary is a read-only view of a room for introspection endpoints.
type Summary struct {
	RoomCode     string    `json:"roomCode"     example:"abc12"`
	UserCount    int       `json:"userCount"    example:"2"`
	MessageCount int       `json:"messageCount" example:"14"`
	IsCustom     bool      `json:"isCustom"`
	Status       string    `json:"status"       example:"open"`
	CreatedAt    time.Time `json:"createdAt"    example:"2025-07-27T16:05:05Z"`
} // @name RoomSummary

// Summary snapshots r. The caller must hold r's lock.
func (r *Room) Summary() Summary {
	return Summary{
		RoomCode:     r.code,
		UserCount:    len(r.members),
		MessageCount: len(r.history),
		IsCustom:     r.isCustom,
		Status:       r.Status().String(),
		CreatedAt:    r.createdAt,
	}
}

// Summaries snapshots every live room, ordered by code.
func (s *Store) Summaries() []Summary {
	list := s.List()
	out := make([]Summary, 0, len(list))
	for _, r := range list {
		r.Lock()
		if !r.destroyed {
			out = append(out, r.Summary())
		}
		r.Unlock()
	}
	return out
}

// SummaryOf snapshots the room stored under code.
func (s *Store) SummaryOf(code string) (Summary, bool) {
	r, ok := s.Get(code)
	if !ok {
		return Summary{}, false
	}
	r.Lock()
	defer r.Unlock()
	if r.destroyed {
		return Summary{}, false
	}
	return r.Summary(), true
}
