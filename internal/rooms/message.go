package rooms

import (
	"strconv"
	"sync"
	"time"
)

const MessageTypeUser = "user-message"

// Message is a single chat line kept in a room's history.
type Message struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

func (m Message) valid() bool {
	return m.Username != "" && m.Content != ""
}

// MessageIDs hands out millisecond ids that never repeat or go backwards,
// even when several messages land within the same millisecond.
type MessageIDs struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewMessageIDs() *MessageIDs { return &MessageIDs{now: time.Now} }

func (g *MessageIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return strconv.FormatInt(id, 10)
}
