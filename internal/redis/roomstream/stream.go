package roomstream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"roomrelay/internal/lifecycle"
)

const (
	Stream = "rooms_stream"
	maxLen = 10000
)

// Publisher appends lifecycle events to the rooms stream.
type Publisher struct {
	rdc *redis.Client
}

var _ lifecycle.Sink = (*Publisher)(nil)

func NewPublisher(rdc *redis.Client) *Publisher { return &Publisher{rdc: rdc} }

func (p *Publisher) Name() string { return "redis_stream" }

func (p *Publisher) Publish(ctx context.Context, evt lifecycle.Event) error {
	return p.rdc.XAdd(ctx, Args(evt)).Err()
}

// Args builds the XADD for evt. Fields are ordered so entries read the
// same in redis-cli every time.
func Args(evt lifecycle.Event) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: Stream,
		MaxLen: maxLen,
		Approx: true,
		Values: []string{
			"type", evt.Type,
			"room", evt.RoomCode,
			"custom", strconv.FormatBool(evt.IsCustom),
			"created_at", strconv.FormatInt(evt.CreatedAt.UnixMilli(), 10),
			"at", strconv.FormatInt(evt.At.UnixMilli(), 10),
			"reason", evt.Reason,
			"members", strconv.Itoa(evt.MemberCount),
			"messages", strconv.Itoa(evt.MessageCount),
		},
	}
}

// Decode turns a stream entry back into an Event.
func Decode(m redis.XMessage) (lifecycle.Event, error) {
	str := func(k string) string {
		s, _ := m.Values[k].(string)
		return s
	}
	evt := lifecycle.Event{
		Type:     str("type"),
		RoomCode: str("room"),
		Reason:   str("reason"),
	}
	if evt.Type == "" || evt.RoomCode == "" {
		return evt, fmt.Errorf("stream entry %s: missing type or room", m.ID)
	}

	var err error
	if evt.IsCustom, err = strconv.ParseBool(str("custom")); err != nil {
		return evt, fmt.Errorf("stream entry %s: custom: %w", m.ID, err)
	}
	created, err := strconv.ParseInt(str("created_at"), 10, 64)
	if err != nil {
		return evt, fmt.Errorf("stream entry %s: created_at: %w", m.ID, err)
	}
	at, err := strconv.ParseInt(str("at"), 10, 64)
	if err != nil {
		return evt, fmt.Errorf("stream entry %s: at: %w", m.ID, err)
	}
	evt.CreatedAt = time.UnixMilli(created).UTC()
	evt.At = time.UnixMilli(at).UTC()
	evt.MemberCount, _ = strconv.Atoi(str("members"))
	evt.MessageCount, _ = strconv.Atoi(str("messages"))
	return evt, nil
}
