package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	errUnknownEvent = errors.New("unknown_event")
	// errDropped marks frames that are discarded without telling the client.
	errDropped = errors.New("dropped")
)

// ConnContext is what a handler knows about the calling connection.
type ConnContext struct {
	ConnID string
}

// normalizer is implemented by requests that clean their fields up before
// validation.
type normalizer interface {
	normalize()
}

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, c *ConnContext, body json.RawMessage) error

// Router keeps a map[event]handler, à‑la gin.Engine.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
	validate *validator.Validate
}

func NewRouter() *Router {
	return &Router{
		handlers: make(map[string]rawHandler),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register binds an event to a strongly‑typed handler. Bodies that fail to
// decode or validate never reach h.
func Register[Req any](
	r *Router,
	event string,
	h func(ctx context.Context, c *ConnContext, req Req) error,
) {
	if event == "" {
		panic("ws router: empty event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[event] = func(ctx context.Context, c *ConnContext, body json.RawMessage) error {
		var req Req
		if len(body) > 0 && string(body) != "null" {
			if err := json.Unmarshal(body, &req); err != nil {
				return fmt.Errorf("%w: decode %s: %v", errDropped, event, err)
			}
		}
		if n, ok := any(&req).(normalizer); ok {
			n.normalize()
		}
		if err := r.validate.Struct(req); err != nil {
			return fmt.Errorf("%w: validate %s: %v", errDropped, event, err)
		}
		return h(ctx, c, req)
	}
}

// dispatch is called by the server's reader loop.
func (r *Router) dispatch(ctx context.Context, c *ConnContext, env Envelope) error {
	r.mu.RLock()
	h, ok := r.handlers[env.Event]
	r.mu.RUnlock()
	if !ok {
		return errUnknownEvent
	}
	return h(ctx, c, env.Body)
}
