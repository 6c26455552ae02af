package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultQueueSize = 256
	sinkTimeout      = 2 * time.Second
)

// Sink receives lifecycle events.
type Sink interface {
	Name() string
	Publish(ctx context.Context, evt Event) error
}

// Recorder queues lifecycle events and hands them to its sinks off the
// request path. Record never blocks.
type Recorder struct {
	sinks []Sink
	queue chan Event
}

func NewRecorder(queueSize int, sinks ...Sink) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{sinks: sinks, queue: make(chan Event, queueSize)}
}

func (r *Recorder) Record(evt Event) {
	select {
	case r.queue <- evt:
	default:
		zap.L().Warn("lifecycle.queue_full",
			zap.String("type", evt.Type),
			zap.String("room", evt.RoomCode),
		)
	}
}

// Run drains the queue until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-r.queue:
			r.dispatch(ctx, evt)
		}
	}
}

func (r *Recorder) dispatch(ctx context.Context, evt Event) {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range r.sinks {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, sinkTimeout)
			defer cancel()
			if err := s.Publish(sctx, evt); err != nil {
				zap.L().Warn("lifecycle.sink_failed",
					zap.String("sink", s.Name()),
					zap.String("type", evt.Type),
					zap.Error(err),
				)
			}
			// A failing sink must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()
}

// LogSink writes every event to the global zap logger.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Publish(_ context.Context, evt Event) error {
	zap.L().Info("room_lifecycle",
		zap.String("type", evt.Type),
		zap.String("room", evt.RoomCode),
		zap.Bool("custom", evt.IsCustom),
		zap.String("reason", evt.Reason),
		zap.Int("members", evt.MemberCount),
		zap.Int("messages", evt.MessageCount),
	)
	return nil
}
