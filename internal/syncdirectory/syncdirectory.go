package syncdirectory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"roomrelay/internal/rooms"
)

const (
	Key         = "rooms:directory"
	pipeTimeout = 1500 * time.Millisecond
)

// Lister yields the rooms to publish.
type Lister interface {
	Rooms() []rooms.Summary
}

// Run mirrors the live room directory into a Redis hash every interval.
// The hash expires after three missed rounds so a dead instance drops out.
func Run(ctx context.Context, rdc *redis.Client, lister Lister, interval time.Duration) {
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if err := syncOnce(ctx, rdc, lister, interval); err != nil {
					zap.L().Warn("syncdirectory.pipeline", zap.Error(err))
				}
			}
		}
	}()
}

func syncOnce(ctx context.Context, rdc *redis.Client, lister Lister, interval time.Duration) error {
	summaries := lister.Rooms()

	fields := make([]interface{}, 0, 2*len(summaries))
	for _, s := range summaries {
		raw, err := json.Marshal(s)
		if err != nil {
			zap.L().Error("syncdirectory.marshal", zap.String("room", s.RoomCode), zap.Error(err))
			continue
		}
		fields = append(fields, s.RoomCode, string(raw))
	}

	ctx, cancel := context.WithTimeout(ctx, pipeTimeout)
	defer cancel()

	// replace the whole hash atomically
	pipe := rdc.TxPipeline()
	pipe.Del(ctx, Key)
	if len(fields) > 0 {
		pipe.HSet(ctx, Key, fields...)
		pipe.Expire(ctx, Key, 3*interval)
	}
	_, err := pipe.Exec(ctx)
	return err
}
