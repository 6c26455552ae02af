package roomarchive

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"roomrelay/internal/lifecycle"
	"roomrelay/internal/redis/roomstream"
)

const schema = `
CREATE TABLE IF NOT EXISTS room_archive (
    stream_id     TEXT        PRIMARY KEY,
    room_code     TEXT        NOT NULL,
    is_custom     BOOLEAN     NOT NULL,
    reason        TEXT        NOT NULL,
    message_count INTEGER     NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    destroyed_at  TIMESTAMPTZ NOT NULL
)`

const insertQ = `INSERT INTO room_archive
                     (stream_id, room_code, is_custom, reason, message_count, created_at, destroyed_at)
                 VALUES ($1, $2, $3, $4, $5, $6, $7)
                 ON CONFLICT DO NOTHING`

// EnsureSchema creates the archive table when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Run tails the rooms stream and archives every destroyed room. Only the
// room summary is kept, never message content.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// block up to 2 s for new entries
			res, err := rdc.XRead(ctx, &redis.XReadArgs{
				Streams: []string{roomstream.Stream, lastID},
				Count:   100,
				Block:   2000 * time.Millisecond,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("roomarchive.xread", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) == 0 || len(res[0].Messages) == 0 {
				continue
			}
			entries := res[0].Messages
			if err := persist(ctx, db, entries); err != nil {
				zap.L().Error("roomarchive.persist", zap.Error(err))
			}
			lastID = entries[len(entries)-1].ID
		}
	}()
}

func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	var rows []redis.XMessage
	var events []lifecycle.Event
	for _, m := range msgs {
		evt, err := roomstream.Decode(m)
		if err != nil {
			zap.L().Warn("roomarchive.decode", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		if evt.Type != lifecycle.RoomDestroyed {
			continue
		}
		rows = append(rows, m)
		events = append(events, evt)
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for i, evt := range events {
		if _, err := tx.ExecContext(ctx, insertQ,
			rows[i].ID, evt.RoomCode, evt.IsCustom, evt.Reason, evt.MessageCount, evt.CreatedAt, evt.At,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
