package ws

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be < pongWait
)

// clientConn owns one websocket. Only writePump writes to rawConn; everybody
// else goes through the send queue.
type clientConn struct {
	id      string
	rawConn *websocket.Conn
	send    chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClientConn(id string, raw *websocket.Conn, buffer int) *clientConn {
	return &clientConn{
		id:      id,
		rawConn: raw,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump without blocking. It reports
// false when the connection is gone or too slow to keep up.
func (c *clientConn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close tears the socket down once; the read pump then exits and reports
// the disconnect.
func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.rawConn.Close()
	})
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !isExpectedCloseError(err) {
					zap.L().Debug("ws.write", zap.String("conn", c.id), zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
