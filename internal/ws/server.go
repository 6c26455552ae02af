package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"roomrelay/internal/services/relay"
)

const handlerTimeout = 2 * time.Second

type Options struct {
	MaxMessageBytes int64
	SendBuffer      int
}

type WsServer struct {
	hub      *Hub
	router   *Router
	relay    relay.IRelayService
	upgrader websocket.Upgrader
	opts     Options
}

func NewWsServer(h *Hub, relaySvc relay.IRelayService, opts Options) *WsServer {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 4096
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	srv := &WsServer{
		hub:    h,
		router: NewRouter(),
		relay:  relaySvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the chat page may be served from anywhere
			CheckOrigin: func(*http.Request) bool { return true },
		},
		opts: opts,
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(s.opts.MaxMessageBytes)

	conn := newClientConn(uuid.NewString(), rawConn, s.opts.SendBuffer)
	s.hub.add(conn)
	zap.L().Debug("ws.connected",
		zap.String("conn", conn.id),
		zap.String("remote", ginCtx.ClientIP()),
	)

	go conn.writePump()
	go s.reader(conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 create-room ----------------------------------------------------------
	Register(s.router, "create-room",
		func(ctx context.Context, cc *ConnContext, req CreateRoomRequest) error {
			return s.relay.CreateRoom(ctx, cc.ConnID, req.Username, req.RoomCode)
		},
	)
	// 🔹 create-random-room ---------------------------------------------------
	Register(s.router, "create-random-room",
		func(ctx context.Context, cc *ConnContext, req CreateRandomRoomRequest) error {
			return s.relay.CreateRandomRoom(ctx, cc.ConnID, req.Username)
		},
	)
	// 🔹 join-room ------------------------------------------------------------
	Register(s.router, "join-room",
		func(ctx context.Context, cc *ConnContext, req JoinRoomRequest) error {
			return s.relay.JoinRoom(ctx, cc.ConnID, req.RoomCode, req.Username)
		},
	)
	// 🔹 send-message ---------------------------------------------------------
	Register(s.router, "send-message",
		func(ctx context.Context, cc *ConnContext, req SendMessageRequest) error {
			return s.relay.SendMessage(ctx, cc.ConnID, req.Content)
		},
	)
	// 🔹 close-room -----------------------------------------------------------
	Register(s.router, "close-room",
		func(ctx context.Context, cc *ConnContext, _ CloseRoomRequest) error {
			return s.relay.CloseRoom(ctx, cc.ConnID)
		},
	)
}

func (s *WsServer) reader(conn *clientConn) {
	defer func() {
		s.hub.remove(conn)
		conn.close()
		s.relay.Disconnect(context.Background(), conn.id)
		zap.L().Debug("ws.disconnected", zap.String("conn", conn.id))
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cc := &ConnContext{ConnID: conn.id}

	for {
		_, raw, err := conn.rawConn.ReadMessage()
		if err != nil {
			if !isExpectedCloseError(err) && !errors.Is(err, websocket.ErrReadLimit) {
				zap.L().Debug("ws.read", zap.String("conn", conn.id), zap.Error(err))
			}
			return // client closed or errored
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			zap.L().Debug("ws.bad_frame", zap.String("conn", conn.id), zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		err = s.router.dispatch(ctx, cc, env)
		cancel()

		switch {
		case err == nil:
		case errors.Is(err, errDropped):
			zap.L().Debug("ws.dropped", zap.String("conn", conn.id), zap.Error(err))
		default:
			// ---- error -> {"event":"error", "body":{"reason":...}} -------
			s.hub.Send(conn.id, relay.ErrorNotification(err))
		}
	}
}
