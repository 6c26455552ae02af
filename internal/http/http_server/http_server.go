package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files

	"roomrelay/internal/http/roomhandler"
	"roomrelay/internal/ws"
)

type httpServer struct {
	listenPort      uint16
	srv             http.Server
	ln              net.Listener
	directory       roomhandler.Directory
	wsSrv           *ws.WsServer
	shutdownTimeout time.Duration
	ctx             context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, wsSrv *ws.WsServer, directory roomhandler.Directory, shutdownTimeout time.Duration) *httpServer {
	return &httpServer{
		listenPort:      listenPort,
		wsSrv:           wsSrv,
		directory:       directory,
		shutdownTimeout: shutdownTimeout,
		ctx:             ctx,
	}
}

// Engine builds the router. Split from Start so tests can drive it through
// httptest.
func (h *httpServer) Engine() *gin.Engine {
	routerEngine := gin.New()

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.Use(ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/healthz", "/metrics"},
	}))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// websocket endpoint
	routerEngine.GET("/ws", h.wsSrv.Handle)

	// REST API
	rh := roomhandler.New(h.directory)
	rh.Register(routerEngine)

	routerEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return routerEngine
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler:           h.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	zap.L().Info("http.listening", zap.String("addr", h.ln.Addr().String()))

	err = h.srv.Serve(h.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Dispose gracefully shuts the HTTP server down, waiting up to the
// configured timeout for in-flight requests. Hijacked websocket
// connections are not tracked here; the hub closes those.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), h.shutdownTimeout)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}
	return nil
}
