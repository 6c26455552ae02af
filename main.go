package main

import (
	"context"
	"database/sql"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"roomrelay/internal/config"
	"roomrelay/internal/database/db_client"
	"roomrelay/internal/database/roomarchive"
	"roomrelay/internal/http/http_server"
	"roomrelay/internal/lifecycle"
	"roomrelay/internal/redis/redis_client"
	"roomrelay/internal/redis/roomstream"
	"roomrelay/internal/rooms"
	"roomrelay/internal/services/relay"
	"roomrelay/internal/sessions"
	"roomrelay/internal/syncdirectory"
	"roomrelay/internal/ws"
)

//	@title			Room Relay API
//	@version		1.0
//	@description	Real-time group chat rooms over WebSocket, plus read-only room introspection.
//	@BasePath		/

var (
	Log = newLogger("console")
)

func newLogger(format string) *zap.Logger {
	var log *zap.Logger
	if format == "json" {
		log, _ = zap.NewProduction()
	} else {
		log, _ = zap.NewDevelopment()
	}
	return log
}

func main() {
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client
	var pgDb *sql.DB

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.LogFormat == "json" {
		Log = newLogger(cfg.LogFormat)
		zap.ReplaceGlobals(Log)
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Background context, cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sinks []lifecycle.Sink
	sinks = append(sinks, lifecycle.LogSink{})

	// 3. Redis
	if cfg.RedisEnabled {
		redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		sinks = append(sinks, roomstream.NewPublisher(redisClient))
		Log.Debug("Redis client created successfully")
	}

	// 4. Postgres archive, fed from the Redis stream
	if cfg.PostgresEnabled {
		if redisClient == nil {
			Log.Fatal("pg-archive requires REDIS_ENABLED")
		}
		pgDb, err = db_client.Open(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()
		if err := roomarchive.EnsureSchema(ctx, pgDb); err != nil {
			Log.Fatal("pg-schema", zap.Error(err))
		}
	}

	// 5. Lifecycle recorder
	recorder := lifecycle.NewRecorder(0, sinks...)
	go recorder.Run(ctx)

	// 6. Core services
	hub := ws.NewHub()
	relaySvc := relay.NewRelayService(rooms.NewStore(), sessions.NewRegistry(), hub, recorder, relay.Options{
		CloseGrace: cfg.RoomCloseGrace,
		EmptyGrace: cfg.RoomEmptyGrace,
	})

	// 7. Background: directory mirror + archive tailer
	if redisClient != nil {
		syncdirectory.Run(ctx, redisClient, relaySvc, cfg.DirectorySyncInterval)
		if pgDb != nil {
			roomarchive.Run(ctx, redisClient, pgDb)
		}
	}

	// 8. WS server
	wsSrv := ws.NewWsServer(hub, relaySvc, ws.Options{
		MaxMessageBytes: cfg.WsMaxMessageBytes,
		SendBuffer:      cfg.WsSendBuffer,
	})

	// 9. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, relaySvc, cfg.ShutdownTimeout)
	go func() {
		if err := httpServer.Start(); err != nil {
			Log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(context.Context) error {
				return httpServer.Dispose()
			},
			"relay": func(ctx context.Context) error {
				hub.CloseAll()
				err := relaySvc.Shutdown(ctx)
				cancel()
				return err
			},
		},
	)

	exitCode := <-wait
	Log.Info("shutdown complete", zap.Int("code", exitCode))
	_ = Log.Sync()
	os.Exit(exitCode)
}
