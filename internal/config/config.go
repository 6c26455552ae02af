package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
	LogFormat      string `env:"LOG_FORMAT"       envDefault:"console" validate:"oneof=console json"`

	RoomCloseGrace time.Duration `env:"ROOM_CLOSE_GRACE" envDefault:"5s"  validate:"gt=0"`
	RoomEmptyGrace time.Duration `env:"ROOM_EMPTY_GRACE" envDefault:"30s" validate:"gtfield=RoomCloseGrace"`

	WsMaxMessageBytes int64 `env:"WS_MAX_MESSAGE_BYTES" envDefault:"4096" validate:"min=256"`
	WsSendBuffer      int   `env:"WS_SEND_BUFFER"       envDefault:"64"   validate:"min=1"`

	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost    string `env:"REDIS_HOST"    envDefault:"localhost"`
	RedisPort    uint16 `env:"REDIS_PORT"    envDefault:"6379" validate:"min=1000,max=65535"`

	PostgresEnabled  bool   `env:"POSTGRES_ENABLED"  envDefault:"false"`
	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"relay_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"relay_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"relay_db"`

	DirectorySyncInterval time.Duration `env:"DIRECTORY_SYNC_INTERVAL" envDefault:"10s" validate:"gt=0"`
	ShutdownTimeout       time.Duration `env:"SHUTDOWN_TIMEOUT"        envDefault:"10s" validate:"gt=0"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
