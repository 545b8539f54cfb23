package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr      string `env:"HTTP_ADDR" envDefault:":8080"`
	JWTSecret string `env:"JWT_SECRET"`
	JWTTTLMin int    `env:"JWT_TTL_MIN" envDefault:"1440"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	SQLITEDsn   string `env:"SQLITE_DSN" envDefault:"file:caseline.db?_pragma=foreign_keys(ON)"`
	PostgresDsn string `env:"POSTGRES_DSN"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
	WSSendBuffer   int     `env:"WS_SEND_BUFFER" envDefault:"256"`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.DBDriver == "postgres" && cfg.PostgresDsn == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required when DB_DRIVER=postgres")
	}
	return cfg, nil
}

func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
