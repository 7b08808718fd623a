package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Debug                    bool          `envconfig:"debug"`
	Port                     int           `envconfig:"port" default:"8080"`
	Env                      string        `envconfig:"env" default:"dev"`
	PostgresHost             string        `envconfig:"postgres_host" default:"localhost"`
	PostgresUser             string        `envconfig:"postgres_user"`
	PostgresDB               string        `envconfig:"postgres_db"`
	PostgresPort             int           `envconfig:"postgres_port" default:"5432"`
	PostgresPassword         string        `envconfig:"postgres_password"`
	JWTSecret                string        `envconfig:"jwt_secret" required:"true"`
	RedisAddr                string        `envconfig:"redis_addr"`
	RedisPassword            string        `envconfig:"redis_password"`
	KafkaBrokers             []string      `envconfig:"kafka_brokers"`
	KafkaTopic               string        `envconfig:"kafka_topic" default:"chat-events"`
	InternalToken            string        `envconfig:"internal_token"`
	AccessControlAllowOrigin string        `envconfig:"access_control_allow_origin" default:"*"`
	WSSendBuffer             int           `envconfig:"ws_send_buffer" default:"64"`
	WSRateLimitPerSec        int           `envconfig:"ws_rate_limit_per_sec" default:"10"`
	WriteRateLimitPerMinute  int           `envconfig:"write_rate_limit_per_minute" default:"120"`
	RequestTimeout           time.Duration `envconfig:"request_timeout" default:"5s"`
	UpstreamBreakerFailures  uint32        `envconfig:"upstream_breaker_failures" default:"5"`
	UpstreamBreakerTimeout   time.Duration `envconfig:"upstream_breaker_timeout" default:"30s"`
	DefaultPageSize          int           `envconfig:"default_page_size" default:"20"`
	MaxPageSize              int           `envconfig:"max_page_size" default:"100"`
}

func Load() (*Config, error) {
	env := os.Getenv("GIN_MODE")
	if env != "release" {
		if err := godotenv.Load("./.env"); err != nil {
			log.Printf("couldn't load env vars: %v", err)
		}
	}

	c := &Config{}
	err := envconfig.Process("chat", c)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return nil, errors.New("CHAT_JWT_SECRET must not be empty")
	}
	return c, nil
}
