package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`

	WhatsAppAPIBaseURL string `env:"WA_API_BASE_URL,default=https://graph.facebook.com/v19.0"`
	// Static single-tenant credentials; when unset, credentials are
	// resolved per owner from the wa_accounts table.
	WhatsAppPhoneNumberID string `env:"WA_PHONE_NUMBER_ID"`
	WhatsAppAccessToken   string `env:"WA_ACCESS_TOKEN"`

	SendMaxAttempts        int `env:"SEND_MAX_ATTEMPTS,default=4"`
	SendTimeoutSeconds     int `env:"SEND_TIMEOUT_SEC,default=15"`
	AccountRateLimitPerSec int `env:"ACCOUNT_RATE_LIMIT_PER_SEC,default=50"`
	PoolConcurrency        int `env:"POOL_CONCURRENCY,default=10"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
