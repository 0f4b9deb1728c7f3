package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	ResendAPIKey  string `env:"RESEND_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM,default=notifications@easypark.app"`
	EmailFromName string `env:"EMAIL_FROM_NAME,default=Easy Parking"`

	FCMServerKey string `env:"FCM_SERVER_KEY"`
	FCMEndpoint  string `env:"FCM_ENDPOINT,default=https://fcm.googleapis.com/fcm/send"`

	WorkerConcurrency     int `env:"WORKER_CONCURRENCY,default=16"`
	SendTimeoutSeconds    int `env:"SEND_TIMEOUT_SECONDS,default=10"`
	RetryBaseDelaySeconds int `env:"RETRY_BASE_DELAY_SECONDS,default=1"`
	RetryMaxDelaySeconds  int `env:"RETRY_MAX_DELAY_SECONDS,default=60"`
	PresenceTTLSeconds    int `env:"PRESENCE_TTL_SECONDS,default=60"`

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
