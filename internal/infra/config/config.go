package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
		AdminID    int64  `envconfig:"TG_ADMIN_ID"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Broadcast struct {
		Backend   string `envconfig:"BROADCAST_BACKEND" default:"redis"`
		QueueKey  string `envconfig:"BROADCAST_QUEUE_KEY" default:"broadcast_jobs"`
		AMQPURL   string `envconfig:"BROADCAST_AMQP_URL"`
		SendDelay int    `envconfig:"BROADCAST_SEND_DELAY_MS" default:"50"`
	} `envconfig:""`

	LiveFeed struct {
		PollIntervalMS int `envconfig:"LIVEFEED_POLL_INTERVAL_MS" default:"1000"`
	} `envconfig:""`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
