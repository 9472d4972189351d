package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	AppURL      string

	RedisAddr      string
	IdempotencyTTL time.Duration

	KafkaBrokers     []string
	KafkaEventsTopic string

	MailProvider   string
	MailQueue      string
	EmailWorkers   int
	EmailQueueSize int
	EmailRetries   int
	SMTP           SMTPConfig
	Plunk          PlunkConfig

	DisplayTZ *time.Location
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	ReplyTo  string
}

type PlunkConfig struct {
	APIKey string
	From   string
	APIURL string
}

// Load reads the environment, after merging an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:             getenv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AppURL:           strings.TrimRight(getenv("APP_URL", "http://localhost:3000"), "/"),
		RedisAddr:        redisAddr(),
		KafkaBrokers:     splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaEventsTopic: getenv("KAFKA_EVENTS_TOPIC", "skillbridge.order-events"),
		MailProvider:     getenv("MAIL_PROVIDER", "log"),
		MailQueue:        getenv("MAIL_QUEUE", "inline"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getenv("SMTP_PORT", "465"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
			ReplyTo:  os.Getenv("MAIL_REPLY_TO"),
		},
		Plunk: PlunkConfig{
			APIKey: os.Getenv("PLUNK_API_KEY"),
			From:   os.Getenv("PLUNK_FROM"),
			APIURL: getenv("PLUNK_API_URL", "https://api.useplunk.com/v1/send"),
		},
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			getenv("DB_USER", "postgres"),
			getenv("DB_PASSWORD", "postgres"),
			getenv("DB_HOST", "localhost"),
			getenv("DB_PORT", "5432"),
			getenv("DB_NAME", "skillbridge"),
			getenv("DB_SSLMODE", "disable"),
		)
	}

	var err error
	if cfg.IdempotencyTTL, err = time.ParseDuration(getenv("IDEMPOTENCY_TTL", "24h")); err != nil {
		return Config{}, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
	}
	if cfg.EmailWorkers, err = getint("EMAIL_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.EmailQueueSize, err = getint("EMAIL_QUEUE_SIZE", 256); err != nil {
		return Config{}, err
	}
	if cfg.EmailRetries, err = getint("EMAIL_MAX_RETRIES", 3); err != nil {
		return Config{}, err
	}
	if cfg.DisplayTZ, err = time.LoadLocation(getenv("DISPLAY_TZ", "Asia/Kolkata")); err != nil {
		return Config{}, fmt.Errorf("invalid DISPLAY_TZ: %w", err)
	}

	switch cfg.MailQueue {
	case "inline", "asynq":
	default:
		return Config{}, fmt.Errorf("invalid MAIL_QUEUE %q: want inline or asynq", cfg.MailQueue)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	return cfg, nil
}

// redisAddr prefers REDIS_ADDR, then REDIS_HOST/REDIS_PORT. Empty means
// Redis-backed features are disabled.
func redisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		return host + ":" + getenv("REDIS_PORT", "6379")
	}
	return ""
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
