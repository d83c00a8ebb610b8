package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"clinic-queue-api/internal/model"
)

type Config struct {
	DatabaseURL    string
	ListenAddr     string
	Environment    string
	ScopeMode      model.ScopeMode
	ServiceMinutes int
	NotifyWindow   int
	OpeningHour    int
	SessionTTL     time.Duration
	SessionStore   string // "memory" or "postgres"
	SMSGatewayURL  string
	SMSGatewayKey  string
	KafkaBroker    string
	KafkaTopic     string
	AdminUsername  string
	AdminPassword  string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := &Config{
		DatabaseURL:    env("DATABASE_URL", ""),
		ListenAddr:     ":" + env("PORT", "8080"),
		Environment:    env("ENV", "development"),
		ScopeMode:      model.ScopeMode(env("QUEUE_SCOPE", string(model.ScopeByDoctor))),
		ServiceMinutes: envInt("SERVICE_MINUTES", 15),
		NotifyWindow:   envInt("NOTIFY_WINDOW", 2),
		OpeningHour:    envInt("OPENING_HOUR", 9),
		SessionTTL:     envDuration("SESSION_TTL", time.Hour),
		SessionStore:   env("SESSION_STORE", "memory"),
		SMSGatewayURL:  env("SMS_GATEWAY_URL", ""),
		SMSGatewayKey:  env("SMS_GATEWAY_KEY", ""),
		KafkaBroker:    env("KAFKA_BROKER", ""),
		KafkaTopic:     env("KAFKA_TOPIC", "queue-notifications"),
		AdminUsername:  env("ADMIN_USERNAME", "admin"),
		AdminPassword:  env("ADMIN_PASSWORD", "admin123"),
	}

	// an empty DATABASE_URL selects the in-memory store at boot
	if cfg.ScopeMode != model.ScopeByDoctor && cfg.ScopeMode != model.ScopeByDate {
		return nil, fmt.Errorf("QUEUE_SCOPE must be %q or %q", model.ScopeByDoctor, model.ScopeByDate)
	}
	if cfg.ServiceMinutes <= 0 {
		return nil, fmt.Errorf("SERVICE_MINUTES must be positive")
	}
	return cfg, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("bad %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("bad %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
