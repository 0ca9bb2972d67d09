package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"rental-push-go/internal/vapid"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Port         string
	StoreBackend string
	DatabaseURL  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	VAPID vapid.KeyPair

	PushTimeout    time.Duration
	PushDefaultURL string
	SharedSecret   string
	LogLevel       string
}

// Load reads the environment, after loading a .env file if one exists.
func Load() Config {
	_ = godotenv.Load()

	timeout := 10 * time.Second
	if v := os.Getenv("PUSH_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			timeout = parsed
		}
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			redisDB = db
		}
	}

	return Config{
		Port:          getEnv("PORT", "8080"),
		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		VAPID: vapid.KeyPair{
			PublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			PrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			Subject:    os.Getenv("VAPID_SUBJECT"),
		},
		PushTimeout:    timeout,
		PushDefaultURL: getEnv("PUSH_DEFAULT_URL", "/"),
		SharedSecret:   os.Getenv("PUSH_SHARED_SECRET"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports every configuration problem that would stop the service.
func (c Config) Validate() error {
	var errs []error
	if c.VAPID.PublicKey == "" {
		errs = append(errs, errors.New("VAPID_PUBLIC_KEY is required"))
	}
	if c.VAPID.PrivateKey == "" {
		errs = append(errs, errors.New("VAPID_PRIVATE_KEY is required"))
	}
	if !strings.HasPrefix(c.VAPID.Subject, "mailto:") && !strings.HasPrefix(c.VAPID.Subject, "https:") {
		errs = append(errs, fmt.Errorf("VAPID_SUBJECT must be a mailto: or https: URI, got %q", c.VAPID.Subject))
	}
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
