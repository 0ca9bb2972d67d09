package config

import (
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"PORT", "STORE_BACKEND", "DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY", "VAPID_SUBJECT",
	"PUSH_TIMEOUT", "PUSH_DEFAULT_URL", "PUSH_SHARED_SECRET", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	c := Load()
	if c.Port != "8080" {
		t.Errorf("Port = %q, want 8080", c.Port)
	}
	if c.StoreBackend != BackendPostgres {
		t.Errorf("StoreBackend = %q, want postgres", c.StoreBackend)
	}
	if c.RedisAddr != "localhost:6379" || c.RedisDB != 0 {
		t.Errorf("redis = %q/%d", c.RedisAddr, c.RedisDB)
	}
	if c.PushTimeout != 10*time.Second {
		t.Errorf("PushTimeout = %v, want 10s", c.PushTimeout)
	}
	if c.PushDefaultURL != "/" {
		t.Errorf("PushDefaultURL = %q, want /", c.PushDefaultURL)
	}
	if c.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", c.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("PUSH_TIMEOUT", "2500ms")
	t.Setenv("PUSH_DEFAULT_URL", "/calendar")
	t.Setenv("VAPID_SUBJECT", "mailto:ops@example.com")
	t.Setenv("PUSH_SHARED_SECRET", "s3cret")

	c := Load()
	if c.Port != "9090" {
		t.Errorf("Port = %q", c.Port)
	}
	if c.StoreBackend != BackendRedis {
		t.Errorf("StoreBackend = %q, want redis", c.StoreBackend)
	}
	if c.RedisDB != 3 {
		t.Errorf("RedisDB = %d, want 3", c.RedisDB)
	}
	if c.PushTimeout != 2500*time.Millisecond {
		t.Errorf("PushTimeout = %v", c.PushTimeout)
	}
	if c.PushDefaultURL != "/calendar" {
		t.Errorf("PushDefaultURL = %q", c.PushDefaultURL)
	}
	if c.VAPID.Subject != "mailto:ops@example.com" {
		t.Errorf("Subject = %q", c.VAPID.Subject)
	}
	if c.SharedSecret != "s3cret" {
		t.Errorf("SharedSecret = %q", c.SharedSecret)
	}
}

func TestLoadIgnoresBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("PUSH_TIMEOUT", "soon")
	t.Setenv("REDIS_DB", "x")

	c := Load()
	if c.PushTimeout != 10*time.Second {
		t.Errorf("PushTimeout = %v, want default", c.PushTimeout)
	}
	if c.RedisDB != 0 {
		t.Errorf("RedisDB = %d, want 0", c.RedisDB)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		StoreBackend: BackendPostgres,
		DatabaseURL:  "postgres://localhost/rentals",
	}
	valid.VAPID.PublicKey = "BPub"
	valid.VAPID.PrivateKey = "priv"
	valid.VAPID.Subject = "mailto:ops@example.com"

	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	redis := valid
	redis.StoreBackend = BackendRedis
	redis.DatabaseURL = ""
	redis.VAPID.Subject = "https://rentals.example.com"
	if err := redis.Validate(); err != nil {
		t.Fatalf("Validate() redis error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing public key", func(c *Config) { c.VAPID.PublicKey = "" }, "VAPID_PUBLIC_KEY"},
		{"missing private key", func(c *Config) { c.VAPID.PrivateKey = "" }, "VAPID_PRIVATE_KEY"},
		{"bare email subject", func(c *Config) { c.VAPID.Subject = "ops@example.com" }, "VAPID_SUBJECT"},
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"unknown backend", func(c *Config) { c.StoreBackend = "mongo" }, "STORE_BACKEND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
