package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rental-push-go/internal/config"
	"rental-push-go/internal/handlers"
	"rental-push-go/internal/push"
	"rental-push-go/internal/store"
	"rental-push-go/internal/vapid"
)

func main() {
	generateKeys := flag.Bool("generate-vapid-keys", false, "print a new VAPID key pair and exit")
	flag.Parse()

	cfg := config.Load()

	if *generateKeys {
		keys, err := vapid.GenerateKeyPair(cfg.VAPID.Subject)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", keys.PublicKey, keys.PrivateKey)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration:\n%v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := checkVAPIDKeys(cfg.VAPID); err != nil {
		logger.Fatal("Invalid VAPID keys", zap.Error(err))
	}

	ctx := context.Background()
	subStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open subscription store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer subStore.Close()

	client := push.NewClient(nil, cfg.VAPID.PublicKey)
	dispatcher := push.NewDispatcher(subStore, client, cfg.VAPID, logger,
		push.WithTimeout(cfg.PushTimeout),
		push.WithDefaultURL(cfg.PushDefaultURL),
	)

	h := handlers.NewHandler(subStore, dispatcher, cfg.VAPID.PublicKey, cfg.SharedSecret, logger)

	http.HandleFunc("/api/push/send", h.SendPushHandler)
	http.HandleFunc("/api/push/subscribe", h.SubscribePushHandler)
	http.HandleFunc("/api/push/vapid-public-key", h.GetVAPIDKeyHandler)
	http.HandleFunc("/health", h.HealthHandler)
	http.Handle("/metrics", promhttp.Handler())

	logger.Info("Listening", zap.String("port", cfg.Port), zap.String("store", cfg.StoreBackend))
	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

// checkVAPIDKeys rejects a key pair the dispatcher could not sign with. The
// dispatcher imports the key lazily, so this is the only startup check.
func checkVAPIDKeys(keys vapid.KeyPair) error {
	signer, err := vapid.ImportPrivateKey(keys.PrivateKey)
	if err != nil {
		return fmt.Errorf("VAPID_PRIVATE_KEY is unusable: %w", err)
	}
	if !signer.MatchesPublicKey(keys.PublicKey) {
		return errors.New("VAPID_PUBLIC_KEY does not match VAPID_PRIVATE_KEY")
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		redisStore := store.NewRedisStore(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisStore.Ping(ctx); err != nil {
			redisStore.Close()
			return nil, err
		}
		return redisStore, nil
	default:
		pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pgStore.RunMigrations(ctx); err != nil {
			pgStore.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Database migrations completed")
		return pgStore, nil
	}
}
