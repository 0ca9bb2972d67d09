package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rental-push-go/internal/models"

	"github.com/redis/go-redis/v9"
)

// Store persists push subscriptions. The dispatcher only reads a user's rows
// and deletes rows by endpoint; saving is driven by the browser flow.
type Store interface {
	SavePushSubscription(ctx context.Context, sub models.PushSubscription) error
	GetPushSubscriptionsByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	DeletePushSubscriptions(ctx context.Context, endpoints []string) error
	Close() error
}

// maxSaveRetries bounds optimistic-lock retries when an endpoint is saved concurrently.
const maxSaveRetries = 10

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(opts *redis.Options) *RedisStore {
	rdb := redis.NewClient(opts)
	return &RedisStore{client: rdb}
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func userKey(userID string) string {
	return fmt.Sprintf("push:user:%s", userID)
}

func endpointKey(endpoint string) string {
	return fmt.Sprintf("push:endpoint:%s", endpoint)
}

func (s *RedisStore) SavePushSubscription(ctx context.Context, sub models.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}

	// An endpoint belongs to one user; move it if it was registered elsewhere.
	// WATCH makes the owner read and the move one transaction.
	key := endpointKey(sub.Endpoint)
	txf := func(tx *redis.Tx) error {
		owner, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if owner != "" && owner != sub.UserID {
				pipe.HDel(ctx, userKey(owner), sub.Endpoint)
			}
			pipe.HSet(ctx, userKey(sub.UserID), sub.Endpoint, data)
			pipe.Set(ctx, key, sub.UserID, 0) // No TTL
			return nil
		})
		return err
	}

	for i := 0; i < maxSaveRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("failed to save subscription: %w", err)
}

func (s *RedisStore) GetPushSubscriptionsByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	vals, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	subs := make([]models.PushSubscription, 0, len(vals))
	for endpoint, val := range vals {
		var sub models.PushSubscription
		if err := json.Unmarshal([]byte(val), &sub); err != nil {
			return nil, fmt.Errorf("corrupt subscription for %s: %w", endpoint, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// DeletePushSubscriptions removes every endpoint in one pipeline.
func (s *RedisStore) DeletePushSubscriptions(ctx context.Context, endpoints []string) error {
	if len(endpoints) == 0 {
		return nil
	}

	keys := make([]string, len(endpoints))
	for i, endpoint := range endpoints {
		keys[i] = endpointKey(endpoint)
	}
	owners, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for i, owner := range owners {
		if userID, ok := owner.(string); ok {
			pipe.HDel(ctx, userKey(userID), endpoints[i])
		}
	}
	pipe.Del(ctx, keys...)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
