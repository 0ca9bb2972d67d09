package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"rental-push-go/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func endpointsOf(subs []models.PushSubscription) []string {
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.Endpoint)
	}
	sort.Strings(out)
	return out
}

func TestRedisStoreSaveAndGet(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	for _, sub := range []models.PushSubscription{
		{UserID: "host-1", Endpoint: "https://a.example/1", P256dh: "pa", Auth: "aa"},
		{UserID: "host-1", Endpoint: "https://b.example/2", P256dh: "pb", Auth: "ab"},
		{UserID: "host-2", Endpoint: "https://c.example/3", P256dh: "pc", Auth: "ac"},
	} {
		if err := s.SavePushSubscription(ctx, sub); err != nil {
			t.Fatalf("SavePushSubscription() error: %v", err)
		}
	}

	subs, err := s.GetPushSubscriptionsByUser(ctx, "host-1")
	if err != nil {
		t.Fatalf("GetPushSubscriptionsByUser() error: %v", err)
	}
	got := endpointsOf(subs)
	if len(got) != 2 || got[0] != "https://a.example/1" || got[1] != "https://b.example/2" {
		t.Errorf("endpoints = %v", got)
	}
	for _, sub := range subs {
		if sub.CreatedAt.IsZero() {
			t.Errorf("CreatedAt not set for %s", sub.Endpoint)
		}
	}

	none, err := s.GetPushSubscriptionsByUser(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetPushSubscriptionsByUser() error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("len(none) = %d, want 0", len(none))
	}
}

func TestRedisStoreEndpointMovesBetweenUsers(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	sub := models.PushSubscription{UserID: "host-1", Endpoint: "https://a.example/1", P256dh: "p", Auth: "a"}
	if err := s.SavePushSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}
	sub.UserID = "host-2"
	if err := s.SavePushSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}

	old, err := s.GetPushSubscriptionsByUser(ctx, "host-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(old) != 0 {
		t.Errorf("host-1 still has %v", endpointsOf(old))
	}
	moved, err := s.GetPushSubscriptionsByUser(ctx, "host-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(moved) != 1 {
		t.Errorf("host-2 has %v", endpointsOf(moved))
	}
}

func TestRedisStoreConcurrentSaveKeepsOneOwner(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	const endpoint = "https://a.example/shared"
	const users = 8

	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := models.PushSubscription{UserID: fmt.Sprintf("host-%d", i), Endpoint: endpoint, P256dh: "p", Auth: "a"}
			errs <- s.SavePushSubscription(ctx, sub)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("SavePushSubscription() error: %v", err)
		}
	}

	owner, err := mr.Get(endpointKey(endpoint))
	if err != nil {
		t.Fatal(err)
	}
	var holders []string
	for i := 0; i < users; i++ {
		userID := fmt.Sprintf("host-%d", i)
		subs, err := s.GetPushSubscriptionsByUser(ctx, userID)
		if err != nil {
			t.Fatal(err)
		}
		if len(subs) > 0 {
			holders = append(holders, userID)
		}
	}
	if len(holders) != 1 || holders[0] != owner {
		t.Errorf("endpoint held by %v, owner key says %q", holders, owner)
	}
}

func TestRedisStoreDeletePushSubscriptions(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	for _, sub := range []models.PushSubscription{
		{UserID: "host-1", Endpoint: "https://a.example/1"},
		{UserID: "host-1", Endpoint: "https://b.example/2"},
		{UserID: "host-2", Endpoint: "https://c.example/3"},
	} {
		if err := s.SavePushSubscription(ctx, sub); err != nil {
			t.Fatal(err)
		}
	}

	err := s.DeletePushSubscriptions(ctx, []string{"https://a.example/1", "https://c.example/3", "https://unknown.example/9"})
	if err != nil {
		t.Fatalf("DeletePushSubscriptions() error: %v", err)
	}

	left, err := s.GetPushSubscriptionsByUser(ctx, "host-1")
	if err != nil {
		t.Fatal(err)
	}
	if got := endpointsOf(left); len(got) != 1 || got[0] != "https://b.example/2" {
		t.Errorf("host-1 endpoints = %v", got)
	}
	if mr.Exists(endpointKey("https://a.example/1")) {
		t.Error("owner index for deleted endpoint still exists")
	}

	if err := s.DeletePushSubscriptions(ctx, nil); err != nil {
		t.Errorf("DeletePushSubscriptions(nil) error: %v", err)
	}
}
