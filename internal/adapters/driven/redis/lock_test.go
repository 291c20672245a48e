package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestLock_OwnerID_Unique(t *testing.T) {
	client, _ := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if lock1.OwnerID() == "" {
		t.Error("expected non-empty owner ID")
	}
	if lock1.OwnerID() == lock2.OwnerID() {
		t.Errorf("expected unique owner IDs, got same: %s", lock1.OwnerID())
	}
}

func TestLock_Acquire_AlreadyHeld(t *testing.T) {
	client, _ := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	acquired, err := lock1.Acquire(ctx, "collection:contact-1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected first lock to acquire")
	}

	acquired, err = lock2.Acquire(ctx, "collection:contact-1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Error("expected second owner to be refused")
	}

	holder, err := lock2.Holder(ctx, "collection:contact-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if holder != lock1.OwnerID() {
		t.Errorf("expected holder %s, got %s", lock1.OwnerID(), holder)
	}
}

func TestLock_Acquire_SameOwnerRefreshes(t *testing.T) {
	client, mr := setupTestRedis(t)

	lock := NewLock(client)
	ctx := context.Background()

	if ok, err := lock.Acquire(ctx, "collection:contact-1", time.Second); err != nil || !ok {
		t.Fatalf("expected acquire, got %v %v", ok, err)
	}
	if ok, err := lock.Acquire(ctx, "collection:contact-1", time.Minute); err != nil || !ok {
		t.Fatalf("expected re-acquire by same owner, got %v %v", ok, err)
	}

	if ttl := mr.TTL(lockPrefix + "collection:contact-1"); ttl != time.Minute {
		t.Errorf("expected TTL refreshed to 1m, got %v", ttl)
	}
}

func TestLock_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	if ok, _ := lock1.Acquire(ctx, "collection:contact-1", 2*time.Minute); !ok {
		t.Fatal("expected acquire")
	}

	mr.FastForward(3 * time.Minute)

	if err := lock1.Extend(ctx, "collection:contact-1", 2*time.Minute); err == nil {
		t.Error("expected extend of expired lease to fail")
	}
	if ok, _ := lock2.Acquire(ctx, "collection:contact-1", 2*time.Minute); !ok {
		t.Error("expected expired lease to be taken over")
	}
}

func TestLock_Release(t *testing.T) {
	client, _ := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	if err := lock1.Release(ctx, "collection:contact-1"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}

	if ok, _ := lock1.Acquire(ctx, "collection:contact-1", 10*time.Second); !ok {
		t.Fatal("expected acquire")
	}

	// another owner cannot release it
	if err := lock2.Release(ctx, "collection:contact-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := lock2.Acquire(ctx, "collection:contact-1", 10*time.Second); ok {
		t.Fatal("expected lock to still be held by lock1")
	}

	if err := lock1.Release(ctx, "collection:contact-1"); err != nil {
		t.Fatalf("unexpected error on release: %v", err)
	}
	if ok, _ := lock2.Acquire(ctx, "collection:contact-1", 10*time.Second); !ok {
		t.Error("expected to acquire lock after release")
	}
}

func TestLock_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)
	ctx := context.Background()

	if err := lock1.Extend(ctx, "collection:contact-1", 10*time.Second); err == nil {
		t.Error("expected error when extending unheld lock")
	}

	if ok, _ := lock1.Acquire(ctx, "collection:contact-1", time.Second); !ok {
		t.Fatal("expected acquire")
	}
	if err := lock1.Extend(ctx, "collection:contact-1", 2*time.Minute); err != nil {
		t.Fatalf("unexpected error on extend: %v", err)
	}
	if ttl := mr.TTL(lockPrefix + "collection:contact-1"); ttl != 2*time.Minute {
		t.Errorf("expected TTL 2m, got %v", ttl)
	}

	if err := lock2.Extend(ctx, "collection:contact-1", 2*time.Minute); err == nil {
		t.Error("expected error when different owner tries to extend")
	}
}

func TestLock_Holder_Free(t *testing.T) {
	client, _ := setupTestRedis(t)

	holder, err := NewLock(client).Holder(context.Background(), "collection:nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if holder != "" {
		t.Errorf("expected no holder, got %s", holder)
	}
}

func TestLock_Ping(t *testing.T) {
	client, _ := setupTestRedis(t)

	if err := NewLock(client).Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}
