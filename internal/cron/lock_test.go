package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/r2blaze/r2blaze-backend/pkg/redis"
)

func newMiniredisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisLockIsExclusive(t *testing.T) {
	client, _ := newMiniredisClient(t)
	ctx := context.Background()
	first, err := NewRedisLock(client, "r2b:lock:settlement-sweep", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(client, "r2b:lock:settlement-sweep", time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("second acquire should fail: ok=%v err=%v", ok, err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, err := second.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestRedisLockReleaseDoesNotStealAfterExpiry(t *testing.T) {
	client, mr := newMiniredisClient(t)
	ctx := context.Background()
	first, _ := NewRedisLock(client, "r2b:lock:sweep", time.Second)
	second, _ := NewRedisLock(client, "r2b:lock:sweep", time.Minute)

	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("first acquire failed")
	}
	mr.FastForward(2 * time.Second)
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("second acquire after expiry failed")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if !mr.Exists("r2b:lock:sweep") {
		t.Fatal("stale owner deleted the current lock")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatal("expected error for nil client")
	}
	client, _ := newMiniredisClient(t)
	if _, err := NewRedisLock(client, "", 0); err == nil {
		t.Fatal("expected error for empty key")
	}
}
