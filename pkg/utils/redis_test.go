package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestConcurrencyCap_SingleSlotGuard(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	key := GuardKey("request-next", "w1")

	ok, err := AcquireConcurrencyCap(ctx, rdb, key, 1, 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = AcquireConcurrencyCap(ctx, rdb, key, 1, 10*time.Second)
	if err != nil || ok {
		t.Fatalf("second acquire should be rejected: ok=%v err=%v", ok, err)
	}

	if err := ReleaseConcurrencyCap(ctx, rdb, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(key) {
		t.Fatalf("expected key removed after release")
	}
	ok, _ = AcquireConcurrencyCap(ctx, rdb, key, 1, 10*time.Second)
	if !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestConcurrencyCap_TTLFreesLeakedSlot(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	key := GuardKey("request-next", "w2")

	if ok, _ := AcquireConcurrencyCap(ctx, rdb, key, 1, time.Second); !ok {
		t.Fatalf("first acquire failed")
	}
	mr.FastForward(2 * time.Second)
	if ok, _ := AcquireConcurrencyCap(ctx, rdb, key, 1, time.Second); !ok {
		t.Fatalf("expected slot freed by ttl")
	}
}

func TestConcurrencyCap_ArgumentValidation(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected nil client error")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "", 1, time.Second); err == nil {
		t.Fatalf("expected empty key error")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "k", 0, time.Second); err == nil {
		t.Fatalf("expected limit error")
	}
}
