package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/menu-orders/internal/core/domain"
)

func getRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, server
}

func TestLock_AcquireAndRelease(t *testing.T) {
	client, server := getRedisClient(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, time.Second, 50*time.Millisecond)

	release, err := locker.Lock(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !server.Exists("lock:order:1") {
		t.Fatal("expected lock key to exist")
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if server.Exists("lock:order:1") {
		t.Error("expected lock key to be removed")
	}
}

func TestLock_Contention(t *testing.T) {
	client, _ := getRedisClient(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, time.Second, 30*time.Millisecond)

	release, err := locker.Lock(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer release(ctx)

	_, err = locker.Lock(ctx, 2)
	if !errors.Is(err, domain.ErrOrderLocked) {
		t.Errorf("expected ErrOrderLocked, got: %v", err)
	}

	other, err := locker.Lock(ctx, 3)
	if err != nil {
		t.Fatalf("other order should not be blocked: %v", err)
	}
	other(ctx)
}

func TestLock_CallerCancelIsNotContention(t *testing.T) {
	client, _ := getRedisClient(t)
	locker := NewRedisLocker(client, time.Second, time.Second)

	release, err := locker.Lock(context.Background(), 5)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Lock(ctx, 5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if errors.Is(err, domain.ErrOrderLocked) {
		t.Errorf("cancelled caller reported as lock contention")
	}
}

func TestLock_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	client, server := getRedisClient(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, 100*time.Millisecond, 50*time.Millisecond)

	stale, err := locker.Lock(ctx, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server.FastForward(200 * time.Millisecond)

	fresh, err := locker.Lock(ctx, 4)
	if err != nil {
		t.Fatalf("expected lock after expiry: %v", err)
	}

	if err := stale(ctx); !errors.Is(err, ErrLockLost) {
		t.Errorf("expected ErrLockLost, got: %v", err)
	}
	if !server.Exists("lock:order:4") {
		t.Error("stale release removed the new holder's lock")
	}
	if err := fresh(ctx); err != nil {
		t.Errorf("release failed: %v", err)
	}
}

func TestLock_Concurrent(t *testing.T) {
	client, _ := getRedisClient(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, time.Second, 2*time.Second)

	var inside atomic.Int32
	var overlaps atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, 5)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if inside.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release(ctx)
		}()
	}

	wg.Wait()

	if overlaps.Load() != 0 {
		t.Errorf("expected exclusive access, saw %d overlaps", overlaps.Load())
	}
}

func TestIdempotency_ReserveBindResolve(t *testing.T) {
	client, server := getRedisClient(t)
	ctx := context.Background()
	store := NewRedisIdempotencyStore(client, time.Hour)

	ok, err := store.Reserve(ctx, "req-1")
	if err != nil || !ok {
		t.Fatalf("expected first reserve to succeed, got %v %v", ok, err)
	}

	ok, err = store.Reserve(ctx, "req-1")
	if err != nil || ok {
		t.Fatalf("expected second reserve to fail, got %v %v", ok, err)
	}

	id, err := store.Resolve(ctx, "req-1")
	if err != nil || id != 0 {
		t.Fatalf("expected pending key, got %d %v", id, err)
	}

	if err := store.Bind(ctx, "req-1", 42); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	id, err = store.Resolve(ctx, "req-1")
	if err != nil || id != 42 {
		t.Errorf("expected order 42, got %d %v", id, err)
	}
	if ttl := server.TTL("idempotency:order:req-1"); ttl != time.Hour {
		t.Errorf("expected ttl 1h, got %v", ttl)
	}
}

func TestIdempotency_Release(t *testing.T) {
	client, _ := getRedisClient(t)
	ctx := context.Background()
	store := NewRedisIdempotencyStore(client, time.Hour)

	store.Reserve(ctx, "req-2")
	if err := store.Release(ctx, "req-2"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	ok, err := store.Reserve(ctx, "req-2")
	if err != nil || !ok {
		t.Errorf("expected key to be reusable after release, got %v %v", ok, err)
	}

	id, err := store.Resolve(ctx, "missing")
	if err != nil || id != 0 {
		t.Errorf("expected 0 for missing key, got %d %v", id, err)
	}
}

func TestIdempotency_Concurrent(t *testing.T) {
	client, _ := getRedisClient(t)
	ctx := context.Background()
	store := NewRedisIdempotencyStore(client, time.Hour)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Reserve(ctx, "concurrent-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
}
