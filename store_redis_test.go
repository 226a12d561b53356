package filedb

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis/v8"
)

func newTestRedisPropertyStore(t *testing.T) *RedisPropertyStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("unexpected error starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisPropertyStore(client, "filedb-test:")
}

func TestRedisPropertyStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisPropertyStore(t)

	if _, ok, err := store.GetProperty(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing property to be absent, got ok=%v err=%v", ok, err)
	}

	if err := store.SetProperty(ctx, "key", "value"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok, err := store.GetProperty(ctx, "key")
	if err != nil || !ok || v != "value" {
		t.Fatalf("expected to read back the set property, got %q ok=%v err=%v", v, ok, err)
	}

	if err := store.DeleteProperty(ctx, "key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, err := store.GetProperty(ctx, "key"); err != nil || ok {
		t.Fatalf("expected property to be gone after delete, got ok=%v err=%v", ok, err)
	}
}

func TestRedisScriptLockExclusion(t *testing.T) {
	store := newTestRedisPropertyStore(t)

	lockA := store.GetScriptLock("resource")
	acquired, err := lockA.WaitLock(1000)
	if err != nil || !acquired {
		t.Fatalf("expected first lock to be acquired, got ok=%v err=%v", acquired, err)
	}

	lockB := store.GetScriptLock("resource")
	acquired, err = lockB.WaitLock(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired {
		t.Fatalf("expected second lock to time out while the first is held")
	}

	if err := lockA.ReleaseLock(); err != nil {
		t.Fatalf("unexpected error releasing lock: %v", err)
	}

	done := make(chan struct{})
	go func() {
		acquired, err := lockB.WaitLock(1000)
		if err == nil && acquired {
			close(done)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected second lock to acquire after the first released")
	}
}
