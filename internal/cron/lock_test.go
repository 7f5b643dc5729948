package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryLockStore struct {
	values map[string]string
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func newLock(t *testing.T, store *memoryLockStore, key string) *RedisLock {
	t.Helper()
	lock, err := NewRedisLock(store, key, time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	return lock
}

func mustAcquire(t *testing.T, lock *RedisLock, want bool) {
	t.Helper()
	ok, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok != want {
		t.Fatalf("expected acquire=%v got %v", want, ok)
	}
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	key := LockKey("test")
	first := newLock(t, store, key)
	second := newLock(t, store, key)

	mustAcquire(t, first, true)
	mustAcquire(t, second, false)

	if err := second.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := store.values[key]; !ok {
		t.Fatal("non-owner release must keep the key")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := store.values[key]; ok {
		t.Fatal("owner release should delete the key")
	}

	mustAcquire(t, second, true)
}

func TestRedisLockLeavesForeignToken(t *testing.T) {
	store := newMemoryLockStore()
	lock := newLock(t, store, "k")

	mustAcquire(t, lock, true)
	store.values["k"] = "someone-else"

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["k"] != "someone-else" {
		t.Fatalf("foreign token overwritten: %q", store.values["k"])
	}
}

func TestRedisLockTokenCarriesInstance(t *testing.T) {
	t.Setenv("STOREFRONT_INSTANCE_ID", "cron-a")
	store := newMemoryLockStore()
	lock := newLock(t, store, "k")

	mustAcquire(t, lock, true)
	if !strings.HasPrefix(store.values["k"], "cron-a:") {
		t.Fatalf("token %q does not carry the instance id", store.values["k"])
	}
}

func TestLockKeyDefaultsEnv(t *testing.T) {
	if got := LockKey(""); got != "storefront:maintenance:lock:local" {
		t.Fatalf("unexpected default key %q", got)
	}
	if got := LockKey("prod"); got != "storefront:maintenance:lock:prod" {
		t.Fatalf("unexpected key %q", got)
	}
}
