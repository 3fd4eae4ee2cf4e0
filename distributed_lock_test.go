package jsonable

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupLock(t *testing.T) (*DistributedLock, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewDistributedLock(client, "jsonable"), client, mr
}

func TestDistributedLock_TryLock(t *testing.T) {
	lock, _, mr := setupLock(t)
	ctx := context.Background()

	release, err := lock.TryLock(ctx, "posts/1", time.Second)
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !mr.Exists("jsonable:lock:posts/1") {
		t.Fatal("expected lock key in redis")
	}

	if _, err := lock.TryLock(ctx, "posts/1", time.Second); !IsLockHeld(err) {
		t.Errorf("expected ErrLockHeld, got %v", err)
	}

	release()
	if mr.Exists("jsonable:lock:posts/1") {
		t.Error("expected lock key removed after release")
	}

	release2, err := lock.TryLock(ctx, "posts/1", time.Second)
	if err != nil {
		t.Fatalf("expected lock to be free again: %v", err)
	}
	release2()
}

func TestDistributedLock_ReleaseKeepsForeignLock(t *testing.T) {
	lock, _, mr := setupLock(t)
	ctx := context.Background()

	release, err := lock.TryLock(ctx, "posts/1", time.Second)
	if err != nil {
		t.Fatal(err)
	}

	// the lock expired and another process took it
	mr.Set("jsonable:lock:posts/1", "someone-else")
	release()

	if got, _ := mr.Get("jsonable:lock:posts/1"); got != "someone-else" {
		t.Errorf("release removed a lock it did not own, value now %q", got)
	}
}

func TestDistributedLock_ReleaseFailureIsLogged(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	core, logs := observer.New(zapcore.WarnLevel)
	lock := NewDistributedLock(client, "jsonable").WithLogger(NewZapLogger(zap.New(core)))

	release, err := lock.TryLock(context.Background(), "posts/1", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	client.Close()
	release()

	entries := logs.FilterMessage("failed to release record lock").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["key"]; got != "posts/1" {
		t.Errorf("expected key field posts/1, got %v", got)
	}
}

func TestDistributedLock_AcquireGivesUp(t *testing.T) {
	lock, _, _ := setupLock(t)
	metrics := NewInMemoryMetrics()
	lock.WithRetry(3, time.Millisecond).WithMetrics(metrics)
	ctx := context.Background()

	release, err := lock.TryLock(ctx, "posts/1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	_, err = lock.Acquire(ctx, "posts/1", time.Minute)
	if !IsLockHeld(err) {
		t.Fatalf("expected ErrLockHeld after retries, got %v", err)
	}
	if metrics.Counters[MetricLockContention] != 3 {
		t.Errorf("expected 3 contended attempts, got %d", metrics.Counters[MetricLockContention])
	}
}

func TestDistributedLock_AcquireHonoursContext(t *testing.T) {
	lock, _, _ := setupLock(t)
	lock.WithRetry(10, 50*time.Millisecond)

	release, err := lock.TryLock(context.Background(), "posts/1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := lock.Acquire(ctx, "posts/1", time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDistributedLock_SerializesCollectionWrites(t *testing.T) {
	lock, client, _ := setupLock(t)
	lock.WithRetry(200, time.Millisecond)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- lock.WithLock(ctx, "post:1", time.Second, func() error {
				actions, err := Open(ctx, NewRedisRecord(client, "post:1"), "actions")
				if err != nil {
					return err
				}
				_, err = actions.Add(ctx, map[string]any{"type": "like"})
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("locked write failed: %v", err)
		}
	}

	actions, err := Open(ctx, NewRedisRecord(client, "post:1"), "actions")
	if err != nil {
		t.Fatal(err)
	}
	if actions.Len() != writers {
		t.Fatalf("expected %d items, got %d", writers, actions.Len())
	}
	for i, item := range actions.All() {
		if id, _ := item.ID(); id != int64(i+1) {
			t.Errorf("item %d: expected id %d, got %d", i, i+1, id)
		}
	}
}
