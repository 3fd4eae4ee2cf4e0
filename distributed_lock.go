package jsonable

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed holder can block a record
const DefaultLockTTL = 30 * time.Second

const maxLockBackoff = time.Second

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// DistributedLock serializes read-modify-write cycles on one record across
// processes. The engine itself never locks: two processes that open the same
// column and both mutate it will otherwise lose one write.
//
// Example:
//
//	lock := jsonable.NewDistributedLock(redisClient, "jsonable")
//	err := lock.WithLock(ctx, "posts/42", 5*time.Second, func() error {
//	    actions, err := jsonable.Open(ctx, rec, "actions")
//	    if err != nil {
//	        return err
//	    }
//	    _, err = actions.Add(ctx, "like", 1)
//	    return err
//	})
type DistributedLock struct {
	redis      redis.UniversalClient
	keyPrefix  string
	defaultTTL time.Duration
	retries    int
	backoff    time.Duration
	logger     Logger
	metrics    Metrics
}

// NewDistributedLock creates a lock manager on top of a Redis client it does not own
func NewDistributedLock(client redis.UniversalClient, keyPrefix string) *DistributedLock {
	return &DistributedLock{
		redis:      client,
		keyPrefix:  keyPrefix,
		defaultTTL: DefaultLockTTL,
		retries:    5,
		backoff:    20 * time.Millisecond,
		logger:     &NoOpLogger{},
		metrics:    &NoOpMetrics{},
	}
}

// WithRetry sets how many attempts Acquire makes and the first backoff.
// The backoff doubles after each failed attempt, up to one second.
func (l *DistributedLock) WithRetry(attempts int, backoff time.Duration) *DistributedLock {
	if attempts < 1 {
		attempts = 1
	}
	l.retries = attempts
	l.backoff = backoff
	return l
}

// WithLogger reports locks that could not be released
func (l *DistributedLock) WithLogger(logger Logger) *DistributedLock {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// WithMetrics counts lock contention
func (l *DistributedLock) WithMetrics(metrics Metrics) *DistributedLock {
	if metrics != nil {
		l.metrics = metrics
	}
	return l
}

func (l *DistributedLock) lockKey(key string) string {
	return fmt.Sprintf("%s:lock:%s", l.keyPrefix, key)
}

// TryLock makes one attempt. The returned release must be called.
func (l *DistributedLock) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}

	lockKey := l.lockKey(key)
	token := uuid.NewString()

	ok, err := l.redis.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		l.metrics.Increment(MetricLockContention)
		return nil, WithContext(ErrLockHeld, map[string]interface{}{
			"key": key,
			"ttl": ttl,
		})
	}

	release := func() {
		// the caller's context may already be cancelled
		if err := l.redis.Eval(context.Background(), releaseScript, []string{lockKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release record lock", "key", key, "ttl", ttl, "error", err)
		}
	}
	return release, nil
}

// Acquire retries TryLock with exponential backoff until it succeeds, the
// attempts run out or ctx is done.
func (l *DistributedLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	var lastErr error
	backoff := l.backoff
	for i := 0; i < l.retries; i++ {
		release, err := l.TryLock(ctx, key, ttl)
		if err == nil {
			return release, nil
		}
		if !IsLockHeld(err) {
			return nil, err
		}
		lastErr = err

		if i == l.retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxLockBackoff {
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("failed to acquire lock after %d attempts: %w", l.retries, lastErr)
}

// WithLock runs fn while holding the lock for key
func (l *DistributedLock) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	release, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
