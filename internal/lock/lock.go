package lock

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLock serializes sync runs per job type when single-flight mode is
// enabled. TryAcquire returns false when another run holds the key.
type RunLock interface {
	TryAcquire(ctx context.Context, key string) (bool, func(), error)
}

type redisRunLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (l *redisRunLock) TryAcquire(ctx context.Context, key string) (bool, func(), error) {
	fullKey := l.prefix + ":" + key
	ok, err := l.client.SetNX(ctx, fullKey, "1", l.ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, nil
	}
	release := func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		l.client.Del(relCtx, fullKey)
	}
	return true, release, nil
}

type memoryRunLock struct {
	mu   sync.Mutex
	held map[string]time.Time
	ttl  time.Duration
}

func newMemoryRunLock(ttl time.Duration) *memoryRunLock {
	return &memoryRunLock{
		held: make(map[string]time.Time),
		ttl:  ttl,
	}
}

func (l *memoryRunLock) TryAcquire(_ context.Context, key string) (bool, func(), error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if exp, ok := l.held[key]; ok && exp.After(now) {
		return false, nil, nil
	}

	l.held[key] = now.Add(l.ttl)
	release := func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}
	return true, release, nil
}

// NewRunLock builds a Redis-backed lock and falls back to an in-memory
// lock when Redis is unavailable. The TTL bounds lock leakage if a
// process dies without releasing.
func NewRunLock(addr, pass string, db int, ttl time.Duration) (RunLock, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if addr == "" {
		return newMemoryRunLock(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryRunLock(ttl), err
	}

	return &redisRunLock{
		client: client,
		prefix: "worksync:runlock",
		ttl:    ttl,
	}, nil
}
