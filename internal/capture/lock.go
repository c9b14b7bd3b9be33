package capture

import (
	"fmt"
	"sync"
	"time"

	"FaceScan/pkg/redis"
	"github.com/google/uuid"
	"golang.org/x/net/context"
)

// Locker guards a capture surface so only one scan runs on it at a time.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}

// RedisLocker shares the busy flag between instances. The lock expires after
// ttl so a crashed instance cannot hold a surface forever.
type RedisLocker struct {
	client redis.IRedis
	ttl    time.Duration
}

func NewRedisLocker(client redis.IRedis, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	owner := uuid.NewString()

	ok, err := l.client.AcquireLock(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("acquire scan lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	done := make(chan struct{})
	go l.keepAlive(key, owner, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.client.ReleaseLock(releaseCtx, key, owner)
		})
	}, true, nil
}

// keepAlive extends the lock at half its ttl until done is closed.
func (l *RedisLocker) keepAlive(key, owner string, done <-chan struct{}) {
	if l.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := l.client.RefreshLock(ctx, key, owner, l.ttl)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// SurfaceKey names the lock for one user's capture device.
func SurfaceKey(userID, deviceID string) string {
	if deviceID == "" {
		deviceID = "default"
	}
	return fmt.Sprintf("facescan:surface:%s:%s", userID, deviceID)
}
