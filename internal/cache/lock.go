package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLocked 锁已被其他提交持有
var ErrLocked = errors.New("lock already held")

// Locker 非阻塞的互斥锁，用于防止同一 (event, type) 被重复提交
type Locker interface {
	// TryLock 获取锁；已被持有时返回 ErrLocked
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease 已获取的锁
type Lease interface {
	Unlock(ctx context.Context) error
}

// SubmitLockKey 提交锁的 key
func SubmitLockKey(eventID, taskType string) string {
	return Key("lock", eventID, taskType)
}

// RedisLocker 基于 SET NX PX 的分布式锁，多实例部署时使用
type RedisLocker struct {
	rc *RedisClient
}

func NewRedisLocker(rc *RedisClient) *RedisLocker {
	return &RedisLocker{rc: rc}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.rc.acquire(ctx, key, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &redisLease{rc: l.rc, key: key, token: token}, nil
}

type redisLease struct {
	rc    *RedisClient
	key   string
	token string
}

// Unlock 锁已过期并被他人取得时不做任何事
func (l *redisLease) Unlock(ctx context.Context) error {
	if _, err := l.rc.release(ctx, l.key, l.token); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// LocalLocker 进程内锁，单实例 / 未配置 Redis 时使用
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	clock func() time.Time
}

type localEntry struct {
	token   string
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:  map[string]localEntry{},
		clock: time.Now,
	}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[key]; ok && (e.expires.IsZero() || now.Before(e.expires)) {
		return nil, ErrLocked
	}

	e := localEntry{token: uuid.NewString()}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	l.held[key] = e
	return &localLease{owner: l, key: key, token: e.token}, nil
}

type localLease struct {
	owner *LocalLocker
	key   string
	token string
}

func (l *localLease) Unlock(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()

	if e, ok := l.owner.held[l.key]; ok && e.token == l.token {
		delete(l.owner.held, l.key)
	}
	return nil
}
