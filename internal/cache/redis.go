package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix 所有 key 的命名空间
const keyPrefix = "analysishub"

// releaseScript value 仍是自己的 token 才删除
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisClient 提交锁使用的 Redis 原语
type RedisClient struct {
	rdb *redis.Client
}

// DialRedis 解析 redis:// URI 并在 3s 内完成 PING
func DialRedis(ctx context.Context, redisURL string) (*RedisClient, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &RedisClient{rdb: rdb}, nil
}

// WrapRedis 复用已有连接（测试里接 miniredis）
func WrapRedis(rdb *redis.Client) *RedisClient {
	return &RedisClient{rdb: rdb}
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

// Ping 供 readiness 检查
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// acquire SET key token NX PX ttl
func (c *RedisClient) acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, token, ttl).Result()
}

// release 持有者校验后删除；锁已过期或被他人持有时返回 false
func (c *RedisClient) release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, c.rdb, []string{key}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n == 1, nil
}

// Key 拼接带命名空间的 key，例如 analysishub:lock:10234:watermark
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}
