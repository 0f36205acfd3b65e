package asynqx

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// 刷新任务很轻，Redis 卡住时尽快失败，不拖住 HTTP 请求
const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
)

// NewRedisConnOpt 仅接受 URI（例如 redis://localhost:6379/0）
func NewRedisConnOpt(redisURI string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURI)
	if err != nil {
		return nil, fmt.Errorf("parse asynq redis uri: %w", err)
	}
	if c, ok := opt.(asynq.RedisClientOpt); ok {
		c.DialTimeout = dialTimeout
		c.ReadTimeout = readTimeout
		c.WriteTimeout = writeTimeout
		return c, nil
	}
	return opt, nil
}

// NewClient 入队用的 asynq client，创建前先 PING 一次
func NewClient(ctx context.Context, redisURI string) (*asynq.Client, error) {
	opt, err := NewRedisConnOpt(redisURI)
	if err != nil {
		return nil, err
	}
	if err := ping(ctx, opt); err != nil {
		return nil, fmt.Errorf("ping asynq redis: %w", err)
	}
	return asynq.NewClient(opt), nil
}

func ping(ctx context.Context, opt asynq.RedisConnOpt) error {
	rdb, ok := opt.MakeRedisClient().(redis.UniversalClient)
	if !ok {
		return fmt.Errorf("unexpected redis client type %T", opt.MakeRedisClient())
	}
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
