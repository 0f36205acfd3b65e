package main

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/azhengyongqin/analysis-hub/internal/bootstrap"
	"github.com/azhengyongqin/analysis-hub/internal/config"
	"github.com/azhengyongqin/analysis-hub/internal/gateway"
	"github.com/azhengyongqin/analysis-hub/internal/logger"
	"github.com/azhengyongqin/analysis-hub/internal/orchestrator"
	asynqx "github.com/azhengyongqin/analysis-hub/internal/queue"
)

// 后台进度刷新 worker：消费 analysis:refresh，向分析服务拉取进行中记录的状态。
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Options{Production: true})
		bootLog.Fatal().Err(err).Msg("加载配置失败")
	}

	log := logger.New(logger.Options{Production: cfg.App.Production(), Level: cfg.App.LogLevel}).
		With().Str("component", "worker").Logger()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("配置验证失败")
	}
	if !cfg.Redis.Enabled() {
		log.Fatal().Msg("worker 需要 REDIS_ADDR")
	}

	store, err := bootstrap.OpenStore(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer store.Close()

	redisOpt, err := asynqx.NewRedisConnOpt(cfg.Redis.URI())
	if err != nil {
		log.Fatal().Err(err).Msg("解析 Redis URI 失败")
	}

	client, err := asynqx.NewClient(context.Background(), cfg.Redis.URI())
	if err != nil {
		log.Fatal().Err(err).Msg("创建 Asynq client 失败")
	}
	defer client.Close()
	scheduler := asynqx.NewScheduler(client, cfg.Refresh.Interval, log)

	gw := gateway.New(bootstrap.GatewayConfig(cfg.Analysis), log)
	svc := orchestrator.New(store.Repo, gw, nil, orchestrator.Options{Logger: log})

	concurrency := cfg.Refresh.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{asynqx.QueueRefresh: 1},
		Logger:      asynqx.NewLogger(log),
	})

	log.Info().
		Int("concurrency", concurrency).
		Dur("interval", scheduler.Interval()).
		Msg("刷新 worker 启动")

	// Run 阻塞直到收到 SIGTERM/SIGINT，并等待进行中的任务完成
	if err := srv.Run(asynqx.NewServeMux(asynqx.NewRefreshHandler(svc, scheduler, log))); err != nil {
		log.Fatal().Err(err).Msg("worker 运行失败")
	}
	log.Info().Msg("worker 已退出")
}
