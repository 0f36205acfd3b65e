package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/azhengyongqin/analysis-hub/docs" // Swagger docs
	"github.com/azhengyongqin/analysis-hub/internal/bootstrap"
	"github.com/azhengyongqin/analysis-hub/internal/cache"
	"github.com/azhengyongqin/analysis-hub/internal/config"
	"github.com/azhengyongqin/analysis-hub/internal/gateway"
	"github.com/azhengyongqin/analysis-hub/internal/healthcheck"
	"github.com/azhengyongqin/analysis-hub/internal/logger"
	"github.com/azhengyongqin/analysis-hub/internal/orchestrator"
	asynqx "github.com/azhengyongqin/analysis-hub/internal/queue"
	httpserver "github.com/azhengyongqin/analysis-hub/internal/server"
)

const version = "1.0.0"

// @title Analysis-Hub API
// @version 1.0.0
// @description 活动照片分析任务编排 - 基于远程分析服务、PostgreSQL 与 Asynq 的任务调度平台
// @contact.name Analysis-Hub Support
// @license.name MIT
// @BasePath /api/v1
// @schemes http https
// @host localhost:28080

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Options{Production: true})
		bootLog.Fatal().Err(err).Msg("加载配置失败")
	}

	log := logger.New(logger.Options{Production: cfg.App.Production(), Level: cfg.App.LogLevel})

	// 验证配置
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("配置验证失败")
	}

	log.Info().
		Str("http", cfg.HTTP.Addr).
		Str("db_driver", cfg.DB.Driver).
		Str("analysis_service", cfg.Analysis.BaseURL).
		Bool("redis", cfg.Redis.Enabled()).
		Msg("服务启动")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer store.Close()

	gw := gateway.New(bootstrap.GatewayConfig(cfg.Analysis), log)

	// 提交锁：配置了 Redis 走分布式锁，否则只在本进程内互斥
	var (
		locker    cache.Locker = cache.NewLocalLocker()
		redisPing healthcheck.Pinger
	)
	if cfg.Redis.Enabled() {
		rc, err := cache.DialRedis(ctx, cfg.Redis.URI())
		if err != nil {
			log.Fatal().Err(err).Msg("连接 Redis 失败")
		}
		defer rc.Close()
		locker = cache.NewRedisLocker(rc)
		redisPing = rc
	} else {
		log.Warn().Msg("未配置 REDIS_ADDR，提交锁仅在单进程内有效，后台刷新关闭")
	}

	opts := orchestrator.Options{Logger: log, LockTTL: cfg.Redis.LockTTL}

	// 后台刷新：Asynq client 负责入队，由 cmd/worker 消费
	if cfg.Redis.Enabled() && cfg.Refresh.Enabled {
		asynqClient, err := asynqx.NewClient(ctx, cfg.Redis.URI())
		if err != nil {
			log.Fatal().Err(err).Msg("创建 Asynq client 失败")
		}
		defer asynqClient.Close()
		opts.Scheduler = asynqx.NewScheduler(asynqClient, cfg.Refresh.Interval, log)
	}

	svc := orchestrator.New(store.Repo, gw, locker, opts)

	// 创建健康检查器
	healthChecker := healthcheck.NewHealthChecker(store.SQL, redisPing, gw, version)

	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpserver.NewRouter(httpserver.Deps{
			Service:       svc,
			HealthChecker: healthChecker,
			Logger:        log,
			Monitoring:    cfg.Monitoring.Enabled,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP 服务监听")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP 服务错误")
		}
	}()

	<-ctx.Done()

	// 提交请求最长 5 分钟，这里只等待已在处理中的短请求
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP 服务关闭超时")
	}
	log.Info().Msg("服务已优雅关闭")
}
