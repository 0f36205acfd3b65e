package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/azhengyongqin/analysis-hub/internal/healthcheck"
	"github.com/azhengyongqin/analysis-hub/internal/middleware"
	"github.com/azhengyongqin/analysis-hub/internal/server/handler"
)

// Deps 路由依赖
type Deps struct {
	// Service 编排服务
	Service handler.Orchestrator

	// HealthChecker 健康检查器（可选）
	HealthChecker *healthcheck.HealthChecker

	// Logger 访问日志
	Logger zerolog.Logger

	// Monitoring 是否暴露 /metrics
	Monitoring bool
}

// NewRouter 提供 Gin HTTP API
func NewRouter(deps Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	// 全局中间件
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(deps.Logger))
	r.Use(middleware.PrometheusMiddleware("/healthz", "/readyz", "/metrics"))
	r.Use(middleware.PayloadSizeLimit(middleware.MaxPayloadSize))
	r.Use(middleware.CORSMiddleware())

	healthHandler := handler.NewHealthHandler(deps.HealthChecker)
	analysisHandler := handler.NewAnalysisHandler(deps.Service)
	taskHandler := handler.NewTaskHandler(deps.Service)

	// 健康检查路由
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	// Prometheus metrics 端点
	if deps.Monitoring {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Swagger API 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	{
		// 活动分析
		api.GET("/events", analysisHandler.ListEvents)
		events := api.Group("/events/:event_id", middleware.ValidateEventIDParam())
		events.POST("/analysis", analysisHandler.StartAnalysis)
		events.GET("/analysis", analysisHandler.GetStatus)
		events.POST("/analysis/restart", analysisHandler.RestartAll)

		// 单个分析记录
		tasks := api.Group("/tasks/:task_id", middleware.ValidateTaskIDParam())
		tasks.GET("", taskHandler.GetTask)
		tasks.DELETE("", taskHandler.DeleteTask)
		tasks.POST("/restart", taskHandler.RestartTask)

		// 分析服务回调
		api.POST("/callbacks/jobs/:remote_job_id", middleware.ValidateRemoteJobIDParam(), taskHandler.JobCallback)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found", "kind": "not_found"})
	})

	return r
}
