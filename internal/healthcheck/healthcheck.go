package healthcheck

import (
	"context"
	"database/sql"
	"time"

	"github.com/azhengyongqin/analysis-hub/internal/metrics"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// Pinger Redis 连通性（cache.RedisCache 实现）
type Pinger interface {
	Ping(ctx context.Context) error
}

// AnalysisProbe 远程分析服务探活（gateway.Client 实现）
type AnalysisProbe interface {
	HealthCheck(ctx context.Context) bool
}

// HealthChecker 健康检查器
type HealthChecker struct {
	db       *sql.DB
	redis    Pinger
	analysis AnalysisProbe
	version  string
}

// NewHealthChecker 创建健康检查器；redis / analysis 可为空
func NewHealthChecker(db *sql.DB, redis Pinger, analysis AnalysisProbe, version string) *HealthChecker {
	return &HealthChecker{
		db:       db,
		redis:    redis,
		analysis: analysis,
		version:  version,
	}
}

// CheckResult 健康检查结果
type CheckResult struct {
	Status  string            `json:"status"` // ok / degraded / error
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// Ready 是否可以接收流量（degraded 也算）
func (r CheckResult) Ready() bool {
	return r.Status != StatusError
}

// LivenessCheck 存活检查（快速返回，不检查依赖）
func (h *HealthChecker) LivenessCheck() CheckResult {
	return CheckResult{
		Status: StatusOK,
		Checks: map[string]string{
			"service": "running",
		},
		Version: h.version,
	}
}

// ReadinessCheck 就绪检查。
// 数据库、Redis 不可用为 error；分析服务不可用只降级为 degraded，查询接口仍可用。
func (h *HealthChecker) ReadinessCheck(ctx context.Context) CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	result := CheckResult{
		Status:  StatusOK,
		Checks:  make(map[string]string),
		Version: h.version,
	}

	if h.db != nil {
		if err := h.checkDB(ctx); err != nil {
			result.Checks["database"] = "error: " + err.Error()
			result.Status = StatusError
		} else {
			result.Checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.checkRedis(ctx); err != nil {
			result.Checks["redis"] = "error: " + err.Error()
			result.Status = StatusError
		} else {
			result.Checks["redis"] = "ok"
		}
	}

	if h.analysis != nil {
		if h.analysis.HealthCheck(ctx) {
			result.Checks["analysis_service"] = "ok"
		} else {
			result.Checks["analysis_service"] = "unreachable"
			if result.Status == StatusOK {
				result.Status = StatusDegraded
			}
		}
	}

	return result
}

// checkDB 检查数据库连接，同时更新连接池指标
func (h *HealthChecker) checkDB(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	s := h.db.Stats()
	metrics.UpdateDBPoolStats(s.InUse, s.Idle, s.MaxOpenConnections)

	return h.db.PingContext(ctx)
}

func (h *HealthChecker) checkRedis(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return h.redis.Ping(ctx)
}
