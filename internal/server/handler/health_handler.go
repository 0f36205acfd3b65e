package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/analysis-hub/internal/healthcheck"
)

// HealthHandler 探针 Handler；checker 为空时只报告进程存活
type HealthHandler struct {
	checker *healthcheck.HealthChecker
}

func NewHealthHandler(checker *healthcheck.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Liveness godoc
// @Summary Liveness 检查
// @Description 服务存活检查，用于 Kubernetes liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} healthcheck.CheckResult
// @Router /healthz [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	if h.checker == nil {
		respondProbe(c, healthcheck.CheckResult{Status: healthcheck.StatusOK})
		return
	}
	respondProbe(c, h.checker.LivenessCheck())
}

// Readiness godoc
// @Summary Readiness 检查
// @Description 服务就绪检查：数据库、Redis 不可用返回 503；分析服务不可用返回 degraded
// @Tags Health
// @Produce json
// @Success 200 {object} healthcheck.CheckResult
// @Failure 503 {object} healthcheck.CheckResult
// @Router /readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.checker == nil {
		respondProbe(c, healthcheck.CheckResult{Status: healthcheck.StatusOK})
		return
	}
	respondProbe(c, h.checker.ReadinessCheck(c.Request.Context()))
}

// respondProbe degraded 仍返回 200，只有 error 返回 503
func respondProbe(c *gin.Context, r healthcheck.CheckResult) {
	c.Header("Cache-Control", "no-store")
	status := http.StatusOK
	if !r.Ready() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, r)
}
