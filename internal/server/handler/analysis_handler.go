package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/analysis-hub/internal/aggregator"
	"github.com/azhengyongqin/analysis-hub/internal/gateway"
	"github.com/azhengyongqin/analysis-hub/internal/model"
	"github.com/azhengyongqin/analysis-hub/internal/orchestrator"
	"github.com/azhengyongqin/analysis-hub/internal/repository"
	"github.com/azhengyongqin/analysis-hub/internal/server/dto"
)

// Orchestrator 编排服务（orchestrator.Service 实现）
type Orchestrator interface {
	StartAnalysis(ctx context.Context, eventID string, types []model.TaskType) (*orchestrator.StartResult, error)
	QueryStatus(ctx context.Context, eventID string, refresh bool) (*aggregator.EventView, error)
	RestartAll(ctx context.Context, eventID string) (map[model.TaskType]orchestrator.RestartOutcome, error)
	ListEvents(ctx context.Context, limit int) ([]aggregator.EventView, error)
	RestartTask(ctx context.Context, taskID string) (*repository.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	TaskLog(ctx context.Context, taskID string) (*orchestrator.TaskLog, error)
	ApplyJobUpdate(ctx context.Context, remoteJobID string, js gateway.JobStatus) (int, error)
}

// AnalysisHandler 活动分析相关 API Handler
type AnalysisHandler struct {
	svc Orchestrator
}

// NewAnalysisHandler 创建 AnalysisHandler
func NewAnalysisHandler(svc Orchestrator) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

// StartAnalysis godoc
// @Summary 启动分析
// @Description 为活动启动一组分析类型；已在执行中的类型不会重复提交。提交失败时返回错误以及各记录的最新状态
// @Tags Analysis
// @Accept json
// @Produce json
// @Param event_id path string true "活动 ID"
// @Param request body dto.StartAnalysisRequest true "分析类型"
// @Success 200 {object} dto.StartAnalysisResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /events/{event_id}/analysis [post]
func (h *AnalysisHandler) StartAnalysis(c *gin.Context) {
	var req dto.StartAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	types := make([]model.TaskType, 0, len(req.TaskTypes))
	for _, t := range req.TaskTypes {
		types = append(types, model.TaskType(t))
	}

	res, err := h.svc.StartAnalysis(c.Request.Context(), c.Param("event_id"), types)
	if err != nil {
		if res != nil {
			writeErrorWithData(c, err, res)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetStatus godoc
// @Summary 查询活动分析状态
// @Description 返回活动下所有分析记录及聚合状态；refresh=true 时先向分析服务刷新进行中的记录
// @Tags Analysis
// @Produce json
// @Param event_id path string true "活动 ID"
// @Param refresh query bool false "是否刷新远程状态"
// @Success 200 {object} dto.EventStatusResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /events/{event_id}/analysis [get]
func (h *AnalysisHandler) GetStatus(c *gin.Context) {
	var q dto.EventStatusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}

	view, err := h.svc.QueryStatus(c.Request.Context(), c.Param("event_id"), q.Refresh)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RestartAll godoc
// @Summary 重启活动的全部分析
// @Description 逐个重启活动下的所有分析记录，单个类型的失败记录在 results 中
// @Tags Analysis
// @Produce json
// @Param event_id path string true "活动 ID"
// @Success 200 {object} dto.RestartAllResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /events/{event_id}/analysis/restart [post]
func (h *AnalysisHandler) RestartAll(c *gin.Context) {
	eventID := c.Param("event_id")
	out, err := h.svc.RestartAll(c.Request.Context(), eventID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := dto.RestartAllResponse{
		EventID: eventID,
		Results: make(map[string]orchestrator.RestartOutcome, len(out)),
	}
	for t, o := range out {
		resp.Results[string(t)] = o
	}
	c.JSON(http.StatusOK, resp)
}

// ListEvents godoc
// @Summary 活动列表
// @Description 最近有分析记录的活动及其聚合状态
// @Tags Analysis
// @Produce json
// @Param limit query int false "数量上限（默认 50，最大 200）"
// @Success 200 {object} dto.EventListResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /events [get]
func (h *AnalysisHandler) ListEvents(c *gin.Context) {
	var q dto.EventListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}

	views, err := h.svc.ListEvents(c.Request.Context(), q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.EventListResponse{Items: views, Total: len(views)})
}
