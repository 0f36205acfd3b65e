package dto

import (
	"encoding/json"

	"github.com/azhengyongqin/analysis-hub/internal/aggregator"
	"github.com/azhengyongqin/analysis-hub/internal/orchestrator"
)

// StartAnalysisRequest 启动分析请求
type StartAnalysisRequest struct {
	TaskTypes []string `json:"task_types" binding:"required,min=1" example:"watermark,face_search"`
}

// StartAnalysisResponse 启动分析响应
type StartAnalysisResponse = orchestrator.StartResult

// EventStatusQuery 查询参数
type EventStatusQuery struct {
	Refresh bool `form:"refresh" example:"true"`
}

// EventStatusResponse 活动分析状态
type EventStatusResponse = aggregator.EventView

// RestartAllResponse 批量重启结果，key 为分析类型
type RestartAllResponse struct {
	EventID string                                 `json:"event_id" example:"10234"`
	Results map[string]orchestrator.RestartOutcome `json:"results"`
}

// EventListQuery 活动列表查询参数
type EventListQuery struct {
	Limit int `form:"limit" example:"50"`
}

// EventListResponse 活动列表
type EventListResponse struct {
	Items []aggregator.EventView `json:"items"`
	Total int                    `json:"total"`
}

// JobUpdateRequest 分析服务推送的任务状态（与 GET /tasks/{id} 响应同构）
type JobUpdateRequest struct {
	State     string          `json:"state" example:"PROGRESS"`
	Status    string          `json:"status"`
	Progress  *float64        `json:"progress" example:"42.5"`
	Current   int             `json:"current"`
	Total     int             `json:"total"`
	Result    json.RawMessage `json:"result" swaggertype:"object"`
	Error     string          `json:"error"`
	ErrorType string          `json:"error_type"`
}

// JobUpdateResponse 回调处理结果
type JobUpdateResponse struct {
	Updated int `json:"updated" example:"1"`
}

// DeleteTaskResponse 删除结果；记录本就不存在时同样返回
type DeleteTaskResponse struct {
	TaskID string `json:"task_id" example:"3f0c8f5e-8d0e-4d53-9a53-1d2f4c7f6b10"`
	Status string `json:"status" example:"deleted"`
}

// ErrorResponse 错误响应；kind 为 apperr 错误类别，data 为失败时的部分结果
type ErrorResponse struct {
	Error string `json:"error" example:"analysis service unreachable at http://localhost:8000/api/v1"`
	Kind  string `json:"kind" example:"upstream_unavailable"`
	Data  any    `json:"data,omitempty"`
}
