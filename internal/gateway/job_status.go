package gateway

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/azhengyongqin/analysis-hub/internal/model"
)

// JobStatus 远程任务状态（GET /tasks/{id}）
type JobStatus struct {
	TaskID    string          `json:"task_id"`
	State     string          `json:"state,omitempty"`
	Status    string          `json:"status,omitempty"`
	Progress  *float64        `json:"progress,omitempty"`
	Current   int             `json:"current,omitempty"`
	Total     int             `json:"total,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorType string          `json:"error_type,omitempty"`
}

// RemoteState 远程状态原文（state 优先，其次 status），统一大写
func (j *JobStatus) RemoteState() string {
	s := j.State
	if s == "" {
		s = j.Status
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// Normalized 将远程状态映射为本地状态和 0..100 的进度
func (j *JobStatus) Normalized() (model.TaskStatus, int) {
	var status model.TaskStatus
	switch j.RemoteState() {
	case "SUCCESS", "DONE", "COMPLETED":
		return model.TaskStatusCompleted, 100
	case "FAILURE", "FAILED", "ERROR", "REVOKED":
		status = model.TaskStatusFailed
	case "STARTED", "PROGRESS", "RETRY", "RUNNING", "PROCESSING":
		status = model.TaskStatusProcessing
	default:
		// PENDING / RECEIVED / QUEUED 以及未知状态
		status = model.TaskStatusPending
	}
	return status, j.percent()
}

// ErrorDetail 失败时写入任务记录的描述
func (j *JobStatus) ErrorDetail() string {
	switch {
	case j.Error != "" && j.ErrorType != "":
		return j.ErrorType + ": " + j.Error
	case j.Error != "":
		return j.Error
	default:
		return "remote job " + strings.ToLower(j.RemoteState())
	}
}

func (j *JobStatus) percent() int {
	var p float64
	switch {
	case j.Progress != nil:
		p = *j.Progress
	case j.Total > 0:
		p = float64(j.Current) * 100 / float64(j.Total)
	default:
		return 0
	}
	return clampPercent(int(math.Floor(p)))
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
