package repository

import (
	"context"
	"time"

	"github.com/azhengyongqin/analysis-hub/internal/apperr"
	"github.com/azhengyongqin/analysis-hub/internal/model"
)

// Task 分析任务记录，(EventID, TaskType) 唯一
type Task struct {
	ID          string           `json:"id"`
	EventID     string           `json:"event_id"`
	TaskType    model.TaskType   `json:"task_type"`
	RemoteJobID string           `json:"remote_job_id,omitempty"`
	Status      model.TaskStatus `json:"status"`
	Progress    int              `json:"progress"`
	ErrorDetail string           `json:"error_detail,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// StatusUpdate 部分更新；nil 字段保持不变。
// Status 不是 failed 时 error_detail 一律清空。
type StatusUpdate struct {
	Status      model.TaskStatus
	Progress    *int
	ErrorDetail *string
}

// TaskRepository 任务仓储接口
// 所有按 key 的写操作都是原子的；存储错误统一包装为 apperr internal。
type TaskRepository interface {
	// GetOrCreate 按 (event, type) 原子地获取或创建记录，created 仅对插入方为 true
	GetOrCreate(ctx context.Context, eventID string, taskType model.TaskType) (Task, bool, error)

	// Get 按 ID 获取，不存在返回 not_found
	Get(ctx context.Context, id string) (Task, error)

	// UpdateStatus 更新状态/进度/错误信息，不存在返回 not_found
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error

	// Reset 重启：pending、进度 0、清空错误、写入新的远程任务 ID
	Reset(ctx context.Context, id, newRemoteJobID string) error

	// SetRemoteJob 提交成功后写入远程任务 ID 并进入 processing
	SetRemoteJob(ctx context.Context, id, remoteJobID string) error

	// ApplyRemoteStatus 以 expected 为快照做 compare-and-swap：
	// 记录的 remote_job_id、status、progress 必须仍与快照一致，且 upd 相对快照是合法推进，
	// 否则不写入并返回 false。
	ApplyRemoteStatus(ctx context.Context, expected Task, upd StatusUpdate) (bool, error)

	// Delete 硬删除，返回是否删除了记录
	Delete(ctx context.Context, id string) (bool, error)

	// ListForEvent 某个活动的全部记录
	ListForEvent(ctx context.Context, eventID string) ([]Task, error)

	// ListByRemoteJobID 按远程任务 ID 反查（回调用）
	ListByRemoteJobID(ctx context.Context, remoteJobID string) ([]Task, error)

	// ListEvents 有任务记录的活动，最近更新的在前
	ListEvents(ctx context.Context, limit int) ([]string, error)
}

// ClampProgress 进度限制在 0..100
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// remoteAdvance 检查远程状态相对快照是否合法：状态只能按 CanTransition 推进，
// processing 期间进度不减
func remoteAdvance(expected Task, upd StatusUpdate) bool {
	if expected.RemoteJobID == "" {
		return false
	}
	status := expected.Status
	if upd.Status != "" {
		if !expected.Status.CanTransition(upd.Status) {
			return false
		}
		status = upd.Status
	}
	if upd.Progress != nil && status == model.TaskStatusProcessing && ClampProgress(*upd.Progress) < expected.Progress {
		return false
	}
	return true
}

// normalizeLimit 列表上限
func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

// errTaskNotFound 记录不存在
func errTaskNotFound(op, id string) error {
	e := apperr.NotFound(op, "task %s 不存在", id)
	e.TaskID = id
	return e
}
