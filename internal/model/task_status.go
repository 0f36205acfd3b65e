package model

// TaskStatus 分析任务状态（用于 API/DB/聚合）。
// 约定：
// - pending: 记录已建立，尚未提交或刚被重启
// - processing: 远程分析服务已接收，正在执行
// - completed: 远程任务成功结束
// - failed: 提交失败或远程任务失败，error_detail 记录原因
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Active 任务仍在等待或执行中
func (s TaskStatus) Active() bool {
	return s == TaskStatusPending || s == TaskStatusProcessing
}

// Terminal 终态只能通过显式重启回到 pending
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition 判断远程状态推进是否合法（重启走 Reset，不经过这里）。
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	if !to.Valid() {
		return false
	}
	switch s {
	case TaskStatusPending:
		return true
	case TaskStatusProcessing:
		return to != TaskStatusPending
	default:
		return s == to
	}
}
