package sdk

import "time"

// TaskType 分析类型，避免用户侧写错字符串。
type TaskType string

const (
	TaskTypeTimeline     TaskType = "timeline"
	TaskTypeRemoveExif   TaskType = "remove_exif"
	TaskTypeWatermark    TaskType = "watermark"
	TaskTypeFaceSearch   TaskType = "face_search"
	TaskTypeNumberSearch TaskType = "number_search"
)

// TaskStatus 分析记录状态
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Done 不会再自行变化的状态
func (s TaskStatus) Done() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task 分析记录
type Task struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	TaskType    TaskType   `json:"task_type"`
	RemoteJobID string     `json:"remote_job_id,omitempty"`
	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"`
	ErrorDetail string     `json:"error_detail,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Counts 各状态的记录数
type Counts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// EventStatus 活动聚合状态
type EventStatus struct {
	EventID         string     `json:"event_id"`
	Tasks           []Task     `json:"tasks"`
	EventStatus     TaskStatus `json:"event_status"`
	OverallProgress int        `json:"overall_progress"`
	Counts          Counts     `json:"counts"`
}

// StartResult 启动分析结果
type StartResult struct {
	EventID        string     `json:"event_id"`
	Tasks          []Task     `json:"tasks"`
	Submitted      []TaskType `json:"submitted"`
	AlreadyRunning []TaskType `json:"already_running"`
	Failed         []TaskType `json:"failed"`
}

// RestartOutcome 单个类型的重启结果
type RestartOutcome struct {
	Task  *Task  `json:"task,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}
