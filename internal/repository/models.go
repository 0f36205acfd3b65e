package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/azhengyongqin/analysis-hub/internal/model"
)

// TaskModel GORM 模型 - 对应 analysis_task 表
type TaskModel struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	EventID     string    `gorm:"column:event_id;type:varchar(128);not null;uniqueIndex:uk_analysis_task_event_type,priority:1"`
	TaskType    string    `gorm:"column:task_type;type:varchar(32);not null;uniqueIndex:uk_analysis_task_event_type,priority:2"`
	RemoteJobID *string   `gorm:"column:remote_job_id;type:varchar(255);index:idx_analysis_task_remote_job_id"`
	Status      string    `gorm:"column:status;type:varchar(16);not null;index:idx_analysis_task_status"`
	Progress    int       `gorm:"column:progress;not null"`
	ErrorDetail *string   `gorm:"column:error_detail;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName 指定表名
func (TaskModel) TableName() string { return "analysis_task" }

// ToTask 转换为 Task 实体
func (m *TaskModel) ToTask() Task {
	t := Task{
		ID:        m.ID,
		EventID:   m.EventID,
		TaskType:  model.TaskType(m.TaskType),
		Status:    model.TaskStatus(m.Status),
		Progress:  m.Progress,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.RemoteJobID != nil {
		t.RemoteJobID = *m.RemoteJobID
	}
	if m.ErrorDetail != nil {
		t.ErrorDetail = *m.ErrorDetail
	}
	return t
}

// TaskToModel 从 Task 实体创建模型
func TaskToModel(t Task) TaskModel {
	m := TaskModel{
		ID:        t.ID,
		EventID:   t.EventID,
		TaskType:  string(t.TaskType),
		Status:    string(t.Status),
		Progress:  t.Progress,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.RemoteJobID != "" {
		m.RemoteJobID = &t.RemoteJobID
	}
	if t.ErrorDetail != "" {
		m.ErrorDetail = &t.ErrorDetail
	}
	return m
}

// AutoMigrate 建表（SQLite 和测试使用；PostgreSQL 走 migrations 目录）
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TaskModel{})
}
