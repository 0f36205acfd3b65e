// Package aggregator 从任务记录推导活动整体状态，纯函数，无 I/O。
package aggregator

import (
	"github.com/azhengyongqin/analysis-hub/internal/model"
	"github.com/azhengyongqin/analysis-hub/internal/repository"
)

// Counts 各状态的记录数
type Counts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Result 聚合结果
type Result struct {
	EventStatus     model.TaskStatus `json:"event_status"`
	OverallProgress int              `json:"overall_progress"`
	Counts          Counts           `json:"counts"`
}

// EventView 活动分析视图
type EventView struct {
	EventID         string            `json:"event_id"`
	Tasks           []repository.Task `json:"tasks"`
	EventStatus     model.TaskStatus  `json:"event_status"`
	OverallProgress int               `json:"overall_progress"`
	Counts          Counts            `json:"counts"`
}

// Aggregate 优先级：failed > processing > completed（全部）> pending。
// 没有记录时为 pending/0；整体进度是各记录进度的算术平均，向下取整。
func Aggregate(tasks []repository.Task) Result {
	if len(tasks) == 0 {
		return Result{EventStatus: model.TaskStatusPending}
	}

	var (
		c   Counts
		sum int
	)
	for _, t := range tasks {
		switch t.Status {
		case model.TaskStatusFailed:
			c.Failed++
		case model.TaskStatusProcessing:
			c.Processing++
		case model.TaskStatusCompleted:
			c.Completed++
		default:
			c.Pending++
		}
		sum += repository.ClampProgress(t.Progress)
	}

	r := Result{Counts: c, OverallProgress: sum / len(tasks)}
	switch {
	case c.Failed > 0:
		r.EventStatus = model.TaskStatusFailed
	case c.Processing > 0:
		r.EventStatus = model.TaskStatusProcessing
	case c.Completed == len(tasks):
		r.EventStatus = model.TaskStatusCompleted
	default:
		r.EventStatus = model.TaskStatusPending
	}
	return r
}

// Build 组装视图
func Build(eventID string, tasks []repository.Task) EventView {
	if tasks == nil {
		tasks = []repository.Task{}
	}
	r := Aggregate(tasks)
	return EventView{
		EventID:         eventID,
		Tasks:           tasks,
		EventStatus:     r.EventStatus,
		OverallProgress: r.OverallProgress,
		Counts:          r.Counts,
	}
}
