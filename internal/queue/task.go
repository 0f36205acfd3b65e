package asynqx

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeRefresh 后台刷新一个活动的分析进度
	TypeRefresh = "analysis:refresh"

	// QueueRefresh 刷新任务使用的队列
	QueueRefresh = "analysis"
)

// RefreshPayload 刷新任务的 payload
type RefreshPayload struct {
	EventID string `json:"event_id"`
}

// NewRefreshTask 构造刷新任务
func NewRefreshTask(eventID string) (*asynq.Task, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("event_id 不能为空")
	}
	b, err := json.Marshal(RefreshPayload{EventID: eventID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRefresh, b), nil
}

// ParseRefreshPayload 解析刷新任务 payload
func ParseRefreshPayload(t *asynq.Task) (RefreshPayload, error) {
	var p RefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("解析 payload 失败: %w", err)
	}
	if strings.TrimSpace(p.EventID) == "" {
		return p, fmt.Errorf("payload 缺少 event_id")
	}
	return p, nil
}

// EnqueueParams 入队参数
type EnqueueParams struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration
	Delay    time.Duration
	// Unique 大于 0 时，同一 payload 在该时间窗口内只入队一次
	Unique time.Duration
}

// EnqueueOptions 入队参数转 asynq 选项
func EnqueueOptions(p EnqueueParams) []asynq.Option {
	var opts []asynq.Option

	if p.Queue != "" {
		opts = append(opts, asynq.Queue(p.Queue))
	}
	if p.MaxRetry >= 0 {
		opts = append(opts, asynq.MaxRetry(p.MaxRetry))
	}
	if p.Timeout > 0 {
		opts = append(opts, asynq.Timeout(p.Timeout))
	}
	if p.Delay > 0 {
		opts = append(opts, asynq.ProcessIn(p.Delay))
	}
	if p.Unique > 0 {
		opts = append(opts, asynq.Unique(p.Unique))
	}
	return opts
}
