package asynqx

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/azhengyongqin/analysis-hub/internal/metrics"
)

// DefaultRefreshInterval 默认刷新间隔
const DefaultRefreshInterval = 15 * time.Second

// Enqueuer asynq.Client 的入队能力
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler 把刷新任务投递到 asynq
type Scheduler struct {
	client   Enqueuer
	interval time.Duration
	log      zerolog.Logger
}

// NewScheduler 创建调度器
func NewScheduler(client Enqueuer, interval time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Scheduler{
		client:   client,
		interval: interval,
		log:      log.With().Str("component", "refresh_scheduler").Logger(),
	}
}

// Interval 刷新间隔
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// ScheduleRefresh 在一个间隔后刷新活动进度；窗口内重复投递视为成功
func (s *Scheduler) ScheduleRefresh(ctx context.Context, eventID string) error {
	return s.enqueue(ctx, eventID, s.interval)
}

// reschedule 刷新任务执行中续排下一次。
// 当前任务的唯一锁在 handler 返回前不会释放，所以这里不带 Unique。
func (s *Scheduler) reschedule(ctx context.Context, eventID string) error {
	return s.enqueue(ctx, eventID, 0)
}

func (s *Scheduler) enqueue(ctx context.Context, eventID string, unique time.Duration) error {
	task, err := NewRefreshTask(eventID)
	if err != nil {
		return err
	}

	info, err := s.client.EnqueueContext(ctx, task, EnqueueOptions(EnqueueParams{
		Queue:    QueueRefresh,
		MaxRetry: 0,
		Timeout:  time.Minute,
		Delay:    s.interval,
		Unique:   unique,
	})...)
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask), errors.Is(err, asynq.ErrTaskIDConflict):
		metrics.RecordRefreshEnqueued("duplicate")
		return nil
	case err != nil:
		metrics.RecordRefreshEnqueued("error")
		return err
	}

	metrics.RecordRefreshEnqueued("ok")
	s.log.Debug().Str("event_id", eventID).Str("asynq_id", info.ID).Dur("in", s.interval).Msg("已安排进度刷新")
	return nil
}
