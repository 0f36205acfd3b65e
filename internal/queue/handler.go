package asynqx

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/azhengyongqin/analysis-hub/internal/aggregator"
)

// Refresher 刷新并返回活动状态（orchestrator.Service 实现）
type Refresher interface {
	QueryStatus(ctx context.Context, eventID string, refresh bool) (*aggregator.EventView, error)
}

// RefreshHandler 处理 analysis:refresh
type RefreshHandler struct {
	svc       Refresher
	scheduler *Scheduler
	log       zerolog.Logger
}

// NewRefreshHandler scheduler 为空时不续排
func NewRefreshHandler(svc Refresher, scheduler *Scheduler, log zerolog.Logger) *RefreshHandler {
	return &RefreshHandler{
		svc:       svc,
		scheduler: scheduler,
		log:       log.With().Str("component", "refresh_worker").Logger(),
	}
}

// ProcessTask 刷新一次；活动仍在进行中则续排下一次
func (h *RefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	p, err := ParseRefreshPayload(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	view, err := h.svc.QueryStatus(ctx, p.EventID, true)
	if err != nil {
		return fmt.Errorf("刷新活动 %s 失败: %w", p.EventID, err)
	}

	log := h.log.With().Str("event_id", p.EventID).Logger()
	log.Debug().
		Str("event_status", string(view.EventStatus)).
		Int("overall_progress", view.OverallProgress).
		Msg("进度已刷新")

	if !view.EventStatus.Active() || len(view.Tasks) == 0 || h.scheduler == nil {
		return nil
	}
	if err := h.scheduler.reschedule(ctx, p.EventID); err != nil {
		log.Warn().Err(err).Msg("续排刷新任务失败")
	}
	return nil
}

// NewServeMux 注册刷新任务的 handler
func NewServeMux(h *RefreshHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeRefresh, h)
	return mux
}
