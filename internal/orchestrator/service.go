// Package orchestrator 编排分析任务：提交、查询、重启、删除。
//
// 所有操作都是同步的，只在调用远程分析服务时挂起；任务状态只经由 TaskRepository 读写。
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/azhengyongqin/analysis-hub/internal/apperr"
	"github.com/azhengyongqin/analysis-hub/internal/cache"
	"github.com/azhengyongqin/analysis-hub/internal/gateway"
	"github.com/azhengyongqin/analysis-hub/internal/logger"
	"github.com/azhengyongqin/analysis-hub/internal/metrics"
	"github.com/azhengyongqin/analysis-hub/internal/model"
	"github.com/azhengyongqin/analysis-hub/internal/repository"
)

// DefaultLockTTL 提交锁的默认有效期，覆盖一次提交的最长超时
const DefaultLockTTL = 6 * time.Minute

// Gateway 远程分析服务（*gateway.Client 实现）
type Gateway interface {
	HealthCheck(ctx context.Context) bool
	StartAnalysis(ctx context.Context, eventID string, types []model.TaskType) (*gateway.SubmitResult, error)
	GetJobStatus(ctx context.Context, remoteJobID string) (*gateway.JobStatus, error)
	GetEventInfo(ctx context.Context, eventID string) (*gateway.EventInfo, bool)
}

// RefreshScheduler 安排一次后台进度刷新（asynq 实现，可为空）
type RefreshScheduler interface {
	ScheduleRefresh(ctx context.Context, eventID string) error
}

// Options 可选依赖
type Options struct {
	Logger    zerolog.Logger
	Scheduler RefreshScheduler
	LockTTL   time.Duration
}

// Service 编排服务
type Service struct {
	repo      repository.TaskRepository
	gw        Gateway
	locker    cache.Locker
	scheduler RefreshScheduler
	lockTTL   time.Duration
	log       zerolog.Logger
}

// New 创建编排服务；locker 为空时使用进程内锁
func New(repo repository.TaskRepository, gw Gateway, locker cache.Locker, opts Options) *Service {
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Service{
		repo:      repo,
		gw:        gw,
		locker:    locker,
		scheduler: opts.Scheduler,
		lockTTL:   ttl,
		log:       opts.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// lock 获取 (event, type) 的提交锁；已被持有返回 cache.ErrLocked
func (s *Service) lock(ctx context.Context, eventID string, t model.TaskType) (cache.Lease, error) {
	return s.locker.TryLock(ctx, cache.SubmitLockKey(eventID, string(t)), s.lockTTL)
}

// unlock 释放锁，不受请求取消影响
func (s *Service) unlock(ctx context.Context, lease cache.Lease) {
	if lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := lease.Unlock(ctx); err != nil {
		s.log.Warn().Err(err).Msg("释放提交锁失败")
	}
}

func (s *Service) scheduleRefresh(ctx context.Context, eventID string) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.ScheduleRefresh(ctx, eventID); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("安排后台刷新失败")
	}
}

// markFailed 提交失败后把记录置为 failed
func (s *Service) markFailed(ctx context.Context, task repository.Task, detail string) {
	failed := model.TaskStatusFailed
	if err := s.repo.UpdateStatus(ctx, task.ID, repository.StatusUpdate{
		Status:      failed,
		ErrorDetail: &detail,
	}); err != nil {
		log := logger.WithTask(s.log, task.ID, task.EventID, string(task.TaskType))
		log.Error().Err(err).Msg("写入失败状态失败")
		return
	}
	metrics.RecordTransition(string(task.TaskType), string(failed))
}

// record 记录操作结果指标
func record(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
	}
	metrics.RecordOperation(op, result)
}

func isLocked(err error) bool {
	return errors.Is(err, cache.ErrLocked)
}
