package orchestrator

import (
	"context"
	"strings"

	"github.com/azhengyongqin/analysis-hub/internal/aggregator"
	"github.com/azhengyongqin/analysis-hub/internal/apperr"
	"github.com/azhengyongqin/analysis-hub/internal/gateway"
	"github.com/azhengyongqin/analysis-hub/internal/logger"
	"github.com/azhengyongqin/analysis-hub/internal/metrics"
	"github.com/azhengyongqin/analysis-hub/internal/model"
	"github.com/azhengyongqin/analysis-hub/internal/repository"
)

// QueryStatus 返回活动的分析视图。
//
// refresh 为 true 时先向远程服务刷新所有 pending/processing 且已关联远程任务的记录；
// 单条刷新失败只记日志，记录保持原样。
func (s *Service) QueryStatus(ctx context.Context, eventID string, refresh bool) (view *aggregator.EventView, err error) {
	const op = "orchestrator.QueryStatus"
	defer func() { record("query_status", err) }()

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, apperr.Validation(op, "event_id 不能为空")
	}

	tasks, err := s.repo.ListForEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	// 刷新期间回调也可能写入，轮询过就重读
	if refresh && s.refreshTasks(ctx, eventID, tasks) > 0 {
		if tasks, err = s.repo.ListForEvent(ctx, eventID); err != nil {
			return nil, err
		}
	}

	v := aggregator.Build(eventID, tasks)
	return &v, nil
}

// remoteUpdate 一条记录的远程状态
type remoteUpdate struct {
	status   model.TaskStatus
	progress int
	detail   string
}

// refreshTasks 刷新活跃记录，返回轮询过的远程任务数
func (s *Service) refreshTasks(ctx context.Context, eventID string, tasks []repository.Task) int {
	log := logger.WithEvent(s.log, eventID)

	// 按远程任务 ID 分组；旧版服务一个任务覆盖整批类型
	groups := map[string][]repository.Task{}
	var order []string
	for _, t := range tasks {
		if !t.Status.Active() || t.RemoteJobID == "" {
			continue
		}
		if _, ok := groups[t.RemoteJobID]; !ok {
			order = append(order, t.RemoteJobID)
		}
		groups[t.RemoteJobID] = append(groups[t.RemoteJobID], t)
	}

	var (
		info       *gateway.EventInfo
		infoLoaded bool
		infoOK     bool
	)
	loadInfo := func() (*gateway.EventInfo, bool) {
		if !infoLoaded {
			info, infoOK = s.gw.GetEventInfo(ctx, eventID)
			infoLoaded = true
		}
		return info, infoOK
	}

	for _, jobID := range order {
		group := groups[jobID]

		js, err := s.gw.GetJobStatus(ctx, jobID)
		if err != nil {
			log.Debug().Err(err).Str("remote_job_id", jobID).Msg("刷新远程状态失败，保留原记录")
			js = nil
		}

		for _, t := range group {
			var (
				upd remoteUpdate
				ok  bool
			)
			if len(group) > 1 {
				ei, eiOK := loadInfo()
				upd, ok = sharedJobUpdate(t.TaskType, js, ei, eiOK)
			} else if js != nil {
				upd, ok = jobUpdate(js), true
			}
			if !ok {
				continue
			}
			s.applyRemote(ctx, t, upd)
		}
	}
	return len(order)
}

// jobUpdate 单个远程任务的状态映射
func jobUpdate(js *gateway.JobStatus) remoteUpdate {
	status, progress := js.Normalized()
	u := remoteUpdate{status: status, progress: progress}
	if status == model.TaskStatusFailed {
		u.detail = js.ErrorDetail()
	}
	return u
}

// sharedJobUpdate 多个类型共用一个远程任务时，各类型的进度取自 event_info
func sharedJobUpdate(t model.TaskType, js *gateway.JobStatus, info *gateway.EventInfo, infoOK bool) (remoteUpdate, bool) {
	if js != nil {
		if u := jobUpdate(js); u.status == model.TaskStatusFailed {
			return u, true
		}
	}
	if infoOK {
		sp := info.Progress(t)
		u := remoteUpdate{status: sp.Status, progress: sp.Percent}
		if sp.Status == model.TaskStatusCompleted {
			u.progress = 100
		}
		if js != nil {
			if st, _ := js.Normalized(); st == model.TaskStatusCompleted {
				u.status, u.progress = model.TaskStatusCompleted, 100
			}
		}
		return u, true
	}
	if js != nil {
		return jobUpdate(js), true
	}
	return remoteUpdate{}, false
}

// casAttempts 条件写入冲突后重读记录的次数
const casAttempts = 3

// remoteStatusUpdate 以记录当前状态为基准计算要写入的内容；不合法的回退（例如 processing -> pending）忽略，
// processing 期间进度不减。无变化时返回 false。
func remoteStatusUpdate(t repository.Task, u remoteUpdate) (repository.StatusUpdate, bool) {
	status := u.status
	if !t.Status.CanTransition(status) {
		status = t.Status
	}
	progress := repository.ClampProgress(u.progress)
	if status == model.TaskStatusProcessing && progress < t.Progress {
		progress = t.Progress
	}
	if status == model.TaskStatusCompleted {
		progress = 100
	}
	if status == t.Status && progress == t.Progress && (status != model.TaskStatusFailed || u.detail == t.ErrorDetail) {
		return repository.StatusUpdate{}, false
	}

	upd := repository.StatusUpdate{Status: status, Progress: &progress}
	if status == model.TaskStatusFailed {
		detail := u.detail
		upd.ErrorDetail = &detail
	}
	return upd, true
}

// applyRemote 以 t 为快照条件写入远程状态。快照过期（其他刷新或回调先写了）时重读记录，
// 在最新状态上重新计算；记录被重启、删除时丢弃。返回是否写入。
func (s *Service) applyRemote(ctx context.Context, t repository.Task, u remoteUpdate) bool {
	log := logger.WithTask(s.log, t.ID, t.EventID, string(t.TaskType))
	jobID := t.RemoteJobID

	for attempt := 0; attempt < casAttempts; attempt++ {
		upd, changed := remoteStatusUpdate(t, u)
		if !changed {
			return false
		}

		ok, err := s.repo.ApplyRemoteStatus(ctx, t, upd)
		if err != nil {
			log.Warn().Err(err).Msg("写入远程状态失败")
			return false
		}
		if ok {
			if upd.Status != t.Status {
				recordTransition(t.TaskType, upd.Status)
			}
			return true
		}

		fresh, err := s.repo.Get(ctx, t.ID)
		if err != nil || fresh.RemoteJobID != jobID {
			// 记录已被重启或删除，旧任务的状态丢弃
			log.Debug().Str("remote_job_id", jobID).Msg("忽略过期的远程状态")
			return false
		}
		t = fresh
	}

	log.Warn().Str("remote_job_id", jobID).Msg("远程状态写入冲突，放弃本次更新")
	return false
}

// ApplyJobUpdate 处理远程服务推送的任务状态，只更新仍关联该任务 ID 的记录，返回更新条数。
// 未知的任务 ID 直接忽略。
func (s *Service) ApplyJobUpdate(ctx context.Context, remoteJobID string, js gateway.JobStatus) (n int, err error) {
	const op = "orchestrator.ApplyJobUpdate"
	defer func() { record("apply_job_update", err) }()

	remoteJobID = strings.TrimSpace(remoteJobID)
	if remoteJobID == "" {
		return 0, apperr.Validation(op, "remote_job_id 不能为空")
	}

	tasks, err := s.repo.ListByRemoteJobID(ctx, remoteJobID)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		s.log.Debug().Str("remote_job_id", remoteJobID).Msg("未关联任何记录的远程任务")
		return 0, nil
	}

	// event_info 按活动加载，同一个远程任务理论上可能关联多个活动
	type eventInfo struct {
		info *gateway.EventInfo
		ok   bool
	}
	infos := map[string]eventInfo{}
	shared := len(tasks) > 1

	for _, t := range tasks {
		u := jobUpdate(&js)
		if shared {
			ei, loaded := infos[t.EventID]
			if !loaded {
				ei.info, ei.ok = s.gw.GetEventInfo(ctx, t.EventID)
				infos[t.EventID] = ei
			}
			u, _ = sharedJobUpdate(t.TaskType, &js, ei.info, ei.ok)
		}
		if s.applyRemote(ctx, t, u) {
			n++
		}
	}
	return n, nil
}

// TaskLog 单个任务的诊断信息
type TaskLog struct {
	Task repository.Task `json:"task"`
	// Remote 远程任务的实时状态（尽力而为）
	Remote      *gateway.JobStatus `json:"remote,omitempty"`
	RemoteError string             `json:"remote_error,omitempty"`
	// Section event_info 中该类型的处理统计
	Section *gateway.SectionProgress `json:"section,omitempty"`
}

// TaskLog 返回任务记录以及远程状态、event_info 统计；远程部分失败不影响结果
func (s *Service) TaskLog(ctx context.Context, taskID string) (out *TaskLog, err error) {
	defer func() { record("task_log", err) }()

	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	out = &TaskLog{Task: task}
	if task.RemoteJobID != "" {
		js, err := s.gw.GetJobStatus(ctx, task.RemoteJobID)
		if err != nil {
			out.RemoteError = apperr.DetailOf(err)
		} else {
			out.Remote = js
		}
	}
	if info, ok := s.gw.GetEventInfo(ctx, task.EventID); ok {
		sp := info.Progress(task.TaskType)
		out.Section = &sp
	}
	return out, nil
}

// ListEvents 最近有任务的活动及其聚合状态
func (s *Service) ListEvents(ctx context.Context, limit int) (out []aggregator.EventView, err error) {
	defer func() { record("list_events", err) }()

	ids, err := s.repo.ListEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	out = make([]aggregator.EventView, 0, len(ids))
	for _, id := range ids {
		tasks, err := s.repo.ListForEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, aggregator.Build(id, tasks))
	}
	return out, nil
}

// DeleteTask 删除任务记录，不存在时也返回成功。
//
// 远程任务不会被取消：它可能继续执行，之后到达的状态因为找不到关联记录而被丢弃。
func (s *Service) DeleteTask(ctx context.Context, taskID string) (err error) {
	defer func() { record("delete_task", err) }()

	deleted, err := s.repo.Delete(ctx, taskID)
	if err != nil {
		return err
	}
	if deleted {
		s.log.Info().Str("task_id", taskID).Msg("任务记录已删除")
	}
	return nil
}

func recordTransition(t model.TaskType, status model.TaskStatus) {
	metrics.RecordTransition(string(t), string(status))
}
