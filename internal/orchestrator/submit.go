package orchestrator

import (
	"context"
	"strings"

	"github.com/azhengyongqin/analysis-hub/internal/apperr"
	"github.com/azhengyongqin/analysis-hub/internal/logger"
	"github.com/azhengyongqin/analysis-hub/internal/model"
	"github.com/azhengyongqin/analysis-hub/internal/repository"
)

const noJobIDDetail = "no job id returned"

// StartResult 一次提交的结果
type StartResult struct {
	EventID string `json:"event_id"`
	// Tasks 本次请求的各类型记录（最新状态）
	Tasks          []repository.Task `json:"tasks"`
	Submitted      []model.TaskType  `json:"submitted"`
	AlreadyRunning []model.TaskType  `json:"already_running"`
	Failed         []model.TaskType  `json:"failed"`
}

// StartAnalysis 为活动启动一组分析。
//
// 先为每个类型 GetOrCreate 记录，再逐个加提交锁；锁被占用或记录已在 processing 的类型
// 记为 already_running，不再提交。其余类型合并为一次远程调用。
// 远程调用失败时，本次提交的未完成记录置为 failed，错误与部分结果一起返回。
func (s *Service) StartAnalysis(ctx context.Context, eventID string, types []model.TaskType) (res *StartResult, err error) {
	const op = "orchestrator.StartAnalysis"
	defer func() { record("start_analysis", err) }()

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, apperr.Validation(op, "event_id 不能为空")
	}
	types, err = normalizeTypes(op, types)
	if err != nil {
		return nil, err
	}

	log := logger.WithEvent(s.log, eventID)

	tasks := make(map[model.TaskType]repository.Task, len(types))
	for _, t := range types {
		task, created, err := s.repo.GetOrCreate(ctx, eventID, t)
		if err != nil {
			return nil, err
		}
		if created {
			log.Debug().Str("task_type", string(t)).Str("task_id", task.ID).Msg("创建任务记录")
		}
		tasks[t] = task
	}

	res = &StartResult{EventID: eventID}

	// 按固定顺序加锁
	var submit []model.TaskType
	for _, t := range types {
		if tasks[t].Status == model.TaskStatusProcessing {
			res.AlreadyRunning = append(res.AlreadyRunning, t)
			continue
		}
		lease, err := s.lock(ctx, eventID, t)
		if isLocked(err) {
			res.AlreadyRunning = append(res.AlreadyRunning, t)
			continue
		}
		if err != nil {
			return nil, apperr.Internal(op, err)
		}
		defer s.unlock(ctx, lease)

		// 拿到锁之后再确认一次，另一个请求可能刚提交完
		fresh, err := s.repo.Get(ctx, tasks[t].ID)
		if err != nil {
			return nil, err
		}
		tasks[t] = fresh
		if fresh.Status == model.TaskStatusProcessing {
			res.AlreadyRunning = append(res.AlreadyRunning, t)
			continue
		}
		submit = append(submit, t)
	}

	if len(submit) > 0 {
		err = s.submit(ctx, eventID, submit, tasks, res)
		if err == nil {
			s.scheduleRefresh(ctx, eventID)
		}
	}

	if loadErr := s.loadTasks(ctx, res, types); loadErr != nil && err == nil {
		return nil, loadErr
	}
	if err != nil {
		log.Warn().Err(err).Strs("task_types", typeStrings(submit)).Msg("提交分析失败")
		return res, err
	}
	log.Info().
		Strs("submitted", typeStrings(res.Submitted)).
		Strs("already_running", typeStrings(res.AlreadyRunning)).
		Msg("分析已提交")
	return res, nil
}

// submit 一次远程调用提交所有类型，并把结果写回记录
func (s *Service) submit(ctx context.Context, eventID string, submit []model.TaskType, tasks map[model.TaskType]repository.Task, res *StartResult) error {
	out, err := s.gw.StartAnalysis(ctx, eventID, submit)
	if err != nil {
		detail := apperr.DetailOf(err)
		for _, t := range submit {
			// 已完成的结果保留
			if tasks[t].Status == model.TaskStatusCompleted {
				continue
			}
			s.markFailed(ctx, tasks[t], detail)
			res.Failed = append(res.Failed, t)
		}
		return err
	}

	for _, t := range submit {
		jobID := out.JobIDs[t]
		if jobID == "" {
			s.markFailed(ctx, tasks[t], noJobIDDetail)
			res.Failed = append(res.Failed, t)
			continue
		}
		if err := s.repo.SetRemoteJob(ctx, tasks[t].ID, jobID); err != nil {
			return err
		}
		recordTransition(t, model.TaskStatusProcessing)
		res.Submitted = append(res.Submitted, t)
	}
	return nil
}

func (s *Service) loadTasks(ctx context.Context, res *StartResult, types []model.TaskType) error {
	all, err := s.repo.ListForEvent(ctx, res.EventID)
	if err != nil {
		return err
	}
	want := make(map[model.TaskType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	res.Tasks = make([]repository.Task, 0, len(types))
	for _, task := range all {
		if want[task.TaskType] {
			res.Tasks = append(res.Tasks, task)
		}
	}
	return nil
}

// RestartOutcome 批量重启中单个类型的结果
type RestartOutcome struct {
	Task  *repository.Task `json:"task,omitempty"`
	Error string           `json:"error,omitempty"`
	Kind  apperr.Kind      `json:"kind,omitempty"`
}

// RestartTask 重启单个任务：提交新的远程任务，成功后记录回到 pending、进度 0、关联新的任务 ID。
// 提交失败时记录置为 failed 并返回错误。
func (s *Service) RestartTask(ctx context.Context, taskID string) (task *repository.Task, err error) {
	defer func() { record("restart_task", err) }()

	cur, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task, err = s.restart(ctx, cur)
	if err == nil {
		s.scheduleRefresh(ctx, cur.EventID)
	}
	return task, err
}

// RestartAll 重启活动下的所有任务；单个类型失败记录在结果里，只有存储错误会让整个调用失败
func (s *Service) RestartAll(ctx context.Context, eventID string) (out map[model.TaskType]RestartOutcome, err error) {
	const op = "orchestrator.RestartAll"
	defer func() { record("restart_all", err) }()

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, apperr.Validation(op, "event_id 不能为空")
	}

	tasks, err := s.repo.ListForEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	out = make(map[model.TaskType]RestartOutcome, len(tasks))
	for _, cur := range tasks {
		task, rerr := s.restart(ctx, cur)
		if rerr != nil {
			if apperr.Is(rerr, apperr.KindInternal) {
				return nil, rerr
			}
			out[cur.TaskType] = RestartOutcome{Task: task, Error: apperr.DetailOf(rerr), Kind: apperr.KindOf(rerr)}
			continue
		}
		out[cur.TaskType] = RestartOutcome{Task: task}
	}
	if len(tasks) > 0 {
		s.scheduleRefresh(ctx, eventID)
	}
	return out, nil
}

func (s *Service) restart(ctx context.Context, cur repository.Task) (*repository.Task, error) {
	const op = "orchestrator.Restart"

	log := logger.WithTask(s.log, cur.ID, cur.EventID, string(cur.TaskType))

	lease, err := s.lock(ctx, cur.EventID, cur.TaskType)
	if isLocked(err) {
		return &cur, &apperr.Error{
			Kind:     apperr.KindConflict,
			Op:       op,
			EventID:  cur.EventID,
			TaskType: string(cur.TaskType),
			TaskID:   cur.ID,
			Detail:   "该分析正在提交中",
		}
	}
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	defer s.unlock(ctx, lease)

	out, err := s.gw.StartAnalysis(ctx, cur.EventID, []model.TaskType{cur.TaskType})
	if err == nil && out.JobIDs[cur.TaskType] == "" {
		err = &apperr.Error{
			Kind:     apperr.KindUpstreamRejected,
			Op:       op,
			EventID:  cur.EventID,
			TaskType: string(cur.TaskType),
			Detail:   noJobIDDetail,
		}
	}
	if err != nil {
		s.markFailed(ctx, cur, apperr.DetailOf(err))
		log.Warn().Err(err).Msg("重启提交失败")
		task, gerr := s.repo.Get(ctx, cur.ID)
		if gerr != nil {
			return nil, err
		}
		return &task, err
	}

	jobID := out.JobIDs[cur.TaskType]
	if err := s.repo.Reset(ctx, cur.ID, jobID); err != nil {
		return nil, err
	}
	recordTransition(cur.TaskType, model.TaskStatusPending)
	log.Info().Str("remote_job_id", jobID).Msg("任务已重启")

	task, err := s.repo.Get(ctx, cur.ID)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// normalizeTypes 校验、去重、排序
func normalizeTypes(op string, types []model.TaskType) ([]model.TaskType, error) {
	raw := make([]string, 0, len(types))
	for _, t := range types {
		raw = append(raw, string(t))
	}
	out, err := model.ParseTaskTypes(raw)
	if err != nil {
		return nil, apperr.Validation(op, "%s", err.Error())
	}
	return out, nil
}

func typeStrings(types []model.TaskType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}
