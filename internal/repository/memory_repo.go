package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azhengyongqin/analysis-hub/internal/apperr"
	"github.com/azhengyongqin/analysis-hub/internal/model"
)

// MemoryTaskRepo 进程内任务仓储（测试、嵌入式使用）
type MemoryTaskRepo struct {
	mu    sync.RWMutex
	items map[string]Task   // key: id
	keys  map[string]string // key: event_id|task_type -> id
	now   func() time.Time
}

func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{
		items: map[string]Task{},
		keys:  map[string]string{},
		now:   time.Now,
	}
}

func pairKey(eventID string, taskType model.TaskType) string {
	return eventID + "|" + string(taskType)
}

func (s *MemoryTaskRepo) GetOrCreate(_ context.Context, eventID string, taskType model.TaskType) (Task, bool, error) {
	const op = "repository.GetOrCreate"

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return Task{}, false, apperr.Validation(op, "event_id 不能为空")
	}
	if !taskType.Valid() {
		return Task{}, false, apperr.Validation(op, "未知的 task type: %q", taskType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.keys[pairKey(eventID, taskType)]; ok {
		return s.items[id], false, nil
	}

	now := s.now()
	t := Task{
		ID:        uuid.NewString(),
		EventID:   eventID,
		TaskType:  taskType,
		Status:    model.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[t.ID] = t
	s.keys[pairKey(eventID, taskType)] = t.ID
	return t, true, nil
}

func (s *MemoryTaskRepo) Get(_ context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.items[id]
	if !ok {
		return Task{}, errTaskNotFound("repository.Get", id)
	}
	return t, nil
}

func (s *MemoryTaskRepo) UpdateStatus(_ context.Context, id string, upd StatusUpdate) error {
	const op = "repository.UpdateStatus"
	if upd.Status != "" && !upd.Status.Valid() {
		return apperr.Validation(op, "非法状态: %q", upd.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.items[id]
	if !ok {
		return errTaskNotFound(op, id)
	}
	s.items[id] = s.apply(t, upd)
	return nil
}

func (s *MemoryTaskRepo) Reset(_ context.Context, id, newRemoteJobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.items[id]
	if !ok {
		return errTaskNotFound("repository.Reset", id)
	}
	t.Status = model.TaskStatusPending
	t.Progress = 0
	t.ErrorDetail = ""
	t.RemoteJobID = newRemoteJobID
	t.UpdatedAt = s.now()
	s.items[id] = t
	return nil
}

func (s *MemoryTaskRepo) SetRemoteJob(_ context.Context, id, remoteJobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.items[id]
	if !ok {
		return errTaskNotFound("repository.SetRemoteJob", id)
	}
	t.Status = model.TaskStatusProcessing
	t.Progress = 0
	t.ErrorDetail = ""
	t.RemoteJobID = remoteJobID
	t.UpdatedAt = s.now()
	s.items[id] = t
	return nil
}

func (s *MemoryTaskRepo) ApplyRemoteStatus(_ context.Context, expected Task, upd StatusUpdate) (bool, error) {
	if upd.Status != "" && !upd.Status.Valid() {
		return false, apperr.Validation("repository.ApplyRemoteStatus", "非法状态: %q", upd.Status)
	}
	if !remoteAdvance(expected, upd) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.items[expected.ID]
	if !ok || t.RemoteJobID != expected.RemoteJobID || t.Status != expected.Status || t.Progress != expected.Progress {
		return false, nil
	}
	s.items[t.ID] = s.apply(t, upd)
	return true, nil
}

func (s *MemoryTaskRepo) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.items[id]
	if !ok {
		return false, nil
	}
	delete(s.items, id)
	delete(s.keys, pairKey(t.EventID, t.TaskType))
	return true, nil
}

func (s *MemoryTaskRepo) ListForEvent(_ context.Context, eventID string) ([]Task, error) {
	return s.filter(func(t Task) bool { return t.EventID == eventID }), nil
}

func (s *MemoryTaskRepo) ListByRemoteJobID(_ context.Context, remoteJobID string) ([]Task, error) {
	if remoteJobID == "" {
		return nil, nil
	}
	return s.filter(func(t Task) bool { return t.RemoteJobID == remoteJobID }), nil
}

func (s *MemoryTaskRepo) ListEvents(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	last := map[string]time.Time{}
	for _, t := range s.items {
		if t.UpdatedAt.After(last[t.EventID]) {
			last[t.EventID] = t.UpdatedAt
		}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(last))
	for ev := range last {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !last[out[i]].Equal(last[out[j]]) {
			return last[out[i]].After(last[out[j]])
		}
		return out[i] < out[j]
	})

	if n := normalizeLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemoryTaskRepo) apply(t Task, upd StatusUpdate) Task {
	if upd.Status != "" {
		t.Status = upd.Status
		if upd.Status != model.TaskStatusFailed {
			t.ErrorDetail = ""
		}
	}
	if upd.Progress != nil {
		t.Progress = ClampProgress(*upd.Progress)
	}
	if upd.ErrorDetail != nil && (upd.Status == "" || upd.Status == model.TaskStatusFailed) {
		t.ErrorDetail = *upd.ErrorDetail
	}
	t.UpdatedAt = s.now()
	return t
}

func (s *MemoryTaskRepo) filter(keep func(Task) bool) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0)
	for _, t := range s.items {
		if keep(t) {
			out = append(out, t)
		}
	}
	// 按创建时间排序，时间相同时按类型
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TaskType < out[j].TaskType
	})
	return out
}
