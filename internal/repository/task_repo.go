package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/azhengyongqin/analysis-hub/internal/apperr"
	"github.com/azhengyongqin/analysis-hub/internal/model"
)

// pgUniqueViolation PostgreSQL unique_violation
const pgUniqueViolation = "23505"

// TaskRepo 基于 GORM 的任务仓储（PostgreSQL / SQLite）
type TaskRepo struct {
	db *gorm.DB
}

func NewTaskRepo(db *gorm.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) GetOrCreate(ctx context.Context, eventID string, taskType model.TaskType) (Task, bool, error) {
	const op = "repository.GetOrCreate"

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return Task{}, false, apperr.Validation(op, "event_id 不能为空")
	}
	if !taskType.Valid() {
		return Task{}, false, apperr.Validation(op, "未知的 task type: %q", taskType)
	}

	m := TaskToModel(Task{
		ID:       uuid.NewString(),
		EventID:  eventID,
		TaskType: taskType,
		Status:   model.TaskStatusPending,
	})

	// insert ... on conflict (event_id, task_type) do nothing
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "task_type"}},
			DoNothing: true,
		}).
		Create(&m)

	created := false
	switch {
	case res.Error == nil:
		created = res.RowsAffected == 1
	case isUniqueViolation(res.Error):
		// 并发插入的另一方赢了，下面读它的记录
	default:
		return Task{}, false, apperr.Internal(op, res.Error)
	}

	var out TaskModel
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND task_type = ?", eventID, string(taskType)).
		First(&out).Error
	if err != nil {
		return Task{}, false, apperr.Internal(op, err)
	}
	return out.ToTask(), created, nil
}

func (r *TaskRepo) Get(ctx context.Context, id string) (Task, error) {
	const op = "repository.Get"

	var m TaskModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Task{}, errTaskNotFound(op, id)
	}
	if err != nil {
		return Task{}, apperr.Internal(op, err)
	}
	return m.ToTask(), nil
}

func (r *TaskRepo) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error {
	const op = "repository.UpdateStatus"

	if upd.Status != "" && !upd.Status.Valid() {
		return apperr.Validation(op, "非法状态: %q", upd.Status)
	}

	res := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ?", id).
		Updates(updateColumns(upd))
	if res.Error != nil {
		return apperr.Internal(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return errTaskNotFound(op, id)
	}
	return nil
}

func (r *TaskRepo) Reset(ctx context.Context, id, newRemoteJobID string) error {
	const op = "repository.Reset"

	res := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        string(model.TaskStatusPending),
			"progress":      0,
			"error_detail":  nil,
			"remote_job_id": nullable(newRemoteJobID),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return apperr.Internal(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return errTaskNotFound(op, id)
	}
	return nil
}

func (r *TaskRepo) SetRemoteJob(ctx context.Context, id, remoteJobID string) error {
	const op = "repository.SetRemoteJob"

	res := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        string(model.TaskStatusProcessing),
			"progress":      0,
			"error_detail":  nil,
			"remote_job_id": nullable(remoteJobID),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return apperr.Internal(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return errTaskNotFound(op, id)
	}
	return nil
}

func (r *TaskRepo) ApplyRemoteStatus(ctx context.Context, expected Task, upd StatusUpdate) (bool, error) {
	const op = "repository.ApplyRemoteStatus"

	if upd.Status != "" && !upd.Status.Valid() {
		return false, apperr.Validation(op, "非法状态: %q", upd.Status)
	}
	if !remoteAdvance(expected, upd) {
		return false, nil
	}

	// 快照之后有其他写入（回调、另一次刷新、重启）时条件不成立，不覆盖
	res := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ? AND remote_job_id = ? AND status = ? AND progress = ?",
			expected.ID, expected.RemoteJobID, string(expected.Status), expected.Progress).
		Updates(updateColumns(upd))
	if res.Error != nil {
		return false, apperr.Internal(op, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&TaskModel{})
	if res.Error != nil {
		return false, apperr.Internal("repository.Delete", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *TaskRepo) ListForEvent(ctx context.Context, eventID string) ([]Task, error) {
	var ms []TaskModel
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Order("task_type ASC").
		Find(&ms).Error
	if err != nil {
		return nil, apperr.Internal("repository.ListForEvent", err)
	}
	return toTasks(ms), nil
}

func (r *TaskRepo) ListByRemoteJobID(ctx context.Context, remoteJobID string) ([]Task, error) {
	if remoteJobID == "" {
		return nil, nil
	}
	var ms []TaskModel
	err := r.db.WithContext(ctx).
		Where("remote_job_id = ?", remoteJobID).
		Order("created_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, apperr.Internal("repository.ListByRemoteJobID", err)
	}
	return toTasks(ms), nil
}

func (r *TaskRepo) ListEvents(ctx context.Context, limit int) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Group("event_id").
		Order("MAX(updated_at) DESC").
		Limit(normalizeLimit(limit)).
		Pluck("event_id", &out).Error
	if err != nil {
		return nil, apperr.Internal("repository.ListEvents", err)
	}
	return out, nil
}

// updateColumns StatusUpdate -> 列
func updateColumns(upd StatusUpdate) map[string]any {
	cols := map[string]any{"updated_at": time.Now()}
	if upd.Status != "" {
		cols["status"] = string(upd.Status)
		if upd.Status != model.TaskStatusFailed {
			cols["error_detail"] = nil
		}
	}
	if upd.Progress != nil {
		cols["progress"] = ClampProgress(*upd.Progress)
	}
	if upd.ErrorDetail != nil && (upd.Status == "" || upd.Status == model.TaskStatusFailed) {
		cols["error_detail"] = nullable(*upd.ErrorDetail)
	}
	return cols
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toTasks(ms []TaskModel) []Task {
	out := make([]Task, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].ToTask())
	}
	return out
}

// isUniqueViolation 兼容 TranslateError 后的 gorm 错误和原始 pgconn 错误
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
