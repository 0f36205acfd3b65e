package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/analysis-hub/internal/apperr"
	"github.com/azhengyongqin/analysis-hub/internal/gateway"
	"github.com/azhengyongqin/analysis-hub/internal/model"
	"github.com/azhengyongqin/analysis-hub/internal/repository"
)

var ctx = context.Background()

func TestStartAndQuery_EndToEnd(t *testing.T) {
	repos := map[string]func(t *testing.T) *fixture{
		"sqlite": newFixture,
		"memory": func(t *testing.T) *fixture {
			return newFixtureWithRepo(t, repository.NewMemoryTaskRepo())
		},
	}

	for name, mk := range repos {
		t.Run(name, func(t *testing.T) {
			f := mk(t)

			res, err := f.svc.StartAnalysis(ctx, "E1", []model.TaskType{model.TaskTypeWatermark, model.TaskTypeFaceSearch})
			require.NoError(t, err)
			assert.ElementsMatch(t, []model.TaskType{model.TaskTypeWatermark, model.TaskTypeFaceSearch}, res.Submitted)
			require.Len(t, res.Tasks, 2)

			tasks := byType(res.Tasks)
			for _, task := range tasks {
				assert.Equal(t, model.TaskStatusProcessing, task.Status)
				assert.NotEmpty(t, task.RemoteJobID)
			}

			f.remote.setJob(tasks["watermark"].RemoteJobID, map[string]any{"state": "SUCCESS"})
			f.remote.setJob(tasks["face_search"].RemoteJobID, map[string]any{"state": "PROGRESS", "progress": 40})

			view, err := f.svc.QueryStatus(ctx, "E1", true)
			require.NoError(t, err)
			assert.Equal(t, model.TaskStatusProcessing, view.EventStatus)
			assert.Equal(t, 70, view.OverallProgress)

			got := byType(view.Tasks)
			assert.Equal(t, model.TaskStatusCompleted, got["watermark"].Status)
			assert.Equal(t, 100, got["watermark"].Progress)
			assert.Equal(t, model.TaskStatusProcessing, got["face_search"].Status)
			assert.Equal(t, 40, got["face_search"].Progress)
		})
	}
}

func TestStartAnalysis_ServiceDown(t *testing.T) {
	f := newFixture(t)
	f.remote.configure(func(r *fakeRemote) { r.down = true })

	res, err := f.svc.StartAnalysis(ctx, "E2", []model.TaskType{model.TaskTypeTimeline, model.TaskTypeRemoveExif})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstreamUnavailable))
	require.NotNil(t, res)
	assert.Len(t, res.Failed, 2)

	tasks, err := f.repo.ListForEvent(ctx, "E2")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, model.TaskStatusFailed, task.Status)
		assert.Contains(t, task.ErrorDetail, "unreachable")
	}
	assert.Equal(t, 0, f.remote.submitCount("timeline"))
}

func TestStartAnalysis_Rejected(t *testing.T) {
	f := newFixture(t)
	f.remote.configure(func(r *fakeRemote) { r.rejectMsg = "event has no photos" })

	_, err := f.svc.StartAnalysis(ctx, "E3", []model.TaskType{model.TaskTypeWatermark})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstreamRejected))

	tasks, err := f.repo.ListForEvent(ctx, "E3")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.TaskStatusFailed, tasks[0].Status)
	assert.Equal(t, "event has no photos", tasks[0].ErrorDetail)
}

func TestStartAnalysis_FailureKeepsCompleted(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.StartAnalysis(ctx, "E4", []model.TaskType{model.TaskTypeWatermark})
	require.NoError(t, err)
	f.remote.setJob(res.Tasks[0].RemoteJobID, map[string]any{"state": "SUCCESS"})
	_, err = f.svc.QueryStatus(ctx, "E4", true)
	require.NoError(t, err)

	f.remote.configure(func(r *fakeRemote) { r.down = true })
	_, err = f.svc.StartAnalysis(ctx, "E4", []model.TaskType{model.TaskTypeWatermark})
	require.Error(t, err)

	task, err := f.repo.Get(ctx, res.Tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
}

func TestStartAnalysis_MissingJobID(t *testing.T) {
	f := newFixture(t)
	f.remote.configure(func(r *fakeRemote) { r.omit["face_search"] = true })

	res, err := f.svc.StartAnalysis(ctx, "E5", []model.TaskType{model.TaskTypeWatermark, model.TaskTypeFaceSearch})
	require.NoError(t, err)
	assert.Equal(t, []model.TaskType{model.TaskTypeWatermark}, res.Submitted)
	assert.Equal(t, []model.TaskType{model.TaskTypeFaceSearch}, res.Failed)

	got := byType(res.Tasks)
	assert.Equal(t, model.TaskStatusFailed, got["face_search"].Status)
	assert.Equal(t, "no job id returned", got["face_search"].ErrorDetail)
	assert.Equal(t, model.TaskStatusProcessing, got["watermark"].Status)
}

func TestStartAnalysis_AlreadyRunning(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.StartAnalysis(ctx, "E6", []model.TaskType{model.TaskTypeTimeline})
	require.NoError(t, err)

	res, err := f.svc.StartAnalysis(ctx, "E6", []model.TaskType{model.TaskTypeTimeline, model.TaskTypeNumberSearch})
	require.NoError(t, err)
	assert.Equal(t, []model.TaskType{model.TaskTypeTimeline}, res.AlreadyRunning)
	assert.Equal(t, []model.TaskType{model.TaskTypeNumberSearch}, res.Submitted)
	assert.Equal(t, 1, f.remote.submitCount("timeline"))
}

func TestStartAnalysis_ConcurrentSubmitsOnce(t *testing.T) {
	f := newFixture(t)
	f.remote.configure(func(r *fakeRemote) { r.submitLag = 20 * time.Millisecond })

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.StartAnalysis(ctx, "E7", []model.TaskType{model.TaskTypeTimeline})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	tasks, err := f.repo.ListForEvent(ctx, "E7")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, 1, f.remote.submitCount("timeline"))
}

func TestStartAnalysis_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		eventID string
		types   []model.TaskType
	}{
		{"empty event", " ", []model.TaskType{model.TaskTypeTimeline}},
		{"no types", "E8", nil},
		{"unknown type", "E8", []model.TaskType{"colorize"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.StartAnalysis(ctx, tt.eventID, tt.types)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}

	tasks, err := f.repo.ListForEvent(ctx, "E8")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestQueryStatus(t *testing.T) {
	t.Run("no records", func(t *testing.T) {
		f := newFixture(t)
		view, err := f.svc.QueryStatus(ctx, "nothing", true)
		require.NoError(t, err)
		assert.Empty(t, view.Tasks)
		assert.Equal(t, model.TaskStatusPending, view.EventStatus)
		assert.Equal(t, 0, view.OverallProgress)
	})

	t.Run("progress never decreases", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.StartAnalysis(ctx, "Q1", []model.TaskType{model.TaskTypeFaceSearch})
		require.NoError(t, err)
		jobID := res.Tasks[0].RemoteJobID

		f.remote.setJob(jobID, map[string]any{"state": "PROGRESS", "progress": 60})
		view, err := f.svc.QueryStatus(ctx, "Q1", true)
		require.NoError(t, err)
		assert.Equal(t, 60, view.Tasks[0].Progress)

		f.remote.setJob(jobID, map[string]any{"state": "PROGRESS", "progress": 30})
		view, err = f.svc.QueryStatus(ctx, "Q1", true)
		require.NoError(t, err)
		assert.Equal(t, 60, view.Tasks[0].Progress)
	})

	t.Run("remote failure", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.StartAnalysis(ctx, "Q2", []model.TaskType{model.TaskTypeNumberSearch})
		require.NoError(t, err)

		f.remote.setJob(res.Tasks[0].RemoteJobID, map[string]any{
			"state": "FAILURE", "error": "model crashed", "error_type": "RuntimeError",
		})
		view, err := f.svc.QueryStatus(ctx, "Q2", true)
		require.NoError(t, err)
		assert.Equal(t, model.TaskStatusFailed, view.EventStatus)
		assert.Equal(t, "RuntimeError: model crashed", view.Tasks[0].ErrorDetail)
	})

	t.Run("refresh failure leaves record untouched", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.StartAnalysis(ctx, "Q3", []model.TaskType{model.TaskTypeTimeline})
		require.NoError(t, err)

		f.srv.Close()
		view, err := f.svc.QueryStatus(ctx, "Q3", true)
		require.NoError(t, err)
		assert.Equal(t, res.Tasks[0].Status, view.Tasks[0].Status)
		assert.Equal(t, res.Tasks[0].Progress, view.Tasks[0].Progress)
	})

	t.Run("without refresh does not call remote", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.StartAnalysis(ctx, "Q4", []model.TaskType{model.TaskTypeTimeline})
		require.NoError(t, err)

		f.remote.setJob(res.Tasks[0].RemoteJobID, map[string]any{"state": "SUCCESS"})
		view, err := f.svc.QueryStatus(ctx, "Q4", false)
		require.NoError(t, err)
		assert.Equal(t, model.TaskStatusProcessing, view.EventStatus)
	})

	t.Run("empty event id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.QueryStatus(ctx, "", false)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestQueryStatus_SharedJobUsesEventInfo(t *testing.T) {
	f := newFixture(t)
	f.remote.configure(func(r *fakeRemote) { r.legacy = true })

	res, err := f.svc.StartAnalysis(ctx, "L1", []model.TaskType{model.TaskTypeTimeline, model.TaskTypeWatermark})
	require.NoError(t, err)
	got := byType(res.Tasks)
	require.Equal(t, got["timeline"].RemoteJobID, got["watermark"].RemoteJobID)

	f.remote.setJob(got["timeline"].RemoteJobID, map[string]any{"state": "PROGRESS"})
	info := `{
		"photo_count": 4,
		"analyze_timeline": [
			{"photoId": "1", "status": "ready"},
			{"photoId": "2", "status": "ready"},
			{"photoId": "3", "status": "ready"},
			{"photoId": "4", "status": "error"}
		],
		"analyze_watermark": [
			{"photoId": "1", "status": "ready"},
			{"photoId": "2", "status": "processing"}
		]
	}`
	f.remote.configure(func(r *fakeRemote) { r.eventInfo = info })

	view, err := f.svc.QueryStatus(ctx, "L1", true)
	require.NoError(t, err)

	got = byType(view.Tasks)
	assert.Equal(t, model.TaskStatusCompleted, got["timeline"].Status)
	assert.Equal(t, 100, got["timeline"].Progress)
	assert.Equal(t, model.TaskStatusProcessing, got["watermark"].Status)
	assert.Equal(t, 25, got["watermark"].Progress)
	assert.Equal(t, model.TaskStatusProcessing, view.EventStatus)
	assert.Equal(t, 62, view.OverallProgress)
}

func TestRestartTask(t *testing.T) {
	t.Run("completed task goes back to pending", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.StartAnalysis(ctx, "R1", []model.TaskType{model.TaskTypeWatermark})
		require.NoError(t, err)
		old := res.Tasks[0]

		f.remote.setJob(old.RemoteJobID, map[string]any{"state": "SUCCESS"})
		_, err = f.svc.QueryStatus(ctx, "R1", true)
		require.NoError(t, err)

		task, err := f.svc.RestartTask(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, old.ID, task.ID)
		assert.Equal(t, model.TaskStatusPending, task.Status)
		assert.Equal(t, 0, task.Progress)
		assert.Empty(t, task.ErrorDetail)
		assert.NotEqual(t, old.RemoteJobID, task.RemoteJobID)
		assert.Equal(t, 2, f.remote.submitCount("watermark"))

		// 旧任务迟到的状态被丢弃
		n, err := f.svc.ApplyJobUpdate(ctx, old.RemoteJobID, gateway.JobStatus{State: "FAILURE", Error: "late"})
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		cur, err := f.repo.Get(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TaskStatusPending, cur.Status)
	})

	t.Run("submission failure marks failed", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.StartAnalysis(ctx, "R2", []model.TaskType{model.TaskTypeTimeline})
		require.NoError(t, err)

		f.remote.configure(func(r *fakeRemote) { r.rejectMsg = "quota exceeded" })
		task, err := f.svc.RestartTask(ctx, res.Tasks[0].ID)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindUpstreamRejected))
		require.NotNil(t, task)
		assert.Equal(t, model.TaskStatusFailed, task.Status)
		assert.Equal(t, "quota exceeded", task.ErrorDetail)
	})

	t.Run("unknown task", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.RestartTask(ctx, "missing")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestRestartAll(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.StartAnalysis(ctx, "RA", []model.TaskType{model.TaskTypeTimeline, model.TaskTypeWatermark})
	require.NoError(t, err)

	out, err := f.svc.RestartAll(ctx, "RA")
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, o := range out {
		assert.Empty(t, o.Error)
		require.NotNil(t, o.Task)
		assert.Equal(t, model.TaskStatusPending, o.Task.Status)
	}

	f.remote.configure(func(r *fakeRemote) { r.down = true })
	out, err = f.svc.RestartAll(ctx, "RA")
	require.NoError(t, err)
	for _, o := range out {
		assert.Equal(t, apperr.KindUpstreamUnavailable, o.Kind)
		assert.Equal(t, model.TaskStatusFailed, o.Task.Status)
	}

	out, err = f.svc.RestartAll(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.svc.DeleteTask(ctx, "does-not-exist"))

	res, err := f.svc.StartAnalysis(ctx, "D1", []model.TaskType{model.TaskTypeTimeline})
	require.NoError(t, err)
	task := res.Tasks[0]

	require.NoError(t, f.svc.DeleteTask(ctx, task.ID))
	require.NoError(t, f.svc.DeleteTask(ctx, task.ID))

	_, err = f.repo.Get(ctx, task.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	// 远程任务继续执行，推送的状态找不到记录
	n, err := f.svc.ApplyJobUpdate(ctx, task.RemoteJobID, gateway.JobStatus{State: "SUCCESS"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestApplyJobUpdate(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.StartAnalysis(ctx, "A1", []model.TaskType{model.TaskTypeFaceSearch})
	require.NoError(t, err)
	jobID := res.Tasks[0].RemoteJobID

	progress := 55.0
	n, err := f.svc.ApplyJobUpdate(ctx, jobID, gateway.JobStatus{State: "PROGRESS", Progress: &progress})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.ApplyJobUpdate(ctx, jobID, gateway.JobStatus{State: "SUCCESS"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	task, err := f.repo.Get(ctx, res.Tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)

	// 终态不会被后续推送改写
	n, err = f.svc.ApplyJobUpdate(ctx, jobID, gateway.JobStatus{State: "FAILURE"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = f.svc.ApplyJobUpdate(ctx, "", gateway.JobStatus{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestQueryStatus_CallbackDuringRefresh(t *testing.T) {
	for name, mk := range map[string]func(t *testing.T) *fixture{
		"sqlite": newFixture,
		"memory": func(t *testing.T) *fixture { return newFixtureWithRepo(t, repository.NewMemoryTaskRepo()) },
	} {
		t.Run(name, func(t *testing.T) {
			f := mk(t)
			res, err := f.svc.StartAnalysis(ctx, "C1", []model.TaskType{model.TaskTypeWatermark})
			require.NoError(t, err)
			jobID := res.Tasks[0].RemoteJobID

			// 刷新读到记录之后、写入之前，回调先把任务写成完成
			f.remote.setJob(jobID, map[string]any{"state": "PROGRESS", "progress": 60})
			var once sync.Once
			f.remote.configure(func(r *fakeRemote) {
				r.onJobGet = func(string) {
					once.Do(func() {
						n, err := f.svc.ApplyJobUpdate(ctx, jobID, gateway.JobStatus{State: "SUCCESS"})
						assert.NoError(t, err)
						assert.Equal(t, 1, n)
					})
				}
			})

			view, err := f.svc.QueryStatus(ctx, "C1", true)
			require.NoError(t, err)
			require.Len(t, view.Tasks, 1)
			assert.Equal(t, model.TaskStatusCompleted, view.Tasks[0].Status)
			assert.Equal(t, 100, view.Tasks[0].Progress)
			assert.Equal(t, model.TaskStatusCompleted, view.EventStatus)
		})
	}
}

func TestApplyRemote_StaleSnapshotKeepsProgress(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.StartAnalysis(ctx, "C2", []model.TaskType{model.TaskTypeFaceSearch})
	require.NoError(t, err)
	snapshot := res.Tasks[0]

	p70 := 70.0
	n, err := f.svc.ApplyJobUpdate(ctx, snapshot.RemoteJobID, gateway.JobStatus{State: "PROGRESS", Progress: &p70})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// 较早发起的刷新带着旧快照写入 50
	assert.False(t, f.svc.applyRemote(ctx, snapshot, remoteUpdate{status: model.TaskStatusProcessing, progress: 50}))

	got, err := f.repo.Get(ctx, snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusProcessing, got.Status)
	assert.Equal(t, 70, got.Progress)

	// 旧快照但进度更高：按最新记录重新计算后写入
	assert.True(t, f.svc.applyRemote(ctx, snapshot, remoteUpdate{status: model.TaskStatusProcessing, progress: 85}))
	got, err = f.repo.Get(ctx, snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, 85, got.Progress)
}

func TestApplyJobUpdate_EventInfoPerEvent(t *testing.T) {
	repo := repository.NewMemoryTaskRepo()
	f := newFixtureWithRepo(t, repo)

	// 同一个远程任务关联到两个活动
	var ids []string
	for _, ev := range []string{"P1", "P2"} {
		task, _, err := repo.GetOrCreate(ctx, ev, model.TaskTypeTimeline)
		require.NoError(t, err)
		require.NoError(t, repo.SetRemoteJob(ctx, task.ID, "job-shared"))
		ids = append(ids, task.ID)
	}

	f.remote.configure(func(r *fakeRemote) {
		r.infoByEvent = map[string]string{
			"P1": `{"photo_count": 2, "analyze_timeline": [{"photoId": "1", "status": "ready"}]}`,
			"P2": `{"photo_count": 2, "analyze_timeline": [{"photoId": "1", "status": "ready"}, {"photoId": "2", "status": "ready"}]}`,
		}
	})

	n, err := f.svc.ApplyJobUpdate(ctx, "job-shared", gateway.JobStatus{State: "PROGRESS"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p1, err := repo.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusProcessing, p1.Status)
	assert.Equal(t, 50, p1.Progress)

	p2, err := repo.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, p2.Status)
	assert.Equal(t, 100, p2.Progress)
}

func TestTaskLog(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.StartAnalysis(ctx, "T1", []model.TaskType{model.TaskTypeWatermark})
	require.NoError(t, err)

	f.remote.setJob(res.Tasks[0].RemoteJobID, map[string]any{"state": "PROGRESS", "current": 1, "total": 2})
	f.remote.configure(func(r *fakeRemote) { r.eventInfo = `{"photo_count": 2, "analyze_watermark": [{"photoId": "1", "status": "ready"}]}` })

	log, err := f.svc.TaskLog(ctx, res.Tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, res.Tasks[0].ID, log.Task.ID)
	require.NotNil(t, log.Remote)
	assert.Equal(t, "PROGRESS", log.Remote.RemoteState())
	require.NotNil(t, log.Section)
	assert.Equal(t, 1, log.Section.Ready)
	assert.Equal(t, 50, log.Section.Percent)

	_, err = f.svc.TaskLog(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListEvents(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.StartAnalysis(ctx, "LE1", []model.TaskType{model.TaskTypeTimeline})
	require.NoError(t, err)
	_, err = f.svc.StartAnalysis(ctx, "LE2", []model.TaskType{model.TaskTypeWatermark, model.TaskTypeFaceSearch})
	require.NoError(t, err)

	views, err := f.svc.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, views, 2)

	ids := []string{views[0].EventID, views[1].EventID}
	assert.ElementsMatch(t, []string{"LE1", "LE2"}, ids)
	for _, v := range views {
		assert.Equal(t, model.TaskStatusProcessing, v.EventStatus)
	}
}
