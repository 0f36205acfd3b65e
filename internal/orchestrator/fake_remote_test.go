package orchestrator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/azhengyongqin/analysis-hub/internal/cache"
	"github.com/azhengyongqin/analysis-hub/internal/gateway"
	"github.com/azhengyongqin/analysis-hub/internal/repository"
	"github.com/azhengyongqin/analysis-hub/internal/retry"
	"github.com/azhengyongqin/analysis-hub/internal/testutil"
)

// fakeRemote 模拟远程分析服务
type fakeRemote struct {
	mu sync.Mutex

	down      bool
	legacy    bool            // 只返回单个 task_id
	omit      map[string]bool // 响应中缺失的类型
	rejectMsg string          // 非空时 start-analysis 返回 422
	submitLag time.Duration
	onJobGet  func(id string) // 查询任务状态时、响应之前调用

	seq       int
	submits   map[string]int
	jobs      map[string]map[string]any
	eventInfo string
	// 按活动覆盖 eventInfo
	infoByEvent map[string]string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		omit:    map[string]bool{},
		submits: map[string]int{},
		jobs:    map[string]map[string]any{},
	}
}

// configure 在锁内修改假服务的行为
func (f *fakeRemote) configure(fn func(r *fakeRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeRemote) setJob(id string, body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id] = body
}

func (f *fakeRemote) submitCount(t string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits[t]
}

func (f *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		down := f.down
		f.mu.Unlock()
		if down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("POST /api/v1/events/{event_id}/start-analysis", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Analyses []string `json:"analyses"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		lag := f.submitLag
		f.mu.Unlock()
		if lag > 0 {
			time.Sleep(lag)
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		if f.rejectMsg != "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprintf(w, `{"detail":%q}`, f.rejectMsg)
			return
		}

		for _, a := range req.Analyses {
			f.submits[a]++
		}
		if f.legacy {
			f.seq++
			id := fmt.Sprintf("job-%d", f.seq)
			f.jobs[id] = map[string]any{"task_id": id, "state": "PENDING"}
			json.NewEncoder(w).Encode(map[string]any{"task_id": id})
			return
		}
		ids := map[string]string{}
		for _, a := range req.Analyses {
			if f.omit[a] {
				continue
			}
			f.seq++
			id := fmt.Sprintf("job-%d", f.seq)
			ids[a] = id
			f.jobs[id] = map[string]any{"task_id": id, "state": "PENDING"}
		}
		json.NewEncoder(w).Encode(map[string]any{"job_ids": ids})
	})

	mux.HandleFunc("GET /api/v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body, ok := f.jobs[r.PathValue("id")]
		hook := f.onJobGet
		f.mu.Unlock()
		if hook != nil {
			hook(r.PathValue("id"))
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"task not found"}`))
			return
		}
		json.NewEncoder(w).Encode(body)
	})

	mux.HandleFunc("GET /api/v1/events/{event_id}/event-info", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		info := f.eventInfo
		if v, ok := f.infoByEvent[r.PathValue("event_id")]; ok {
			info = v
		}
		f.mu.Unlock()
		if info == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(info))
	})

	return mux
}

type fixture struct {
	svc    *Service
	repo   repository.TaskRepository
	remote *fakeRemote
	srv    *httptest.Server
}

// newFixture SQLite 仓储 + 假远程服务
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, repository.NewTaskRepo(testutil.SetupTestDB(t)))
}

func newFixtureWithRepo(t *testing.T, repo repository.TaskRepository) *fixture {
	t.Helper()

	remote := newFakeRemote()
	srv := httptest.NewServer(remote.handler())
	t.Cleanup(srv.Close)

	cfg := gateway.DefaultConfig(srv.URL + "/api/v1")
	cfg.EventInfoRetry = retry.Policy{MaxAttempts: 2, Delays: []time.Duration{time.Millisecond}}
	gw := gateway.New(cfg, zerolog.Nop())

	svc := New(repo, gw, cache.NewLocalLocker(), Options{Logger: zerolog.Nop()})
	return &fixture{svc: svc, repo: repo, remote: remote, srv: srv}
}

// byType 按类型索引记录
func byType(tasks []repository.Task) map[string]repository.Task {
	out := make(map[string]repository.Task, len(tasks))
	for _, t := range tasks {
		out[string(t.TaskType)] = t
	}
	return out
}
