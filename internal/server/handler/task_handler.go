package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/analysis-hub/internal/gateway"
	"github.com/azhengyongqin/analysis-hub/internal/middleware"
	"github.com/azhengyongqin/analysis-hub/internal/server/dto"
)

// TaskHandler 单个分析记录相关 API Handler
type TaskHandler struct {
	svc Orchestrator
}

// NewTaskHandler 创建 TaskHandler
func NewTaskHandler(svc Orchestrator) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// GetTask godoc
// @Summary 任务详情
// @Description 返回任务记录、远程任务实时状态以及 event_info 中该类型的处理统计
// @Tags Tasks
// @Produce json
// @Param task_id path string true "任务 ID"
// @Success 200 {object} orchestrator.TaskLog
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{task_id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	log, err := h.svc.TaskLog(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

// RestartTask godoc
// @Summary 重启任务
// @Description 重新提交该分析类型；成功后记录回到 pending、进度 0，并关联新的远程任务
// @Tags Tasks
// @Produce json
// @Param task_id path string true "任务 ID"
// @Success 200 {object} repository.Task
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /tasks/{task_id}/restart [post]
func (h *TaskHandler) RestartTask(c *gin.Context) {
	task, err := h.svc.RestartTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		if task != nil {
			writeErrorWithData(c, err, task)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary 删除任务记录
// @Description 幂等删除；远程任务不会被取消
// @Tags Tasks
// @Produce json
// @Param task_id path string true "任务 ID"
// @Success 200 {object} dto.DeleteTaskResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /tasks/{task_id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID := c.Param("task_id")
	if err := h.svc.DeleteTask(c.Request.Context(), taskID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteTaskResponse{TaskID: taskID, Status: "deleted"})
}

// JobCallback godoc
// @Summary 远程任务状态回调
// @Description 分析服务推送任务状态；只更新仍关联该远程任务的记录，未知任务忽略
// @Tags Callbacks
// @Accept json
// @Produce json
// @Param remote_job_id path string true "远程任务 ID"
// @Param request body dto.JobUpdateRequest true "任务状态"
// @Success 200 {object} dto.JobUpdateResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /callbacks/jobs/{remote_job_id} [post]
func (h *TaskHandler) JobCallback(c *gin.Context) {
	var req dto.JobUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	remoteJobID := c.Param("remote_job_id")
	n, err := h.svc.ApplyJobUpdate(c.Request.Context(), remoteJobID, gateway.JobStatus{
		TaskID:    remoteJobID,
		State:     req.State,
		Status:    req.Status,
		Progress:  req.Progress,
		Current:   req.Current,
		Total:     req.Total,
		Result:    req.Result,
		Error:     middleware.SanitizeString(req.Error),
		ErrorType: middleware.SanitizeString(req.ErrorType),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.JobUpdateResponse{Updated: n})
}
