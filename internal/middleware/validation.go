package middleware

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/analysis-hub/internal/apperr"
)

const (
	// MaxPayloadSize 最大 payload 大小（1MB）
	MaxPayloadSize = 1 << 20
)

var (
	// EventIDRegex 活动 ID（字母数字及 _ - . :，1-128 字符）
	EventIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,128}$`)

	// TaskIDRegex 任务记录 ID（字母数字连字符，1-128 字符）
	TaskIDRegex = regexp.MustCompile(`^[a-zA-Z0-9-]{1,128}$`)

	// RemoteJobIDRegex 远程任务 ID，格式由分析服务决定，只做基本约束
	RemoteJobIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,128}$`)
)

// PayloadSizeLimit Payload 大小限制中间件
func PayloadSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("请求体过大，最大允许 %d 字节", maxSize),
				"kind":  apperr.KindValidation,
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}

func ValidateEventID(eventID string) bool {
	return EventIDRegex.MatchString(eventID)
}

func ValidateTaskID(taskID string) bool {
	return TaskIDRegex.MatchString(taskID)
}

func ValidateRemoteJobID(id string) bool {
	return RemoteJobIDRegex.MatchString(id)
}

// SanitizeString 去除首尾空白和控制字符
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)

	var builder strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// validateParam 校验路径参数，失败时以 validation 错误结束请求
func validateParam(name, hint string, valid func(string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		value := c.Param(name)
		if value == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": name + " 参数缺失",
				"kind":  apperr.KindValidation,
			})
			return
		}
		if !valid(value) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": name + " 格式无效，" + hint,
				"kind":  apperr.KindValidation,
			})
			return
		}
		c.Next()
	}
}

// ValidateEventIDParam 验证路径参数中的 event_id
func ValidateEventIDParam() gin.HandlerFunc {
	return validateParam("event_id", "必须是1-128个字母、数字或 _ - . :", ValidateEventID)
}

// ValidateTaskIDParam 验证路径参数中的 task_id
func ValidateTaskIDParam() gin.HandlerFunc {
	return validateParam("task_id", "必须是1-128个字母、数字或连字符", ValidateTaskID)
}

// ValidateRemoteJobIDParam 验证路径参数中的 remote_job_id
func ValidateRemoteJobIDParam() gin.HandlerFunc {
	return validateParam("remote_job_id", "必须是1-128个字母、数字或 _ - . :", ValidateRemoteJobID)
}

// CORSMiddleware CORS 中间件（内部系统可选）
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
