package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// MaxBodyLogSize 最大记录的请求/响应体大小（字节）
	MaxBodyLogSize = 4096
)

// bodyRecorder 包装 gin.ResponseWriter，缓存前 4KB 响应体，5xx 时写入日志
type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
	size int
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	size, err := w.ResponseWriter.Write(b)
	w.size += size
	if w.body.Len()+len(b) <= MaxBodyLogSize {
		w.body.Write(b)
	}
	return size, err
}

// LoggingMiddleware 访问日志：5xx 记 error，4xx 记 warn，其余 info
func LoggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "http").Logger()

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		// 回调和提交接口的请求体较小，直接记录
		var requestBody string
		if c.Request.Body != nil && (c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut) {
			if raw, err := io.ReadAll(c.Request.Body); err == nil {
				c.Request.Body = io.NopCloser(bytes.NewReader(raw))
				switch {
				case len(raw) > MaxBodyLogSize:
					requestBody = string(raw[:MaxBodyLogSize]) + "... (truncated)"
				case len(raw) > 0:
					requestBody = string(raw)
				}
			}
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rec

		c.Next()

		status := c.Writer.Status()

		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		default:
			ev = log.Info()
		}

		if id := GetRequestID(c); id != "" {
			ev = ev.Str("request_id", id)
		}
		ev = ev.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Int("response_size", rec.size).
			Str("client_ip", c.ClientIP())

		if c.Request.URL.RawQuery != "" {
			ev = ev.Str("query", c.Request.URL.RawQuery)
		}
		if requestBody != "" {
			ev = ev.Str("request_body", requestBody)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		if status >= 500 && rec.body.Len() > 0 {
			ev = ev.Str("response_body", rec.body.String())
		}

		ev.Msg("HTTP 请求")
	}
}

// GetRequestID 从上下文中获取请求 ID
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
