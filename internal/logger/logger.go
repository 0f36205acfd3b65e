package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options 日志配置
type Options struct {
	// Production JSON 输出；否则使用控制台友好格式
	Production bool
	// Level 最低输出级别：debug/info/warn/error，默认 info
	Level string
	// Out 默认 os.Stdout
	Out io.Writer
}

// New 创建日志器。
// 级别只作用于返回的 logger 本身，不修改 zerolog 全局级别。
func New(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	var w io.Writer = out
	if !opts.Production {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			// 常用字段固定在前面，便于扫读
			FieldsOrder: []string{
				"request_id",
				"event_id",
				"task_type",
				"task_id",
				"remote_job_id",
				"method",
				"path",
				"status",
				"duration(ms)",
				"client_ip",
				"errors",
			},
		}
	}

	return zerolog.New(w).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Caller().
		Logger()
}

// ParseLevel 解析日志级别，未知值回退到 info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithEvent 添加 event_id
func WithEvent(l zerolog.Logger, eventID string) zerolog.Logger {
	return l.With().Str("event_id", eventID).Logger()
}

// WithTask 添加 task_id / event_id / task_type
func WithTask(l zerolog.Logger, taskID, eventID, taskType string) zerolog.Logger {
	return l.With().
		Str("task_id", taskID).
		Str("event_id", eventID).
		Str("task_type", taskType).
		Logger()
}
