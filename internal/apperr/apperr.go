// Package apperr 定义编排层对外暴露的错误分类。
//
// 调用方（HTTP handler、SDK、后台刷新）只依赖 Kind 做分支，不解析错误字符串。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind 错误类别
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamRejected    Kind = "upstream_rejected"
	KindTransientUpstream   Kind = "transient_upstream"
	KindInternal            Kind = "internal"
)

// Error 带上下文的错误
type Error struct {
	Kind        Kind
	Op          string
	EventID     string
	TaskType    string
	TaskID      string
	RemoteJobID string
	HTTPStatus  int    // 上游返回的状态码（仅 upstream_rejected）
	Detail      string // 可直接写入 error_detail 的描述
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))

	var ctx []string
	if e.EventID != "" {
		ctx = append(ctx, "event_id="+e.EventID)
	}
	if e.TaskType != "" {
		ctx = append(ctx, "task_type="+e.TaskType)
	}
	if e.TaskID != "" {
		ctx = append(ctx, "task_id="+e.TaskID)
	}
	if e.RemoteJobID != "" {
		ctx = append(ctx, "remote_job_id="+e.RemoteJobID)
	}
	if e.HTTPStatus != 0 {
		ctx = append(ctx, fmt.Sprintf("http_status=%d", e.HTTPStatus))
	}
	if len(ctx) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(ctx, " "))
		b.WriteString("]")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Message 面向用户的描述（没有 Detail 时退回到底层错误）
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// New 构造错误
func New(kind Kind, op, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Wrap 包装底层错误，err 为 nil 时返回 nil
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, fmt.Sprintf(format, args...))
}

func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, fmt.Sprintf(format, args...))
}

func Internal(op string, err error) error {
	return Wrap(KindInternal, op, err)
}

// As 取出链上的 *Error
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf 返回错误类别；非 *Error 一律视为 internal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is 判断错误类别
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// DetailOf 返回适合写入任务记录的错误描述
func DetailOf(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Message()
	}
	return err.Error()
}

// HTTPStatus 错误类别到 HTTP 状态码
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstreamRejected:
		return http.StatusBadGateway
	case KindTransientUpstream:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
