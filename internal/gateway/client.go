// Package gateway 是远程分析服务的客户端。
//
// 只有 event_info 读取会重试；提交与状态查询都是单次调用，失败以 apperr 类型返回。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/azhengyongqin/analysis-hub/internal/apperr"
	"github.com/azhengyongqin/analysis-hub/internal/metrics"
	"github.com/azhengyongqin/analysis-hub/internal/model"
	"github.com/azhengyongqin/analysis-hub/internal/retry"
)

const (
	endpointHealth    = "health"
	endpointStart     = "start_analysis"
	endpointEventInfo = "event_info"
	endpointJobStatus = "job_status"

	// 错误响应体最多保留的字节数
	maxErrorBody = 512
)

// Config 客户端配置
type Config struct {
	BaseURL          string
	HealthTimeout    time.Duration
	StatusTimeout    time.Duration
	SubmitTimeout    time.Duration
	EventInfoTimeout time.Duration
	EventInfoRetry   retry.Policy
}

// DefaultConfig 默认超时：健康检查 5s，状态 10s，提交 5min
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		HealthTimeout:    5 * time.Second,
		StatusTimeout:    10 * time.Second,
		SubmitTimeout:    5 * time.Minute,
		EventInfoTimeout: 10 * time.Second,
		EventInfoRetry:   retry.DefaultPolicy(),
	}
}

// Client 分析服务客户端
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client（超时仍由 Config 控制）
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New 创建客户端
func New(cfg Config, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
		log:        log.With().Str("component", "gateway").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SubmitResult 提交结果：每个分析类型对应的远程任务 ID
type SubmitResult struct {
	JobIDs map[model.TaskType]string
	// Shared 远程服务只返回了一个 task_id，所有类型共用
	Shared bool
}

// HealthCheck 分析服务是否可用，任何异常都返回 false
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	status, _, err := c.do(ctx, endpointHealth, http.MethodGet, "/health", nil)
	if err != nil {
		c.log.Warn().Err(err).Str("base_url", c.baseURL).Msg("分析服务健康检查失败")
		return false
	}
	if status < 200 || status >= 300 {
		c.log.Warn().Int("status", status).Str("base_url", c.baseURL).Msg("分析服务健康检查返回非 2xx")
		return false
	}
	return true
}

// StartAnalysis 一次提交一个活动的多个分析类型，不重试。
func (c *Client) StartAnalysis(ctx context.Context, eventID string, types []model.TaskType) (*SubmitResult, error) {
	const op = "gateway.StartAnalysis"

	if !c.HealthCheck(ctx) {
		return nil, &apperr.Error{
			Kind:    apperr.KindUpstreamUnavailable,
			Op:      op,
			EventID: eventID,
			Detail:  fmt.Sprintf("analysis service unreachable at %s", c.baseURL),
		}
	}

	analyses := make([]string, len(types))
	for i, t := range types {
		analyses[i] = string(t)
	}
	body, err := json.Marshal(map[string]any{"analyses": analyses})
	if err != nil {
		return nil, apperr.Internal(op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	defer cancel()

	path := "/events/" + url.PathEscape(eventID) + "/start-analysis"
	status, respBody, err := c.do(ctx, endpointStart, http.MethodPost, path, body)
	if err != nil {
		return nil, c.transportError(op, eventID, err)
	}
	if status < 200 || status >= 300 {
		return nil, &apperr.Error{
			Kind:       apperr.KindUpstreamRejected,
			Op:         op,
			EventID:    eventID,
			HTTPStatus: status,
			Detail:     errorDetail(status, respBody),
		}
	}

	var resp struct {
		JobIDs map[string]string `json:"job_ids"`
		TaskID string            `json:"task_id"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &apperr.Error{
			Kind:    apperr.KindTransientUpstream,
			Op:      op,
			EventID: eventID,
			Detail:  "malformed start-analysis response",
			Err:     err,
		}
	}

	result := &SubmitResult{JobIDs: make(map[model.TaskType]string, len(types))}
	if len(resp.JobIDs) > 0 {
		for _, t := range types {
			if id := strings.TrimSpace(resp.JobIDs[string(t)]); id != "" {
				result.JobIDs[t] = id
			}
		}
	} else if resp.TaskID != "" {
		result.Shared = true
		for _, t := range types {
			result.JobIDs[t] = resp.TaskID
		}
	}

	c.log.Info().
		Str("event_id", eventID).
		Strs("analyses", analyses).
		Int("job_ids", len(result.JobIDs)).
		Bool("shared", result.Shared).
		Msg("分析任务已提交")
	return result, nil
}

// GetJobStatus 查询远程任务状态，单次调用
func (c *Client) GetJobStatus(ctx context.Context, remoteJobID string) (*JobStatus, error) {
	const op = "gateway.GetJobStatus"

	ctx, cancel := context.WithTimeout(ctx, c.cfg.StatusTimeout)
	defer cancel()

	status, body, err := c.do(ctx, endpointJobStatus, http.MethodGet, "/tasks/"+url.PathEscape(remoteJobID), nil)
	if err != nil {
		e := c.transportError(op, "", err)
		e.RemoteJobID = remoteJobID
		return nil, e
	}
	if status < 200 || status >= 300 {
		return nil, &apperr.Error{
			Kind:        apperr.KindUpstreamRejected,
			Op:          op,
			RemoteJobID: remoteJobID,
			HTTPStatus:  status,
			Detail:      errorDetail(status, body),
		}
	}

	var js JobStatus
	if err := json.Unmarshal(body, &js); err != nil {
		return nil, &apperr.Error{
			Kind:        apperr.KindTransientUpstream,
			Op:          op,
			RemoteJobID: remoteJobID,
			Detail:      "malformed job status response",
			Err:         err,
		}
	}
	if js.TaskID == "" {
		js.TaskID = remoteJobID
	}
	return &js, nil
}

// errEventInfoAbsent 不重试，直接视为不存在
var errEventInfoAbsent = errors.New("event info absent")

// GetEventInfo 读取 event_info 文档。
// 404 和其他 4xx 视为不存在；格式错误、5xx、超时、连接失败按重试策略重试，用尽后同样视为不存在。
func (c *Client) GetEventInfo(ctx context.Context, eventID string) (*EventInfo, bool) {
	log := c.log.With().Str("event_id", eventID).Logger()
	path := "/events/" + url.PathEscape(eventID) + "/event-info"

	policy := c.cfg.EventInfoRetry
	policy.Retryable = func(err error) bool {
		return !errors.Is(err, errEventInfoAbsent)
	}
	userOnRetry := c.cfg.EventInfoRetry.OnRetry
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		metrics.RecordGatewayRetry(endpointEventInfo)
		log.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("event_info 读取失败，准备重试")
		if userOnRetry != nil {
			userOnRetry(attempt, wait, err)
		}
	}

	var info *EventInfo
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.EventInfoTimeout)
		defer cancel()

		status, body, err := c.do(attemptCtx, endpointEventInfo, http.MethodGet, path, nil)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		switch {
		case status == http.StatusNotFound:
			return errEventInfoAbsent
		case status >= 500:
			return fmt.Errorf("server error %d: %s", status, errorDetail(status, body))
		case status < 200 || status >= 300:
			log.Warn().Int("status", status).Str("detail", errorDetail(status, body)).Msg("event_info 请求被拒绝")
			return errEventInfoAbsent
		}

		var doc EventInfo
		if err := json.Unmarshal(body, &doc); err != nil {
			return fmt.Errorf("decode event info: %w", err)
		}
		info = &doc
		return nil
	})

	switch {
	case err == nil:
		return info, true
	case errors.Is(err, errEventInfoAbsent):
		return nil, false
	default:
		log.Warn().Err(err).Msg("event_info 读取失败，按不存在处理")
		metrics.RecordError("gateway", "event_info_exhausted")
		return nil, false
	}
}

// do 发送请求并读取完整响应体
func (c *Client) do(ctx context.Context, endpoint, method, path string, body []byte) (int, []byte, error) {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordGatewayRequest(endpoint, "transport_error", time.Since(start).Seconds())
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordGatewayRequest(endpoint, "transport_error", time.Since(start).Seconds())
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	metrics.RecordGatewayRequest(endpoint, outcome(resp.StatusCode), time.Since(start).Seconds())
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration(ms)", time.Since(start)).
		Msg("分析服务请求")
	return resp.StatusCode, respBody, nil
}

// transportError 超时视为暂时性错误，其余视为服务不可达
func (c *Client) transportError(op, eventID string, err error) *apperr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &apperr.Error{
			Kind:    apperr.KindTransientUpstream,
			Op:      op,
			EventID: eventID,
			Detail:  fmt.Sprintf("analysis service at %s timed out", c.baseURL),
			Err:     err,
		}
	}
	return &apperr.Error{
		Kind:    apperr.KindUpstreamUnavailable,
		Op:      op,
		EventID: eventID,
		Detail:  fmt.Sprintf("analysis service unreachable at %s", c.baseURL),
		Err:     err,
	}
}

// errorDetail 优先取 {"detail": ...}，否则截断原始响应体
func errorDetail(status int, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 && !isNull(payload.Detail) {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("analysis service returned status %d", status)
	}
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "... (truncated)"
	}
	return text
}

func outcome(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "ok"
	case status >= 400 && status < 500:
		return "client_error"
	default:
		return "server_error"
	}
}
