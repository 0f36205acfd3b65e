package sdk

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
)

// Client Analysis-Hub HTTP 客户端
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient 创建客户端。提交会同步等待分析服务受理，超时给得比较宽。
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 6 * time.Minute,
		},
	}
}

// APIError 非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Kind       string `json:"kind"`
	// Data 部分结果（例如提交失败后各记录的状态），原样保留
	Data json.RawMessage `json:"data,omitempty"`
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("analysis-hub: %d %s: %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("analysis-hub: %d: %s", e.StatusCode, e.Message)
}

// IsKind 判断错误类别，例如 "upstream_unavailable"
func IsKind(err error, kind string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// StartAnalysis 为活动启动分析；返回 *APIError 时 Data 中带有各记录最新状态
func (c *Client) StartAnalysis(ctx context.Context, eventID string, types ...TaskType) (*StartResult, error) {
	req := struct {
		TaskTypes []TaskType `json:"task_types"`
	}{TaskTypes: types}

	var out StartResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/events/"+url.PathEscape(eventID)+"/analysis", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStatus 查询活动状态；refresh 为 true 时服务端先向分析服务拉取最新进度
func (c *Client) GetStatus(ctx context.Context, eventID string, refresh bool) (*EventStatus, error) {
	path := "/api/v1/events/" + url.PathEscape(eventID) + "/analysis"
	if refresh {
		path += "?refresh=true"
	}

	var out EventStatus
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RestartTask 重启单个分析记录
func (c *Client) RestartTask(ctx context.Context, taskID string) (*Task, error) {
	var out Task
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks/"+url.PathEscape(taskID)+"/restart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RestartAll 重启活动的全部分析，按类型返回结果
func (c *Client) RestartAll(ctx context.Context, eventID string) (map[TaskType]RestartOutcome, error) {
	var out struct {
		Results map[TaskType]RestartOutcome `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/events/"+url.PathEscape(eventID)+"/analysis/restart", nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// DeleteTask 删除分析记录（幂等）
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+url.PathEscape(taskID), nil, nil)
}

// WaitForEvent 轮询直到活动下所有记录结束或 ctx 取消
func (c *Client) WaitForEvent(ctx context.Context, eventID string, interval time.Duration) (*EventStatus, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := c.GetStatus(ctx, eventID, true)
		if err != nil {
			return nil, err
		}
		if len(st.Tasks) > 0 && st.EventStatus.Done() {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
