package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/azhengyongqin/analysis-hub/internal/model"
)

// 照片在某个分析分区中的状态
const (
	ItemStatusReady      = "ready"
	ItemStatusProcessing = "processing"
	ItemStatusError      = "error"
)

// completedThreshold 已处理（ready+error）占比达到该值即视为完成
const completedThreshold = 95

// EventInfo 分析服务维护的 event_info 文档。
//
// 每个分析类型占一个 analyze_* 分区，分区是照片处理记录的列表。
type EventInfo struct {
	EventID    string
	PhotoCount int
	Photo      json.RawMessage
	Price      json.RawMessage
	LastTaskID string
	Sections   map[string][]PhotoItem
}

// PhotoItem 单张照片在某个分区里的处理记录
type PhotoItem struct {
	PhotoID   flexString `json:"photoId"`
	Status    string     `json:"status"`
	UpdatedAt string     `json:"updated_at,omitempty"`
}

// SectionProgress 单个分析类型的进度
type SectionProgress struct {
	Ready      int              `json:"ready"`
	Errors     int              `json:"errors"`
	Processing int              `json:"processing"`
	Total      int              `json:"total"`
	Percent    int              `json:"percent"`
	Status     model.TaskStatus `json:"status"`
}

// UnmarshalJSON 分区名不固定（analyze_*），逐个 key 解析
func (e *EventInfo) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := EventInfo{Sections: map[string][]PhotoItem{}}
	for key, val := range raw {
		switch {
		case key == "event_id":
			var s flexString
			if err := json.Unmarshal(val, &s); err != nil {
				return fmt.Errorf("event_id: %w", err)
			}
			out.EventID = string(s)
		case key == "photo_count":
			var n json.Number
			if err := json.Unmarshal(val, &n); err != nil {
				return fmt.Errorf("photo_count: %w", err)
			}
			i, err := n.Int64()
			if err != nil {
				return fmt.Errorf("photo_count: %w", err)
			}
			out.PhotoCount = int(i)
		case key == "photo":
			out.Photo = val
		case key == "price":
			out.Price = val
		case key == "last_task_id":
			var s flexString
			if err := json.Unmarshal(val, &s); err != nil {
				return fmt.Errorf("last_task_id: %w", err)
			}
			out.LastTaskID = string(s)
		case strings.HasPrefix(key, "analyze_"):
			if isNull(val) {
				continue
			}
			var items []PhotoItem
			if err := json.Unmarshal(val, &items); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			out.Sections[key] = items
		}
	}

	*e = out
	return nil
}

// TotalPhotos photo_count 缺失时退回到 photo 的元素个数
func (e *EventInfo) TotalPhotos() int {
	if e.PhotoCount > 0 {
		return e.PhotoCount
	}
	if len(e.Photo) == 0 {
		return 0
	}
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(e.Photo, &asMap); err == nil {
		return len(asMap)
	}
	var asList []json.RawMessage
	if err := json.Unmarshal(e.Photo, &asList); err == nil {
		return len(asList)
	}
	return 0
}

// Progress 计算某个分析类型的进度
func (e *EventInfo) Progress(t model.TaskType) SectionProgress {
	items := e.Sections[t.EventInfoSection()]

	p := SectionProgress{Total: e.TotalPhotos()}
	if len(items) > p.Total {
		p.Total = len(items)
	}

	for _, it := range items {
		switch strings.ToLower(it.Status) {
		case ItemStatusReady:
			p.Ready++
		case ItemStatusError:
			p.Errors++
		case ItemStatusProcessing:
			p.Processing++
		}
	}

	done := p.Ready + p.Errors
	if p.Total > 0 {
		p.Percent = done * 100 / p.Total
		if p.Percent > 100 {
			p.Percent = 100
		}
	}

	switch {
	case p.Total > 0 && done*100 >= completedThreshold*p.Total:
		p.Status = model.TaskStatusCompleted
	case len(items) > 0:
		p.Status = model.TaskStatusProcessing
	default:
		p.Status = model.TaskStatusPending
	}
	return p
}

// flexString 兼容字符串和数字两种写法
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
