package model

import (
	"fmt"
	"sort"
	"strings"
)

// TaskType 分析类型，每个 (event, type) 最多一条任务记录。
type TaskType string

const (
	TaskTypeTimeline     TaskType = "timeline"
	TaskTypeRemoveExif   TaskType = "remove_exif"
	TaskTypeWatermark    TaskType = "watermark"
	TaskTypeFaceSearch   TaskType = "face_search"
	TaskTypeNumberSearch TaskType = "number_search"
)

// AllTaskTypes 固定顺序，StartAnalysis 未指定类型时使用
var AllTaskTypes = []TaskType{
	TaskTypeTimeline,
	TaskTypeRemoveExif,
	TaskTypeWatermark,
	TaskTypeFaceSearch,
	TaskTypeNumberSearch,
}

// event_info.json 中各类型对应的分区名
var eventInfoSections = map[TaskType]string{
	TaskTypeTimeline:     "analyze_timeline",
	TaskTypeRemoveExif:   "analyze_removeexif",
	TaskTypeWatermark:    "analyze_watermark",
	TaskTypeFaceSearch:   "analyze_facesearch",
	TaskTypeNumberSearch: "analyze_numbersearch",
}

func (t TaskType) Valid() bool {
	_, ok := eventInfoSections[t]
	return ok
}

// EventInfoSection 返回 event_info 文档里的分区 key
func (t TaskType) EventInfoSection() string {
	return eventInfoSections[t]
}

// ParseTaskTypes 校验、去重并排序。空输入返回错误。
func ParseTaskTypes(raw []string) ([]TaskType, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("task types 不能为空")
	}
	seen := make(map[TaskType]struct{}, len(raw))
	out := make([]TaskType, 0, len(raw))
	for _, r := range raw {
		t := TaskType(strings.TrimSpace(strings.ToLower(r)))
		if !t.Valid() {
			return nil, fmt.Errorf("未知的 task type: %q", r)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	SortTaskTypes(out)
	return out, nil
}

// SortTaskTypes 按 AllTaskTypes 的顺序排序（加锁顺序依赖这里）
func SortTaskTypes(types []TaskType) {
	order := make(map[TaskType]int, len(AllTaskTypes))
	for i, t := range AllTaskTypes {
		order[t] = i
	}
	sort.SliceStable(types, func(i, j int) bool {
		return order[types[i]] < order[types[j]]
	})
}
