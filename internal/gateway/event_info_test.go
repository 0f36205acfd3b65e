package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/analysis-hub/internal/model"
)

func TestEventInfo_Progress(t *testing.T) {
	doc := `{
		"photo_count": 20,
		"photo": {},
		"analyze_timeline": null,
		"analyze_facesearch": [
			{"photoId": 1, "status": "ready"},
			{"photoId": 2, "status": "processing"}
		]
	}`
	items := make([]map[string]any, 0, 20)
	for i := 0; i < 19; i++ {
		items = append(items, map[string]any{"photoId": i, "status": "ready"})
	}

	var info EventInfo
	require.NoError(t, json.Unmarshal([]byte(doc), &info))
	info.Sections["analyze_watermark"] = toItems(t, items)

	// 19/20 = 95% -> completed
	wm := info.Progress(model.TaskTypeWatermark)
	assert.Equal(t, model.TaskStatusCompleted, wm.Status)
	assert.Equal(t, 95, wm.Percent)

	fs := info.Progress(model.TaskTypeFaceSearch)
	assert.Equal(t, model.TaskStatusProcessing, fs.Status)
	assert.Equal(t, 5, fs.Percent)
	assert.Equal(t, 1, fs.Processing)

	tl := info.Progress(model.TaskTypeTimeline)
	assert.Equal(t, model.TaskStatusPending, tl.Status)
	assert.Equal(t, 0, tl.Percent)
}

func TestEventInfo_TotalPhotosFallback(t *testing.T) {
	var info EventInfo
	require.NoError(t, json.Unmarshal([]byte(`{"photo": {"a": {}, "b": {}}, "analyze_removeexif": [{"photoId":"a","status":"ready"},{"photoId":"b","status":"ready"}]}`), &info))

	assert.Equal(t, 2, info.TotalPhotos())
	p := info.Progress(model.TaskTypeRemoveExif)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, model.TaskStatusCompleted, p.Status)
}

func TestEventInfo_MoreItemsThanPhotos(t *testing.T) {
	var info EventInfo
	require.NoError(t, json.Unmarshal([]byte(`{"photo_count": "1", "analyze_numbersearch": [{"photoId":1,"status":"ready"},{"photoId":2,"status":"processing"}]}`), &info))

	p := info.Progress(model.TaskTypeNumberSearch)
	assert.Equal(t, 2, p.Total)
	assert.Equal(t, 50, p.Percent)
	assert.Equal(t, model.TaskStatusProcessing, p.Status)
}

func TestEventInfo_Invalid(t *testing.T) {
	var info EventInfo
	assert.Error(t, json.Unmarshal([]byte(`{"analyze_watermark": "oops"}`), &info))
	assert.Error(t, json.Unmarshal([]byte(`[]`), &info))
}

func TestJobStatus_Normalized(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name         string
		js           JobStatus
		wantStatus   model.TaskStatus
		wantProgress int
	}{
		{"pending", JobStatus{State: "PENDING"}, model.TaskStatusPending, 0},
		{"progress field", JobStatus{Status: "PROGRESS", Progress: f(62.9)}, model.TaskStatusProcessing, 62},
		{"current/total", JobStatus{State: "progress", Current: 3, Total: 4}, model.TaskStatusProcessing, 75},
		{"started", JobStatus{State: "STARTED"}, model.TaskStatusProcessing, 0},
		{"success", JobStatus{State: "SUCCESS"}, model.TaskStatusCompleted, 100},
		{"failure", JobStatus{State: "FAILURE", Progress: f(30)}, model.TaskStatusFailed, 30},
		{"revoked", JobStatus{Status: "REVOKED"}, model.TaskStatusFailed, 0},
		{"overflow clamps", JobStatus{State: "PROGRESS", Progress: f(180)}, model.TaskStatusProcessing, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p := tt.js.Normalized()
			assert.Equal(t, tt.wantStatus, s)
			assert.Equal(t, tt.wantProgress, p)
		})
	}
}

func TestJobStatus_ErrorDetail(t *testing.T) {
	assert.Equal(t, "ValueError: bad image", (&JobStatus{Error: "bad image", ErrorType: "ValueError"}).ErrorDetail())
	assert.Equal(t, "remote job revoked", (&JobStatus{State: "REVOKED"}).ErrorDetail())
}

func toItems(t *testing.T, raw []map[string]any) []PhotoItem {
	t.Helper()
	b, err := json.Marshal(raw)
	require.NoError(t, err)
	var items []PhotoItem
	require.NoError(t, json.Unmarshal(b, &items))
	return items
}
