package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskTypes(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    []TaskType
		wantErr bool
	}{
		{"single", []string{"watermark"}, []TaskType{TaskTypeWatermark}, false},
		{"dedup and order", []string{"face_search", "timeline", "face_search"}, []TaskType{TaskTypeTimeline, TaskTypeFaceSearch}, false},
		{"case and spaces", []string{" Remove_Exif "}, []TaskType{TaskTypeRemoveExif}, false},
		{"unknown", []string{"timeline", "colorize"}, nil, true},
		{"empty", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTaskTypes(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskType_EventInfoSection(t *testing.T) {
	assert.Equal(t, "analyze_removeexif", TaskTypeRemoveExif.EventInfoSection())
	assert.Equal(t, "analyze_numbersearch", TaskTypeNumberSearch.EventInfoSection())
	assert.Empty(t, TaskType("bogus").EventInfoSection())
}

func TestTaskStatus_CanTransition(t *testing.T) {
	assert.True(t, TaskStatusPending.CanTransition(TaskStatusProcessing))
	assert.True(t, TaskStatusProcessing.CanTransition(TaskStatusCompleted))
	assert.True(t, TaskStatusProcessing.CanTransition(TaskStatusFailed))
	assert.False(t, TaskStatusProcessing.CanTransition(TaskStatusPending))
	assert.False(t, TaskStatusCompleted.CanTransition(TaskStatusProcessing))
	assert.False(t, TaskStatusFailed.CanTransition(TaskStatusCompleted))
	assert.False(t, TaskStatusPending.CanTransition(TaskStatus("running")))
}
