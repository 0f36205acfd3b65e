package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	log := zerolog.New(&buf)

	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggingMiddleware(log))
	r.POST("/events/:event_id/analysis", func(c *gin.Context) {
		var body map[string]any
		require.NoError(t, c.ShouldBindJSON(&body))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	req := httptest.NewRequest(http.MethodPost, "/events/e1/analysis?x=1", strings.NewReader(`{"task_types":["timeline"]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "/events/:event_id/analysis", entry["path"])
	assert.Equal(t, float64(500), entry["status"])
	assert.Equal(t, "x=1", entry["query"])
	assert.Contains(t, entry["request_body"], "timeline")
	assert.Contains(t, entry["response_body"], "boom")
	assert.NotEmpty(t, entry["request_id"])
}

func TestLoggingMiddleware_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusBadGateway, "error"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		r := gin.New()
		r.Use(LoggingMiddleware(zerolog.New(&buf)))
		r.GET("/x", func(c *gin.Context) { c.Status(tt.status) })

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, tt.level, entry["level"])
	}
}
