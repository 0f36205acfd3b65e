package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := &Error{Kind: KindUpstreamUnavailable, Op: "gateway.StartAnalysis", Detail: "analysis service unreachable"}
	wrapped := fmt.Errorf("start: %w", base)

	assert.Equal(t, KindUpstreamUnavailable, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindUpstreamUnavailable))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.False(t, Is(nil, KindInternal))
}

func TestError_Message(t *testing.T) {
	e := &Error{Kind: KindUpstreamRejected, Op: "op", EventID: "ev1", HTTPStatus: 422, Detail: "event not found"}
	assert.Equal(t, "event not found", e.Message())
	assert.Contains(t, e.Error(), "event_id=ev1")
	assert.Contains(t, e.Error(), "http_status=422")

	inner := Wrap(KindInternal, "repo.Get", errors.New("db closed"))
	assert.Equal(t, "db closed", DetailOf(inner))
	assert.Nil(t, Wrap(KindInternal, "noop", nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindUpstreamUnavailable, http.StatusServiceUnavailable},
		{KindUpstreamRejected, http.StatusBadGateway},
		{KindTransientUpstream, http.StatusGatewayTimeout},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}
