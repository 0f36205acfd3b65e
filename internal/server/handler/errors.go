package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/analysis-hub/internal/apperr"
	"github.com/azhengyongqin/analysis-hub/internal/metrics"
	"github.com/azhengyongqin/analysis-hub/internal/server/dto"
)

// writeError 按错误类别写响应
func writeError(c *gin.Context, err error) {
	writeErrorWithData(c, err, nil)
}

// writeErrorWithData 错误响应附带部分结果（例如提交失败后的记录状态）
func writeErrorWithData(c *gin.Context, err error, data any) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	msg := apperr.DetailOf(err)
	if kind == apperr.KindInternal {
		// 存储错误不外泄细节
		msg = "internal error"
		metrics.RecordError("http", string(kind))
	}
	_ = c.Error(err)

	c.JSON(status, dto.ErrorResponse{Error: msg, Kind: string(kind), Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg, Kind: string(apperr.KindValidation)})
}
