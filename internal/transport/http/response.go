package httptransport

import (
	"net/http"

	platformerrors "blog-image-server/internal/platform/errors"

	"github.com/gin-gonic/gin"
)

// APIResponse 定义统一的接口返回结构体
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// RespondSuccess 返回成功响应
func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}

	resp := APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	}

	c.JSON(httpStatus, resp)
}

// RespondError 返回失败响应
func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	resp := APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	}

	c.JSON(httpStatus, resp)
}

// RespondErr 按错误类型映射状态码并返回失败响应
func RespondErr(c *gin.Context, err error) {
	_ = c.Error(err)
	status := StatusFor(err)
	message := http.StatusText(status)
	if status < http.StatusInternalServerError {
		message = err.Error()
	}
	RespondError(c, status, message, gin.H{"kind": string(platformerrors.KindOf(err))})
}

// StatusFor maps an error's kind onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case platformerrors.IsKind(err, platformerrors.KindNotFound):
		return http.StatusNotFound
	case platformerrors.IsKind(err, platformerrors.KindTransport):
		return http.StatusBadRequest
	case platformerrors.IsKind(err, platformerrors.KindMetadata):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
