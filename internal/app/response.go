package app

import (
	"net/http"

	apperrors "abroadPlan/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// StandardResponse 统一API响应结构
type StandardResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"` // 机器可读错误码
	Cached  bool   `json:"cached"`
}

// RespondJSON 成功响应
func RespondJSON(c *gin.Context, data any) {
	c.JSON(http.StatusOK, StandardResponse[any]{Success: true, Data: data})
}

// RespondCached 成功响应并标记是否命中缓存
func RespondCached(c *gin.Context, data any, cached bool) {
	c.JSON(http.StatusOK, StandardResponse[any]{Success: true, Data: data, Cached: cached})
}

// RespondError 错误响应：状态码与对外消息由错误码决定，上游原文不外泄
func RespondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	code := apperrors.CodeOf(err)

	event := log.Debug()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("request_id", c.GetString(requestIDKey)).
		Str("path", c.Request.URL.Path).
		Str("code", string(code)).
		Int("status", status).
		Msg("请求失败")

	c.JSON(status, StandardResponse[any]{
		Success: false,
		Error:   apperrors.PublicMessage(err),
		Code:    string(code),
	})
}

// RespondErrorMsg 仅消息的错误响应
func RespondErrorMsg(c *gin.Context, status int, code apperrors.ErrorCode, message string) {
	c.JSON(status, StandardResponse[any]{
		Success: false,
		Error:   message,
		Code:    string(code),
	})
}
