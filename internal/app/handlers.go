package app

import (
	"context"
	"net/http"
	"time"

	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/version"

	"github.com/gin-gonic/gin"
)

// queryHandler GET 端点：查询参数绑定到 Q，调用业务方法
func queryHandler[Q, R any](op func(context.Context, Q) (R, bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q Q
		if err := c.ShouldBindQuery(&q); err != nil {
			RespondError(c, apperrors.BadRequest("invalid query parameters"))
			return
		}
		serve(c, op, q)
	}
}

// jsonHandler POST 端点：JSON 请求体绑定到 Q
func jsonHandler[Q, R any](op func(context.Context, Q) (R, bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q Q
		if err := c.ShouldBindJSON(&q); err != nil {
			RespondError(c, apperrors.BadRequest("invalid JSON body"))
			return
		}
		serve(c, op, q)
	}
}

func serve[Q, R any](c *gin.Context, op func(context.Context, Q) (R, bool, error), q Q) {
	data, cached, err := op(c.Request.Context(), q)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCached(c, data, cached)
}

type parseCVRequest struct {
	Text string `json:"text"`
}

// handleParseCV CV 纯文本解析，请求体 {"text": "..."}
func (s *Server) handleParseCV(c *gin.Context) {
	var req parseCVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperrors.BadRequest("invalid JSON body"))
		return
	}
	profile, cached, err := s.planner.ParseCV(c.Request.Context(), req.Text)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCached(c, profile, cached)
}

// handleHealth 存活与数据库连通性
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, database := "ok", "ok"
	code := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		status, database = "degraded", "unreachable"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, StandardResponse[gin.H]{
		Success: code == http.StatusOK,
		Data: gin.H{
			"status":         status,
			"database":       database,
			"dialect":        s.store.Dialect(),
			"version":        version.Version,
			"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		},
	})
}
