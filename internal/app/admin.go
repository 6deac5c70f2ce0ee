package app

import (
	"strconv"
	"time"

	"abroadPlan/internal/dispatch"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/keypool"
	"abroadPlan/internal/model"

	"github.com/gin-gonic/gin"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
	defaultLogHours = 24
)

// ProviderKeys 一个上游的密钥池状态
type ProviderKeys struct {
	Provider  string             `json:"provider"`
	Size      int                `json:"size"`
	Available int                `json:"available"`
	Keys      []keypool.KeyStats `json:"keys"`
}

// handleKeys GET /admin/keys
func (s *Server) handleKeys(c *gin.Context) {
	out := make([]ProviderKeys, 0, len(s.clients))
	for _, cl := range s.clients {
		out = append(out, ProviderKeys{
			Provider:  cl.Provider,
			Size:      cl.Pool.Size(),
			Available: cl.Pool.Available(),
			Keys:      cl.Pool.Stats(),
		})
	}
	RespondJSON(c, out)
}

// handleDispatchers GET /admin/dispatchers
func (s *Server) handleDispatchers(c *gin.Context) {
	out := make([]dispatch.Stats, 0, len(s.clients))
	for _, cl := range s.clients {
		out = append(out, cl.Dispatcher.Stats())
	}
	RespondJSON(c, out)
}

// handleCacheStats GET /admin/cache/stats
func (s *Server) handleCacheStats(c *gin.Context) {
	stats, err := s.planner.Gate().Stats(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondJSON(c, stats)
}

// handleClearCache DELETE /admin/cache?namespace=xxx（不带参数清空全部）
func (s *Server) handleClearCache(c *gin.Context) {
	namespace := c.Query("namespace")
	n, err := s.planner.Gate().Clear(c.Request.Context(), namespace)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondJSON(c, gin.H{"namespace": namespace, "deleted": n})
}

// handleProviderLogs GET /admin/provider-logs?hours=24&limit=100&offset=0&provider=llm&outcome=rate_limited
func (s *Server) handleProviderLogs(c *gin.Context) {
	hours, err := queryInt(c, "hours", defaultLogHours)
	if err != nil {
		RespondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit", defaultLogLimit)
	if err != nil {
		RespondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		RespondError(c, err)
		return
	}
	limit = min(limit, maxLogLimit)

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	filter := &model.ProviderLogFilter{
		Provider: c.Query("provider"),
		Outcome:  c.Query("outcome"),
	}
	logs, err := s.store.ListProviderLogs(c.Request.Context(), since, limit, offset, filter)
	if err != nil {
		RespondError(c, apperrors.DBQueryError("list provider logs", err))
		return
	}
	RespondJSON(c, gin.H{
		"logs":    logs,
		"dropped": s.logs.DroppedCount(),
	})
}

// queryInt 读取非负整数查询参数，缺省时返回 def
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.BadRequest("invalid " + name)
	}
	return v, nil
}
