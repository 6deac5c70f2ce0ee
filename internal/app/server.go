package app

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"abroadPlan/internal/cache"
	"abroadPlan/internal/config"
	"abroadPlan/internal/fetch"
	"abroadPlan/internal/provider"
	"abroadPlan/internal/service"
	"abroadPlan/internal/storage"
	"abroadPlan/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Server HTTP服务：业务API + 管理API + 后台任务
type Server struct {
	cfg     *config.EnvConfig
	store   storage.Store
	planner *service.Planner
	auth    *service.AuthService
	logs    *service.LogService

	// 上游客户端（管理接口读取密钥池与调度器状态）
	clients      []*fetch.Client
	loginLimiter *util.LoginRateLimiter

	startedAt time.Time

	// 优雅关闭
	shutdownCh     chan struct{}
	isShuttingDown atomic.Bool
	wg             sync.WaitGroup
	cancelBg       context.CancelFunc
}

// NewServer 组装上游客户端、缓存闸门、业务服务并启动后台任务
// httpClient 为 nil 时使用默认连接池配置
func NewServer(cfg *config.EnvConfig, store storage.Store, httpClient *http.Client) (*Server, error) {
	if httpClient == nil {
		httpClient = fetch.NewHTTPClient()
	}

	s := &Server{
		cfg:        cfg,
		store:      store,
		startedAt:  time.Now(),
		shutdownCh: make(chan struct{}),
	}

	s.logs = service.NewLogService(store, cfg.LogBufferSize, cfg.LogWorkers, cfg.LogRetentionDays,
		s.shutdownCh, &s.isShuttingDown, &s.wg)

	llmCfg := cfg.Providers[config.ProviderLLM]
	llmClient, err := provider.NewClient(llmCfg, httpClient, s.logs.Observe)
	if err != nil {
		return nil, err
	}
	searchCfg := cfg.Providers[config.ProviderSearch]
	searchClient, err := provider.NewClient(searchCfg, httpClient, s.logs.Observe)
	if err != nil {
		return nil, err
	}
	s.clients = []*fetch.Client{llmClient, searchClient}

	s.loginLimiter = util.NewLoginRateLimiter()
	s.auth, err = service.NewAuthService(cfg.AdminPassword, cfg.AuthTokens, s.loginLimiter)
	if err != nil {
		s.loginLimiter.Stop()
		return nil, err
	}
	if cfg.AdminPassword == "" {
		log.Warn().Msg("[WARN] 未设置 ABROAD_ADMIN_PASS，管理员登录已禁用")
	}
	if len(cfg.AuthTokens) == 0 {
		log.Warn().Msg("[WARN] 未设置 ABROAD_AUTH，业务API无需认证")
	}

	gate := cache.New(store)
	s.planner = service.NewPlanner(gate, provider.NewChat(llmClient, llmCfg), provider.NewSearch(searchClient))

	s.logs.StartWorkers()
	s.logs.StartCleanupLoop()

	bgCtx, cancel := context.WithCancel(context.Background())
	s.cancelBg = cancel
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		gate.RunCleanup(bgCtx, config.CacheCleanupInterval)
	}()
	go s.tokenCleanupLoop()

	return s, nil
}

// Planner 业务服务（main 与测试使用）
func (s *Server) Planner() *service.Planner { return s.planner }

// Handler 完整的HTTP处理链：CORS → gin
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(), tracing(), limitBody(config.DefaultMaxBodyBytes))
	s.SetupRoutes(r)

	return cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, traceIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(r)
}

// SetupRoutes 注册路由
func (s *Server) SetupRoutes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)

	api := r.Group("/api", s.auth.RequireAPIAuth())
	{
		api.GET("/countries/details", queryHandler(s.planner.CountryDetails))
		api.POST("/countries/recommend", jsonHandler(s.planner.RecommendCountries))
		api.GET("/universities", queryHandler(s.planner.ListUniversities))
		api.GET("/universities/details", queryHandler(s.planner.UniversityDetails))
		api.GET("/jobs", queryHandler(s.planner.Jobs))
		api.GET("/scholarships", queryHandler(s.planner.Scholarships))
		api.GET("/visa", queryHandler(s.planner.Visa))
		api.GET("/accommodation", queryHandler(s.planner.Accommodation))
		api.POST("/cv/parse", s.handleParseCV)
	}

	r.POST("/admin/login", s.auth.HandleLogin)
	admin := r.Group("/admin", s.auth.RequireTokenAuth())
	{
		admin.POST("/logout", s.auth.HandleLogout)
		admin.GET("/keys", s.handleKeys)
		admin.GET("/dispatchers", s.handleDispatchers)
		admin.GET("/cache/stats", s.handleCacheStats)
		admin.DELETE("/cache", s.handleClearCache)
		admin.GET("/provider-logs", s.handleProviderLogs)
	}
}

// tokenCleanupLoop 定期清理过期的管理Token
func (s *Server) tokenCleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(config.TokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.auth.CleanExpiredTokens()
		case <-s.shutdownCh:
			s.auth.CleanExpiredTokens()
			return
		}
	}
}

// Shutdown 优雅关闭：通知后台协程退出、刷写日志、关闭调度器
// ctx 控制最大等待时间，超时返回 ctx.Err()
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.isShuttingDown.CompareAndSwap(false, true) {
		return nil
	}
	log.Info().Msg("[INFO] 正在关闭Server，等待后台任务完成...")

	close(s.shutdownCh)
	s.cancelBg()
	s.loginLimiter.Stop()
	for _, c := range s.clients {
		c.Dispatcher.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("[INFO] Server优雅关闭完成")
		return nil
	case <-ctx.Done():
		log.Warn().Msg("[WARN] Server关闭超时，部分后台任务可能未完成")
		return ctx.Err()
	}
}
