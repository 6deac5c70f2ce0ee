package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"abroadPlan/internal/app"
	"abroadPlan/internal/config"
	"abroadPlan/internal/storage"
	"abroadPlan/internal/telemetry"
	"abroadPlan/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

func main() {
	// 优先读取.env文件
	envErr := godotenv.Load()

	setupLogger(os.Getenv("ABROAD_LOG_LEVEL"))
	version.PrintBanner()
	if envErr != nil {
		log.Debug().Err(envErr).Msg("未找到 .env 文件，仅使用环境变量")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("[FATAL] 配置加载失败")
	}

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		OTLPEndpoint: cfg.OTLPEndpoint,
		ServiceName:  cfg.ServiceName,
		Insecure:     cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("[FATAL] OpenTelemetry 初始化失败")
	}

	store, err := storage.NewStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("[FATAL] 存储初始化失败")
	}

	srv, err := app.NewServer(cfg, store, nil)
	if err != nil {
		_ = store.Close()
		log.Fatal().Err(err).Msg("[FATAL] 服务初始化失败")
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// 上游生成可能较慢，写超时需覆盖多次重试
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("dialect", store.Dialect()).Msg("[INFO] 服务已启动")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("[FATAL] HTTP服务异常退出")
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	log.Info().Msg("[INFO] 收到关闭信号，开始优雅关闭...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("[WARN] HTTP服务关闭超时")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("[WARN] 后台任务关闭超时")
	}
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("[WARN] 关闭数据库失败")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("[WARN] 关闭追踪导出器失败")
	}
	log.Info().Msg("[INFO] 已退出")
}

// setupLogger 终端使用彩色控制台输出，否则输出JSON（便于日志采集）
func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
