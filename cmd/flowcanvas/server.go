package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/flowcanvas/api/handlers"
	"github.com/BaSui01/flowcanvas/config"
	"github.com/BaSui01/flowcanvas/internal/metrics"
	"github.com/BaSui01/flowcanvas/internal/server"
	"github.com/BaSui01/flowcanvas/internal/telemetry"
	"github.com/BaSui01/flowcanvas/workflowapi"
)

// skipAuthPaths 探针与版本端点不需要认证
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version"}

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 FlowCanvas 的主服务器
type Server struct {
	cfg    *config.Config
	loader *config.Loader
	logger *zap.Logger
	level  zap.AtomicLevel

	registry  *prometheus.Registry
	collector *metrics.Collector
	telemetry *telemetry.Providers

	store     *handlers.SessionStore
	workflows *workflowapi.Client

	healthHandler *handlers.HealthHandler
	canvasHandler *handlers.CanvasHandler

	apiHandler     http.Handler
	metricsHandler http.Handler
}

// NewServer 创建新的服务器实例；loader 带配置路径时启用热更新
func NewServer(cfg *config.Config, loader *config.Loader, logger *zap.Logger, level zap.AtomicLevel) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		loader: loader,
		logger: logger,
		level:  level,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Run 初始化并运行所有组件，直到 ctx 结束后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := s.init(gctx); err != nil {
		return fmt.Errorf("failed to init server: %w", err)
	}

	if s.loader != nil && s.loader.ConfigPath() != "" {
		watcher, err := config.NewWatcher(s.loader, config.WithWatcherLogger(s.logger))
		if err != nil {
			return err
		}
		watcher.OnReload(s.applyReload)
		if err := watcher.Start(gctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	httpManager := server.NewManager("api", s.apiHandler, s.httpConfig(), s.logger)
	g.Go(func() error { return httpManager.Run(gctx) })

	if s.cfg.Server.MetricsPort > 0 {
		metricsManager := server.NewManager("metrics", s.metricsHandler, server.Config{
			Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
			ReadTimeout:     s.cfg.Server.ReadTimeout,
			WriteTimeout:    s.cfg.Server.WriteTimeout,
			IdleTimeout:     s.cfg.Server.IdleTimeout,
			ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		}, s.logger)
		g.Go(func() error { return metricsManager.Run(gctx) })
	}

	g.Go(func() error { return s.store.Run(gctx) })

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("workflow_api", s.workflows != nil),
		zap.String("auth_mode", s.cfg.Auth.Mode),
	)

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if terr := s.telemetry.Shutdown(shutdownCtx); terr != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(terr))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s.logger.Info("Graceful shutdown completed")
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// init 构建指标、追踪、外部客户端、会话存储与路由；不监听端口
func (s *Server) init(ctx context.Context) error {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollector("flowcanvas", s.registry, s.logger)

	providers, err := telemetry.Init(ctx, s.cfg.Telemetry, s.logger, telemetry.WithServiceVersion(Version))
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
		providers = &telemetry.Providers{}
	}
	s.telemetry = providers

	s.store = handlers.NewSessionStore(s.cfg.Sessions, s.cfg.Canvas, s.logger,
		handlers.WithSessionMetrics(s.collector))
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewFuncHealthCheck("sessions", true, func(context.Context) error {
		if n := s.store.Len(); n >= s.cfg.Sessions.MaxSessions {
			return fmt.Errorf("session store full (%d)", n)
		}
		return nil
	}))

	canvasOpts := []handlers.CanvasOption{
		handlers.WithCanvasMetrics(s.collector),
		handlers.WithOriginPatterns(originPatterns(s.cfg.Server.CORSAllowedOrigins)),
	}

	if s.cfg.WorkflowAPI.BaseURL != "" {
		client, err := workflowapi.New(s.cfg.WorkflowAPI,
			workflowapi.WithLogger(s.logger),
			workflowapi.WithRecorder(s.collector),
			workflowapi.WithTracer(telemetry.Tracer()),
		)
		if err != nil {
			return fmt.Errorf("create workflow api client: %w", err)
		}
		s.workflows = client
		canvasOpts = append(canvasOpts, handlers.WithWorkflowService(client))
		// 外部服务不可用只影响保存与执行，不影响编辑
		s.healthHandler.RegisterCheck(handlers.NewFuncHealthCheck("workflow_api", false, client.Health))
		s.logger.Info("Workflow API client initialized", zap.String("base_url", s.cfg.WorkflowAPI.BaseURL))
	} else {
		s.logger.Info("Workflow API not configured, save and execute disabled")
	}

	s.canvasHandler = handlers.NewCanvasHandler(s.store, s.logger, canvasOpts...)

	s.apiHandler = s.routes(ctx)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	s.metricsHandler = metricsMux
	return nil
}

// routes 注册路由并构建中间件链；ctx 控制限流器清理协程的生命周期
func (s *Server) routes(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.healthHandler.Routes(mux, Version, BuildTime, GitCommit)
	s.canvasHandler.Routes(mux)

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	}
	switch s.cfg.Auth.Mode {
	case "apikey":
		middlewares = append(middlewares, APIKeyAuth(s.cfg.Auth.APIKeys, skipAuthPaths, s.logger))
	case "jwt":
		middlewares = append(middlewares, JWTAuth(s.cfg.Auth.JWT, skipAuthPaths, s.logger))
	}
	return Chain(mux, middlewares...)
}

func (s *Server) httpConfig() server.Config {
	return server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
}

// applyReload 应用可热更新的配置项；其余变更需要重启
func (s *Server) applyReload(cfg *config.Config) {
	newLevel := parseLevel(cfg.Log.Level)
	if newLevel != s.level.Level() {
		s.level.SetLevel(newLevel)
		s.logger.Info("Log level changed", zap.String("level", newLevel.String()))
	}
	if cfg.Server.HTTPPort != s.cfg.Server.HTTPPort || cfg.Auth.Mode != s.cfg.Auth.Mode ||
		cfg.WorkflowAPI.BaseURL != s.cfg.WorkflowAPI.BaseURL {
		s.logger.Warn("Configuration change requires restart")
	}
}

// originPatterns 将 CORS 来源转换为 websocket 的主机模式
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
