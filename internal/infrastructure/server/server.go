package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/ghostview/internal/api/http"
	"github.com/GriffinCanCode/ghostview/internal/api/middleware"
	"github.com/GriffinCanCode/ghostview/internal/api/ws"
	"github.com/GriffinCanCode/ghostview/internal/blocklist"
	"github.com/GriffinCanCode/ghostview/internal/engine"
	"github.com/GriffinCanCode/ghostview/internal/engine/sandbox"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/config"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/fsutil"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ghostview/internal/infrastructure/worker"
	"github.com/GriffinCanCode/ghostview/internal/session"
	"github.com/GriffinCanCode/ghostview/internal/webview"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	manager *session.Manager
	pool    *sandbox.Pool
	worker  *worker.Background
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing ghostview",
		zap.String("port", cfg.Server.Port),
		zap.String("data_dir", cfg.Engine.DataDir),
		zap.String("cache_dir", cfg.Engine.CacheDir),
	)

	// Metrics first, the engine and the session manager record into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("ghostview", logger.Logger)

	profile, err := engine.NewProfile(cfg.Engine.DataDir, cfg.Engine.CacheDir, logger.Component("profile"))
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}

	clientCfg := httpclient.DefaultConfig()
	clientCfg.Jar = profile.Jar()
	clientCfg.TLSExempt = profile.SSLExceptions().Allowed
	if cfg.Engine.UserAgent != "" {
		clientCfg.UserAgent = cfg.Engine.UserAgent
	}
	if cfg.Engine.Timeout > 0 {
		clientCfg.Timeout = cfg.Engine.Timeout
	}
	client := httpclient.New(clientCfg, logger.Component("httpclient"))

	var pool *sandbox.Pool
	if cfg.Engine.SandboxPool > 0 {
		pool, err = sandbox.NewPool(sandbox.DefaultConfig(), cfg.Engine.SandboxPool)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("failed to start script sandbox: %w", err)
		}
	} else {
		logger.Info("JavaScript disabled, no sandbox pool")
	}

	rules, err := blocklist.LoadOrDefault(cfg.Privacy.BlocklistPath)
	if err != nil {
		logger.Warn("Falling back to built-in blocklist",
			zap.String("path", cfg.Privacy.BlocklistPath),
			zap.Error(err),
		)
	}

	store, err := session.NewStore(cfg.Storage.SessionPath)
	if err != nil {
		closePool(pool)
		tracer.Close()
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	background := worker.NewBackground(logger.Component("worker"))
	settings := webview.DefaultSettings()
	settings.UserAgent = clientCfg.UserAgent
	settings.JavaScriptEnabled = pool != nil

	manager, err := session.NewManager(session.Runtime{
		Profile:          profile,
		Client:           client,
		Sandbox:          pool,
		Executor:         background,
		Sweeper:          fsutil.NewSweeper(logger.Component("sweep")),
		Blocklist:        rules,
		Metrics:          metrics,
		Logger:           logger.Logger,
		Settings:         settings,
		BlockingEnabled:  cfg.Privacy.BlockingEnabled,
		DownloadsEnabled: cfg.Privacy.DownloadsEnabled,
		DownloadDir:      cfg.Privacy.DownloadDir,
	}, store)
	if err != nil {
		background.Close()
		closePool(pool)
		tracer.Close()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.Server.AllowOrigins
	corsCfg.AllowCredentials = true
	router.Use(middleware.CORS(corsCfg))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := api.NewHandlers(manager, metrics, tracer, logger.Logger)
	handlers.Register(router)
	wsHandler := ws.NewHandler(manager, metrics, logger.Logger)
	router.GET("/tabs/:id/events", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized",
		zap.Int("blocklist_rules", rules.Len()),
		zap.Bool("javascript", settings.JavaScriptEnabled),
	)

	return &Server{
		router:  router,
		manager: manager,
		pool:    pool,
		worker:  background,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Manager() *session.Manager {
	return s.manager
}

// Run serves until ctx ends, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// Close saves and closes every tab, then releases shared resources.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.manager.Shutdown(); err != nil {
		s.logger.Error("Failed to close tabs", zap.Error(err))
		errs = append(errs, err)
	}
	// Sweeps queued by closing tabs run before the worker stops.
	s.worker.Close()
	closePool(s.pool)
	s.tracer.Close()

	_ = s.logger.Sync()
	return errors.Join(errs...)
}

func closePool(pool *sandbox.Pool) {
	if pool != nil {
		_ = pool.Close()
	}
}
