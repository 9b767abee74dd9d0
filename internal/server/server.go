package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/amoylab/skirmish/internal/catalog"
	"github.com/amoylab/skirmish/internal/common/cnst"
	"github.com/amoylab/skirmish/internal/common/config"
	"github.com/amoylab/skirmish/internal/common/errorx"
	"github.com/amoylab/skirmish/internal/registry"
	"github.com/amoylab/skirmish/internal/scenario"
	"github.com/amoylab/skirmish/internal/session"
	"github.com/amoylab/skirmish/internal/state"
	"github.com/amoylab/skirmish/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type (
	// Deps are the components the HTTP surface calls into
	Deps struct {
		Sessions  *session.Manager
		Registry  *registry.Registry
		Store     state.Store
		Scenarios scenario.Store
		Catalog   *catalog.Catalog
		Metrics   *metrics.Metrics
	}

	// Server exposes the session API, the WebSocket endpoint and the
	// scenario and catalog endpoints
	Server struct {
		logger     *zap.Logger
		cfg        *config.BrokerConfig
		deps       Deps
		router     *gin.Engine
		httpServer *http.Server
		errs       *errorx.ErrorHandler
		upgrader   websocket.Upgrader
		// conns tracks live socket handlers so Shutdown can wait for their
		// cleanup; connMu orders admissions against closing
		conns   sync.WaitGroup
		connMu  sync.Mutex
		closing bool
	}
)

// NewServer creates the broker HTTP server and registers every route
func NewServer(logger *zap.Logger, cfg *config.BrokerConfig, deps Deps) *Server {
	logger = logger.Named("server")
	s := &Server{
		logger: logger,
		cfg:    cfg,
		deps:   deps,
		router: gin.New(),
		errs:   newErrorHandler(logger),
	}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
		CheckOrigin:      s.checkOrigin,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.router.Use(s.errs.RecoveryMiddleware())
	s.router.Use(s.loggerMiddleware())
	if cfg.Tracing.Enabled {
		s.router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	if cfg.Metrics.Enabled && deps.Metrics != nil {
		s.router.Use(deps.Metrics.Middleware())
	}
	if cfg.CORS != nil {
		s.router.Use(s.corsMiddleware(cfg.CORS))
	}

	s.registerRoutes()
	return s
}

func newErrorHandler(logger *zap.Logger) *errorx.ErrorHandler {
	return errorx.NewErrorHandler(logger).
		Register(session.ErrSessionNotFound, errorx.ErrSessionNotFound).
		Register(session.ErrScenarioNotFound, errorx.ErrScenarioNotFound).
		Register(scenario.ErrNotFound, errorx.ErrScenarioNotFound).
		Register(session.ErrSessionFull, errorx.ErrSessionFull).
		Register(session.ErrSessionNotJoinable, errorx.ErrSessionNotJoinable).
		Register(session.ErrInvalidReference, errorx.ErrInvalidReference).
		Register(scenario.ErrInvalidID, errorx.ErrInvalidReference).
		Register(session.ErrInvalidInput, errorx.ErrInvalidInput).
		Register(scenario.ErrInvalidDocument, errorx.ErrInvalidInput).
		RegisterOpaque(session.ErrStoreUnavailable, errorx.ErrStoreUnavailable)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health_check", s.handleHealthCheck)
	if s.cfg.Metrics.Enabled && s.deps.Metrics != nil {
		s.router.GET(s.cfg.Metrics.Path, gin.WrapH(s.deps.Metrics.Handler()))
	}

	s.router.GET("/ws", s.handleWebSocket)

	s.router.POST("/session/start", s.handleCreateSession)
	s.router.POST("/session/join", s.handleJoinSession)
	s.router.POST("/session/start-game", s.handleStartGame)
	s.router.POST("/session/end-game", s.handleEndGame)
	s.router.POST("/session/close/:id", s.handleCloseSession)
	s.router.POST("/session/disconnect/:userId", s.handleDisconnect)
	s.router.GET("/session/:id", s.handleGetSession)
	s.router.GET("/session-list", s.handleListSessions)

	api := s.router.Group("/api")
	api.POST("/scenarios", s.handleCreateScenario)
	api.GET("/scenarios", s.handleListScenarios)
	api.GET("/scenarios/:id", s.handleGetScenario)
	api.GET("/unit-types", s.handleUnitTypes)
	api.GET("/area-types", s.handleAreaTypes)

	s.router.NoRoute(func(c *gin.Context) {
		s.errs.HandleError(c, errorx.ErrEndpointNotFound)
	})
}

// Handler returns the root handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background
func (s *Server) Start() {
	go func() {
		s.logger.Info("listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("failed to start server", zap.Error(err))
		}
	}()
}

// Shutdown stops accepting requests, closes every outbox so socket writers
// finish, and waits for connection cleanup until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.connMu.Lock()
	s.closing = true
	s.connMu.Unlock()

	err := s.httpServer.Shutdown(ctx)
	s.deps.Registry.CloseAll()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("timed out waiting for connections to close")
		return errors.Join(err, ctx.Err())
	}
	return err
}

// admitConn reserves a slot in conns, or reports false once Shutdown started
func (s *Server) admitConn() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closing {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *Server) handleHealthCheck(c *gin.Context) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(c.Request.Context()); err != nil {
			s.errs.HandleError(c, errors.Join(session.ErrStoreUnavailable, err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"app":         cnst.AppName,
		"connections": s.deps.Registry.Len(),
	})
}
