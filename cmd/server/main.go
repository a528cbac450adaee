package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lychee-technology/appforge"
	"github.com/lychee-technology/appforge/factory"
	"github.com/lychee-technology/appforge/internal"
	"go.uber.org/zap"
)

// Server exposes the compiler and session orchestration over HTTP.
type Server struct {
	compiler appforge.Compiler
	parser   appforge.SpecParser
	library  appforge.PatternRegistry
	sessions *internal.SessionRegistry
	checks   map[string]internal.HealthChecker
	router   *gin.Engine
}

// NewServer creates a new Server instance
func NewServer(compiler appforge.Compiler, parser appforge.SpecParser, library appforge.PatternRegistry, sessions *internal.SessionRegistry) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	return &Server{
		compiler: compiler,
		parser:   parser,
		library:  library,
		sessions: sessions,
		checks:   make(map[string]internal.HealthChecker),
		router:   router,
	}
}

// AddHealthCheck registers a component probed by /healthz.
func (s *Server) AddHealthCheck(name string, check internal.HealthChecker) {
	s.checks[name] = check
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api/v1")
	{
		api.POST("/specs/parse", s.handleParse)
		api.POST("/specs/validate", s.handleValidate)
		api.POST("/specs/match", s.handleMatch)
		api.POST("/specs/build", s.handleBuild)

		api.GET("/patterns", s.handleListPatterns)
		api.GET("/patterns/:id", s.handleGetPattern)

		api.POST("/sessions", s.handleCreateSession)
		api.GET("/sessions/:id", s.handleGetSession)
		api.DELETE("/sessions/:id", s.handleDeleteSession)
		api.POST("/sessions/:id/turns", s.handleTurn)
		api.POST("/sessions/:id/build", s.handleSessionBuild)
		api.POST("/sessions/:id/export", s.handleExport)
	}
}

// ServeHTTP lets tests drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.S().Debugw("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func main() {
	configPath := flag.String("config", os.Getenv("APPFORGE_CONFIG"), "path to a YAML or JSON config file")
	flag.Parse()

	cfg, err := appforge.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := factory.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()
	internal.RegisterTelemetryEmitter(logTelemetry)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	compiler, err := factory.NewCompiler(cfg.Build)
	if err != nil {
		sugar.Fatalf("failed to create compiler: %v", err)
	}

	store, closeStore, err := factory.NewSpecStore(ctx, cfg.Storage)
	if err != nil {
		sugar.Fatalf("failed to create spec store: %v", err)
	}
	defer closeStore()

	exporter, err := factory.NewExporter(ctx, cfg.Export)
	if err != nil {
		sugar.Fatalf("failed to create exporter: %v", err)
	}

	sessions := factory.NewSessionRegistry(compiler, store, exporter, cfg.Build)
	sessions.StartJanitor(ctx, 2*time.Hour, 10*time.Minute)
	defer sessions.Close()

	server := NewServer(compiler, internal.NewSpecNormalizer(nil), compiler.Library(), sessions)
	if hc, ok := store.(internal.HealthChecker); ok {
		server.AddHealthCheck("store", hc)
	}
	if hc, ok := exporter.(internal.HealthChecker); ok {
		server.AddHealthCheck("exporter", hc)
	}
	server.RegisterRoutes()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("server shutdown failed", "error", err)
		}
	}()

	sugar.Infow("starting server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver, "export", cfg.Export.Driver)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Fatalf("server error: %v", err)
	}
}
