// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"salesbi/internal/domain/auth"
	"salesbi/internal/domain/reports"
	"salesbi/internal/infrastructure/http/v1/handlers"
	"salesbi/internal/infrastructure/http/v1/middleware"
	"salesbi/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// DB is pinged by the readiness probe
	DB handlers.Pinger

	// PoolStats reports connection pool statistics on /health/info (optional)
	PoolStats func() any

	Version string

	// Logger for request logging
	Logger *logger.Logger

	// Metrics observes requests and is served on /metrics (optional)
	Metrics Metrics

	// JWTValidator enables bearer authentication when set
	JWTValidator middleware.JWTValidator

	Reports *reports.Service
	Runs    handlers.RunReader
}

// Metrics is the metrics surface the router needs.
type Metrics interface {
	middleware.RequestObserver
	Handler() http.Handler
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	var observer middleware.RequestObserver
	if cfg.Metrics != nil {
		observer = cfg.Metrics
	}

	// Global middleware (order matters: Recovery sits inside ErrorHandler so
	// that recovered panics are rendered)
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger, observer))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Version, cfg.PoolStats)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	if cfg.JWTValidator != nil {
		v1.Use(middleware.Auth(cfg.JWTValidator))
	}
	v1.Use(middleware.RequireScope(auth.ScopeReportsRead))
	{
		registerRunRoutes(v1, cfg)
		registerReportRoutes(v1, cfg)
	}

	return router
}

// registerRunRoutes registers pipeline run endpoints.
func registerRunRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.Runs == nil {
		return
	}
	handlers.NewRunsHandler(handlers.NewBaseHandler(), cfg.Runs).RegisterRoutes(rg.Group("/runs"))
}

// registerReportRoutes registers report endpoints.
func registerReportRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.Reports == nil {
		return
	}
	handlers.NewReportsHandler(handlers.NewBaseHandler(), cfg.Reports).RegisterRoutes(rg.Group("/reports"))
}
