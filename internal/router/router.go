package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"worksync/internal/handler/api"
	"worksync/internal/metrics"
	"worksync/internal/middleware"
	"worksync/internal/repository"
	"worksync/internal/syncer"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	service *syncer.Service,
	jobs *repository.SyncJobRepository,
	sink metrics.CallSink,
	logger *zap.Logger,
	apiKey string,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	syncHandler := api.NewSyncHandler(service, jobs, sink, logger)

	// Control surface, API-key protected
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))

	apiGroup.POST("/syncs", syncHandler.StartSync)
	apiGroup.GET("/syncs", syncHandler.ListJobs)
	apiGroup.GET("/syncs/:id", syncHandler.GetJob)
	apiGroup.GET("/syncs/:id/logs", syncHandler.GetJobLogs)
	apiGroup.POST("/syncs/:id/abort", syncHandler.AbortJob)
	apiGroup.GET("/stats/catalog", syncHandler.CatalogStats)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
