package routes

import (
	"droneaid/internal/config"
	"droneaid/internal/detector"
	"droneaid/internal/handlers"
	"droneaid/internal/logger"
	"droneaid/internal/middleware"
	"droneaid/internal/repository"
	"droneaid/internal/services"

	"github.com/gin-gonic/gin"
)

// Dependencies are the services the router is built from.
type Dependencies struct {
	Detector *detector.Service
	Manager  *services.Manager
	Samples  repository.SampleRepository // nil when the catalog is disabled
}

// SetupRoutes registers the inference API, live stream, capture gallery,
// catalog and log endpoints.
func SetupRoutes(deps Dependencies, cfg *config.Config, logger *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS())
	router.Use(middleware.MaxBodySize(cfg.MaxRequestBytes))
	router.MaxMultipartMemory = cfg.MaxRequestBytes

	det := deps.Detector

	// Inference API
	router.GET("/", handlers.RootHandler())
	router.GET("/health", handlers.HealthHandler(det))
	router.GET("/classes", handlers.ClassesHandler(det))
	router.POST("/detect", handlers.DetectHandler(det, cfg, logger))
	router.POST("/detect/base64", handlers.DetectBase64Handler(det, cfg, logger))
	router.POST("/detect/visualize", handlers.VisualizeHandler(det, cfg, logger))

	// Live stream
	if deps.Manager != nil {
		router.GET("/ws/stream", handlers.StreamWebsocketHandler(deps.Manager, cfg, logger))
		router.GET("/ws/view", handlers.ViewWebsocketHandler(deps.Manager, logger))

		buffer := deps.Manager.GetBufferService()
		api := router.Group("/api/captures")
		api.GET("", handlers.ListCapturesHandler(buffer, logger))
		api.GET("/view", handlers.ViewCaptureHandler(buffer))
		api.DELETE("", handlers.ClearCapturesHandler(buffer, logger))
	}

	// Catalog
	router.GET("/api/samples", handlers.ListSamplesHandler(deps.Samples, logger))
	router.GET("/api/samples/stats", handlers.SampleStatsHandler(deps.Samples, logger))

	// Log endpoints
	router.GET("/logs/:level", handlers.ShowLogsHandler(logger))
	router.POST("/logs/:level/clear", handlers.ClearLogsHandler(logger))

	return router
}
