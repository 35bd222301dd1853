package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kaitori-compare/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// A GET against the analyze endpoint must answer 405, not 404
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API routes
	api := router.Group("/api")
	{
		api.POST("/analyze", handler.AnalyzeImage)
		api.POST("/batch", handler.AnalyzeBatch)

		exportGroup := api.Group("/export")
		{
			exportGroup.POST("/csv", handler.ExportCSV)
			exportGroup.POST("/xlsx", handler.ExportXLSX)
		}
	}

	return router
}
