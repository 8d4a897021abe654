package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mnlt/filemigrator/internal/api/handler"
	"github.com/mnlt/filemigrator/internal/api/middleware"
	"github.com/mnlt/filemigrator/internal/config"
	"github.com/mnlt/filemigrator/internal/logger"
	"github.com/mnlt/filemigrator/internal/repository"
	"github.com/mnlt/filemigrator/internal/service"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	migrator *service.Migrator,
	repo *repository.FileRepository,
	log *logger.Logger,
	cfg *config.ServerConfig,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	statusHandler := handler.NewStatusHandler(migrator, repo)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes (read-only; migration itself runs through the CLI)
	v1 := r.Group("/api/v1")
	{
		v1.GET("/status", statusHandler.Status)
		v1.GET("/stats", statusHandler.Stats)
		v1.GET("/files", statusHandler.ListFiles)
	}

	return r
}
