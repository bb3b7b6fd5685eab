package api

import (
	"github.com/gin-gonic/gin"
	"github.com/tomw/raglift/internal/api/handler"
	"github.com/tomw/raglift/internal/api/middleware"
)

// RouterConfig holds dependencies and settings for the HTTP router.
type RouterConfig struct {
	Health    *handler.HealthHandler
	Lifecycle *handler.LifecycleHandler
	Search    *handler.SearchHandler
	CORS      middleware.CORSConfig
}

// SetupRouter wires middleware and routes.
func SetupRouter(cfg *RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORS))

	router.GET("/health", cfg.Health.Health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/datasets", cfg.Lifecycle.CreateDataset)
		v1.GET("/datasets/:id/generations", cfg.Lifecycle.ListGenerations)

		v1.POST("/configs", cfg.Lifecycle.RegisterConfig)
		v1.GET("/configs/:id", cfg.Lifecycle.GetConfig)

		v1.POST("/generations", cfg.Lifecycle.CreateGeneration)
		v1.GET("/generations/:id", cfg.Lifecycle.GetGeneration)
		v1.POST("/generations/:id/promote", cfg.Lifecycle.Promote)
		v1.POST("/generations/:id/build", cfg.Search.Build)
		v1.POST("/generations/:id/archive", cfg.Search.Archive)

		v1.GET("/production/:name", cfg.Lifecycle.GetProduction)
		v1.POST("/retrieve", cfg.Search.Retrieve)
	}

	return router
}
