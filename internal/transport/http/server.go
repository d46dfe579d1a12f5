package http

import (
	"github.com/gin-gonic/gin"

	appsvc "careercompass/internal/app"
	"careercompass/internal/bootstrap"
	"careercompass/internal/model"
	"careercompass/internal/transport/http/handler"
	"careercompass/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestID(), gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	embeddingHandler := handler.NewEmbeddingHandler(app.Embeddings, app.Ingest, app.IngestQueue)
	searchHandler := handler.NewSearchHandler(app.Search, app.Access, handler.SearchDefaults{
		Limit:         app.Config.Search.DefaultLimit,
		MinSimilarity: app.Config.Search.DefaultMinSimilarity,
	})
	maintenanceHandler := handler.NewMaintenanceHandler(app.Embeddings, appsvc.CleanupOptions{
		OlderThanDays: app.Config.Embedding.CleanupOlderThanDays,
		Status:        model.Status(app.Config.Embedding.CleanupStatus),
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	embeddingGroup := v1.Group("/embeddings")
	embeddingGroup.POST("", embeddingHandler.Create)
	embeddingGroup.POST("/batch", embeddingHandler.BatchCreate)
	embeddingGroup.POST("/ingest", embeddingHandler.Ingest)
	embeddingGroup.POST("/ingest/async", embeddingHandler.IngestAsync)
	embeddingGroup.GET("/:id", embeddingHandler.Get)
	embeddingGroup.PATCH("/:id", embeddingHandler.Update)
	embeddingGroup.POST("/:id/outdated", embeddingHandler.MarkOutdated)

	v1.POST("/search", searchHandler.Search)
	v1.POST("/maintenance/cleanup", maintenanceHandler.Cleanup)

	return router
}
