package server

import (
	"github.com/cozy-creator/hf-mirror/internal/api"
	"github.com/cozy-creator/hf-mirror/internal/app"
	"github.com/gin-gonic/gin"
)

func (s *Server) SetupRoutes(app *app.App) {
	// Health check endpoint
	s.ginEngine.GET("/healthz", api.Health)

	apiV1 := s.ginEngine.Group("/v1")

	apiV1.POST("/downloads", handlerWrapper(app, api.CreateDownload))
	apiV1.GET("/downloads", handlerWrapper(app, api.ListDownloads))
	apiV1.GET("/downloads/:id", handlerWrapper(app, api.GetDownload))
}

func handlerWrapper(app *app.App, f func(c *gin.Context)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("app", app)
		f(ctx)
	}
}
