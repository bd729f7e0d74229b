package server

import (
	"github.com/nulzo/polychat/internal/server/middleware"
	v1 "github.com/nulzo/polychat/internal/server/v1"
	"github.com/nulzo/polychat/internal/server/validator"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler(s.logger))
	if s.config.Tracing.Enabled {
		s.router.Use(middleware.Tracing(s.config.Tracing.ServiceName))
	}

	healthHandler := v1.NewHealthHandler(s.version)
	s.router.GET("/health", healthHandler.Health)

	api := s.router.Group("/api/v1")
	api.Use(middleware.Auth(s.config.Server.APIKeys))
	if s.limiter != nil {
		api.Use(s.limiter.Middleware())
	}
	{
		chatHandler := v1.NewChatHandler(s.service, validator.New())
		api.POST("/chat", chatHandler.Chat)
		api.POST("/chat/stream", chatHandler.Stream)

		modelsHandler := v1.NewModelHandler(s.service)
		api.GET("/models", modelsHandler.ListModels)

		analyticsHandler := v1.NewAnalyticsHandler(s.analytics)
		api.GET("/analytics/usage", analyticsHandler.GetUsage)
	}
}
