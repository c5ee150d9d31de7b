package server

import (
	"github.com/calder-ai/relay/internal/server/middleware"
	v1 "github.com/calder-ai/relay/internal/server/v1"
)

func (s *Server) setupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.Tracing("relay"))
	s.router.Use(middleware.ErrorHandler(s.logger))

	// Health check is public.
	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Server.APIKeys))

	limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.logger)
	api.Use(limiter.Middleware())
	{
		chatHandler := v1.NewChatHandler(s.service)
		api.POST("/chat/completions", chatHandler.CreateCompletion)

		modelHandler := v1.NewModelHandler(s.service, s.cache, s.logger)
		api.GET("/models", modelHandler.ListModels)

		routeHandler := v1.NewRouteHandler(s.service)
		api.POST("/routes/preview", routeHandler.Preview)
	}
}
