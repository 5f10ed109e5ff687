package router

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/threadline/backend/internal/handlers"
	"github.com/threadline/backend/internal/logging"
	"github.com/threadline/backend/internal/middleware"
)

// Handlers groups the HTTP handlers mounted under /api/v1
type Handlers struct {
	Feed  *handlers.FeedHandler
	Likes *handlers.LikeHandler
	Posts *handlers.PostHandler
}

// SetupPipeline installs the request pipeline: request id, timeout,
// access log, then identity.
func SetupPipeline(e *echo.Echo, timeout time.Duration, verifiers ...middleware.TokenVerifier) {
	e.Use(middleware.Compose(
		middleware.RequestID(),
		middleware.Timeout(timeout),
		middleware.AccessLog(),
		middleware.Identify(verifiers...),
	))
	logging.Info().Int("verifiers", len(verifiers)).Dur("timeout", timeout).Msg("request pipeline configured")
}

// SetupRoutes mounts every route
func SetupRoutes(e *echo.Echo, h Handlers) {
	e.GET("/health", handlers.HealthCheck)

	api := e.Group("/api/v1")
	requireViewer := middleware.RequireViewer()

	h.Feed.RegisterFeedRoutes(api, requireViewer)
	h.Likes.RegisterLikeRoutes(api, requireViewer)
	h.Posts.RegisterPostRoutes(api, requireViewer)

	logging.Info().Int("routes", len(e.Routes())).Msg("routes configured")
}
