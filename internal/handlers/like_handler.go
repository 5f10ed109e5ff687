package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/threadline/backend/internal/middleware"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	likes LikeToggler
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likes LikeToggler) *LikeHandler {
	return &LikeHandler{likes: likes}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group, requireViewer echo.MiddlewareFunc) {
	g.POST("/likes/:postId/toggle", h.ToggleLike, requireViewer)
}

// ToggleLike likes the post, or unlikes it if the viewer already did
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	ctx := c.Request().Context()
	resp, err := h.likes.Toggle(ctx, middleware.ViewerID(ctx), c.Param("postId"))
	if err != nil {
		return httpError(c, err, "Failed to toggle like")
	}
	return c.JSON(http.StatusOK, resp)
}
