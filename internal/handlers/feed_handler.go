package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/threadline/backend/internal/middleware"
	"github.com/threadline/backend/internal/models"
)

// FeedHandler handles feed and thread reads
type FeedHandler struct {
	feed    FeedReader
	threads ThreadReader
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feed FeedReader, threads ThreadReader) *FeedHandler {
	return &FeedHandler{feed: feed, threads: threads}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group, requireViewer echo.MiddlewareFunc) {
	g.GET("/posts/feed", h.GetFeed)
	g.GET("/posts/liked", h.GetLikedFeed, requireViewer)
	g.GET("/posts/:id/thread", h.GetThread)
}

// GetFeed returns one cursor-paginated page
func (h *FeedHandler) GetFeed(c echo.Context) error {
	var q models.FeedQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	if err := c.Validate(&q); err != nil {
		return err
	}

	ctx := c.Request().Context()
	resp, err := h.feed.GetFeed(ctx, q, middleware.ViewerID(ctx))
	if err != nil {
		return httpError(c, err, "Failed to load feed")
	}
	return c.JSON(http.StatusOK, resp)
}

// GetLikedFeed is the liked-posts feed of the viewer. filterType still
// narrows it to posts or replies.
func (h *FeedHandler) GetLikedFeed(c echo.Context) error {
	var q models.FeedQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	q.Liked = true
	if err := c.Validate(&q); err != nil {
		return err
	}

	ctx := c.Request().Context()
	resp, err := h.feed.GetFeed(ctx, q, middleware.ViewerID(ctx))
	if err != nil {
		return httpError(c, err, "Failed to load feed")
	}
	return c.JSON(http.StatusOK, resp)
}

// GetThread returns a post with all of its replies nested
func (h *FeedHandler) GetThread(c echo.Context) error {
	ctx := c.Request().Context()
	tree, err := h.threads.GetThread(ctx, c.Param("id"), c.QueryParam("order"), middleware.ViewerID(ctx))
	if err != nil {
		return httpError(c, err, "Failed to fetch thread")
	}
	return c.JSON(http.StatusOK, tree)
}
