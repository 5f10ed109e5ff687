package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/threadline/backend/internal/logging"
	"github.com/threadline/backend/internal/repositories"
	"github.com/threadline/backend/internal/serializers"
	"github.com/threadline/backend/internal/services"
)

// httpError maps a service or repository error onto an HTTP error. Anything
// unrecognized, including data-integrity failures, is logged and reported
// as a generic 500.
func httpError(c echo.Context, err error, fallback string) error {
	var he *echo.HTTPError
	var integrity *serializers.IntegrityError

	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, services.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, repositories.ErrInvalidID):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid post id")
	case errors.Is(err, services.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrEditWindowClosed):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, repositories.ErrPostNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	case errors.Is(err, repositories.ErrParentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Parent post not found")
	case errors.Is(err, repositories.ErrLikeConflict):
		return echo.NewHTTPError(http.StatusConflict, "Like state changed concurrently, try again")
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Request timed out")
	case errors.As(err, &integrity):
		logging.Ctx(c.Request().Context()).Error().Err(err).
			Str("post_id", integrity.PostID).Str("author_id", integrity.AuthorID).
			Msg("data integrity violation")
		return echo.NewHTTPError(http.StatusInternalServerError, fallback)
	}

	logging.Ctx(c.Request().Context()).Error().Err(err).Msg(fallback)
	return echo.NewHTTPError(http.StatusInternalServerError, fallback)
}
