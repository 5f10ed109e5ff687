package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/threadline/backend/internal/logging"
	"github.com/threadline/backend/internal/metrics"
)

// HeaderRequestID carries the request id in and out
const HeaderRequestID = "X-Request-ID"

// Viewer is the authenticated caller
type Viewer struct {
	UserID string
}

// RequestContext is the typed state the pipeline stages hand to each other.
// Stages never mutate a RequestContext in place; they derive a new one.
type RequestContext struct {
	RequestID string
	Viewer    *Viewer // nil for anonymous requests
	Started   time.Time
}

type requestContextKey struct{}

// WithRequestContext stores rc in ctx
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext returns the RequestContext stored in ctx, or nil
func FromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}

// ViewerID returns the authenticated user id, or "" for anonymous requests
func ViewerID(ctx context.Context) string {
	if rc := FromContext(ctx); rc != nil && rc.Viewer != nil {
		return rc.Viewer.UserID
	}
	return ""
}

// Compose chains stages so that the first one runs outermost
func Compose(stages ...echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		for i := len(stages) - 1; i >= 0; i-- {
			next = stages[i](next)
		}
		return next
	}
}

func replaceContext(c echo.Context, ctx context.Context) {
	c.SetRequest(c.Request().WithContext(ctx))
}

// RequestID produces the RequestContext. It consumes an incoming
// X-Request-ID when present and generates one otherwise.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, id)

			ctx := logging.ContextWithRequestID(c.Request().Context(), id)
			ctx = WithRequestContext(ctx, &RequestContext{RequestID: id, Started: time.Now()})
			replaceContext(c, ctx)
			return next(c)
		}
	}
}

// Timeout bounds the request context. Store calls observe the deadline and
// abort; the like and post transactions then roll back as a whole.
func Timeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if d <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			replaceContext(c, ctx)
			return next(c)
		}
	}
}

// AccessLog writes one structured log line and one latency sample per request
func AccessLog() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRoutePath: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			metrics.ObserveHTTPRequest(v.Method, v.RoutePath, v.Status, v.Latency)

			event := logging.Ctx(c.Request().Context()).Info()
			if v.Status >= http.StatusInternalServerError {
				event = logging.Ctx(c.Request().Context()).Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("viewer", ViewerID(c.Request().Context())).
				Msg("request")
			return nil
		},
	})
}

// TokenVerifier turns a bearer token into a Viewer
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Viewer, error)
}

// ErrInvalidToken is returned by verifiers for tokens they cannot accept
var ErrInvalidToken = errors.New("invalid token")

// Identify consumes the Authorization header and produces the Viewer. A
// request without a header stays anonymous; a header that no verifier
// accepts is rejected with 401.
func Identify(verifiers ...TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return next(c)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must be in Bearer format")
			}

			ctx := c.Request().Context()
			for _, v := range verifiers {
				viewer, err := v.Verify(ctx, parts[1])
				if err != nil {
					continue
				}
				rc := RequestContext{}
				if prev := FromContext(ctx); prev != nil {
					rc = *prev
				}
				rc.Viewer = viewer
				replaceContext(c, WithRequestContext(ctx, &rc))
				return next(c)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}
	}
}

// RequireViewer rejects anonymous requests
func RequireViewer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ViewerID(c.Request().Context()) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			return next(c)
		}
	}
}
