package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/backend/internal/logging"
)

type staticVerifier map[string]string

func (s staticVerifier) Verify(_ context.Context, token string) (*Viewer, error) {
	if id, ok := s[token]; ok {
		return &Viewer{UserID: id}, nil
	}
	return nil, ErrInvalidToken
}

func serve(t *testing.T, mw echo.MiddlewareFunc, req *http.Request, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/", h, mw)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDGeneratesAndPropagates(t *testing.T) {
	var seen *RequestContext
	var logged string
	rec := serve(t, RequestID(), httptest.NewRequest(http.MethodGet, "/", nil), func(c echo.Context) error {
		seen = FromContext(c.Request().Context())
		logged = logging.RequestIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	require.NotNil(t, seen)
	assert.Len(t, seen.RequestID, 36)
	assert.Equal(t, seen.RequestID, logged)
	assert.Equal(t, seen.RequestID, rec.Header().Get(HeaderRequestID))
	assert.False(t, seen.Started.IsZero())
}

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")

	rec := serve(t, RequestID(), req, func(c echo.Context) error {
		return c.String(http.StatusOK, FromContext(c.Request().Context()).RequestID)
	})
	assert.Equal(t, "abc-123", rec.Body.String())
}

func TestIdentify(t *testing.T) {
	pipeline := Compose(RequestID(), Identify(staticVerifier{"good": "u1"}))
	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "viewer="+ViewerID(c.Request().Context()))
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "anonymous", wantStatus: http.StatusOK, wantBody: "viewer="},
		{name: "valid token", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "viewer=u1"},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK, wantBody: "viewer=u1"},
		{name: "invalid token", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic Zm9vOmJhcg==", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := serve(t, pipeline, req, handler)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestIdentifyTriesVerifiersInOrder(t *testing.T) {
	pipeline := Compose(Identify(staticVerifier{}, staticVerifier{"fb-token": "u9"}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer fb-token")

	rec := serve(t, pipeline, req, func(c echo.Context) error {
		return c.String(http.StatusOK, ViewerID(c.Request().Context()))
	})
	assert.Equal(t, "u9", rec.Body.String())
}

func TestIdentifyDoesNotMutateEarlierContext(t *testing.T) {
	var before *RequestContext
	capture := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			before = FromContext(c.Request().Context())
			return next(c)
		}
	}
	pipeline := Compose(RequestID(), capture, Identify(staticVerifier{"good": "u1"}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good")

	var after *RequestContext
	serve(t, pipeline, req, func(c echo.Context) error {
		after = FromContext(c.Request().Context())
		return nil
	})

	require.NotNil(t, before)
	require.NotNil(t, after)
	assert.Nil(t, before.Viewer)
	assert.Equal(t, "u1", after.Viewer.UserID)
	assert.Equal(t, before.RequestID, after.RequestID)
}

func TestRequireViewer(t *testing.T) {
	pipeline := Compose(Identify(staticVerifier{"good": "u1"}), RequireViewer())
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	rec := serve(t, pipeline, httptest.NewRequest(http.MethodGet, "/", nil), ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good")
	rec = serve(t, pipeline, req, ok)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTimeoutSetsDeadline(t *testing.T) {
	rec := serve(t, Timeout(50*time.Millisecond), httptest.NewRequest(http.MethodGet, "/", nil), func(c echo.Context) error {
		deadline, ok := c.Request().Context().Deadline()
		if !ok || time.Until(deadline) > 50*time.Millisecond {
			return errors.New("missing deadline")
		}
		<-c.Request().Context().Done()
		return c.NoContent(http.StatusGatewayTimeout)
	})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestComposeOrder(t *testing.T) {
	var order []string
	stage := func(name string) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				order = append(order, name)
				return next(c)
			}
		}
	}
	serve(t, Compose(stage("a"), stage("b"), stage("c")), httptest.NewRequest(http.MethodGet, "/", nil), func(c echo.Context) error {
		order = append(order, "handler")
		return nil
	})
	assert.Equal(t, []string{"a", "b", "c", "handler"}, order)
}

func TestAccessLogPassesThrough(t *testing.T) {
	rec := serve(t, Compose(RequestID(), AccessLog()), httptest.NewRequest(http.MethodGet, "/", nil), func(c echo.Context) error {
		return c.NoContent(http.StatusTeapot)
	})
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
