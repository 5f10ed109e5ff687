package handlers

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/threadline/backend/internal/media"
	"github.com/threadline/backend/internal/middleware"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/services"
)

// mediaField is the multipart field carrying attachments
const mediaField = "media"

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	posts PostWriter
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(posts PostWriter) *PostHandler {
	return &PostHandler{posts: posts}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group, requireViewer echo.MiddlewareFunc) {
	g.POST("/posts", h.CreatePost, requireViewer)
	g.PATCH("/posts/:id", h.UpdatePost, requireViewer)
	g.DELETE("/posts/:id", h.DeletePost, requireViewer)
}

// CreatePost creates a post or reply from a multipart form
func (h *PostHandler) CreatePost(c echo.Context) error {
	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	files, closeAll, err := openUploads(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid media upload")
	}
	defer closeAll()

	ctx := c.Request().Context()
	resp, err := h.posts.Create(ctx, middleware.ViewerID(ctx), services.CreatePostInput{
		Text:       req.Text,
		ParentPost: req.ParentPost,
		Files:      files,
	})
	if err != nil {
		return httpError(c, err, "Failed to create post")
	}
	return c.JSON(http.StatusCreated, resp)
}

// openUploads opens every file of the media field. The returned func closes them.
func openUploads(c echo.Context) ([]media.UploadInput, func(), error) {
	noop := func() {}
	form, err := c.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return nil, noop, nil
		}
		return nil, noop, err
	}

	var (
		inputs  []media.UploadInput
		closers []io.Closer
	)
	closeAll := func() {
		for _, cl := range closers {
			cl.Close()
		}
	}
	for _, fh := range form.File[mediaField] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, err
		}
		closers = append(closers, f)
		inputs = append(inputs, uploadInput(fh, f))
	}
	return inputs, closeAll, nil
}

func uploadInput(fh *multipart.FileHeader, f multipart.File) media.UploadInput {
	return media.UploadInput{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}
}

// UpdatePost edits a post's text
func (h *PostHandler) UpdatePost(c echo.Context) error {
	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	post, err := h.posts.Update(ctx, middleware.ViewerID(ctx), c.Param("id"), req.Text)
	if err != nil {
		return httpError(c, err, "Failed to update post")
	}
	return c.JSON(http.StatusOK, post)
}

// DeletePost deletes a post together with its replies
func (h *PostHandler) DeletePost(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.posts.Delete(ctx, middleware.ViewerID(ctx), c.Param("id")); err != nil {
		return httpError(c, err, "Failed to delete post")
	}
	return c.NoContent(http.StatusNoContent)
}
