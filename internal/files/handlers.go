package files

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/driftwood/driftwood/internal/pathutil"
)

// Handlers provides the HTTP surface for the files service.
type Handlers struct {
	service *Service
	logger  zerolog.Logger
}

// NewHandlers creates a new files handlers instance.
func NewHandlers(service *Service, logger zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger.With().Str("component", "files-api").Logger(),
	}
}

// RegisterRoutes registers the files routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Browse)
	g.POST("/upload", h.Upload)
	g.POST("/delete", h.Delete)
	g.POST("/folders", h.CreateFolder)
	g.GET("/download", h.Download)
	g.GET("/stats", h.Stats)
}

// Browse handles GET /api/v1/files?path=
// A path that resolves to a file redirects to the download route.
func (h *Handlers) Browse(c echo.Context) error {
	relPath := c.QueryParam("path")

	result, err := h.service.List(c.Request().Context(), relPath)
	if err != nil {
		if errors.Is(err, ErrNotDirectory) {
			target := "/api/v1/files/download?path=" + url.QueryEscape(relPath)
			return c.Redirect(http.StatusFound, target)
		}
		return h.mapError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// Upload handles POST /api/v1/files/upload (multipart).
// Files land under Root/<Category> by extension; the "path" field is only
// the post-upload return target. One rejected file never aborts the rest.
func (h *Handlers) Upload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}

	uploads := form.File["files"]
	if len(uploads) == 0 {
		return h.mapError(ErrNoFiles)
	}

	returnPath := c.FormValue("path")

	summary := UploadSummary{
		Saved:    []SavedFile{},
		Rejected: []RejectedFile{},
		Redirect: returnPath,
	}

	ctx := c.Request().Context()
	for _, fh := range uploads {
		src, err := fh.Open()
		if err != nil {
			summary.Rejected = append(summary.Rejected, RejectedFile{
				Name:   fh.Filename,
				Reason: "could not read uploaded file",
			})
			continue
		}

		saved, err := h.service.Save(ctx, UploadItem{Name: fh.Filename, Reader: src})
		src.Close()
		if err != nil {
			h.logger.Warn().Err(err).Str("name", fh.Filename).Msg("upload rejected")
			summary.Rejected = append(summary.Rejected, RejectedFile{
				Name:   fh.Filename,
				Reason: rejectionReason(err),
			})
			continue
		}

		summary.Saved = append(summary.Saved, *saved)
	}

	summary.Message = fmt.Sprintf("Uploaded %d file(s)", len(summary.Saved))
	if n := len(summary.Rejected); n > 0 {
		summary.Message += fmt.Sprintf(", %d rejected", n)
	}

	return c.JSON(http.StatusOK, summary)
}

// Delete handles POST /api/v1/files/delete.
func (h *Handlers) Delete(c echo.Context) error {
	var req struct {
		Path string `json:"path" form:"path"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	parent, err := h.service.Delete(c.Request().Context(), req.Path)
	if err != nil {
		return h.mapError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message":  "Deleted successfully",
		"redirect": parent,
	})
}

// CreateFolder handles POST /api/v1/files/folders.
func (h *Handlers) CreateFolder(c echo.Context) error {
	var req struct {
		Path string `json:"path" form:"path"`
		Name string `json:"name" form:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.service.CreateFolder(c.Request().Context(), req.Path, req.Name); err != nil {
		return h.mapError(err)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message":  "Folder created",
		"redirect": req.Path,
	})
}

// Download handles GET /api/v1/files/download?path=
// Streams the file as an attachment with range support.
func (h *Handlers) Download(c echo.Context) error {
	relPath := c.QueryParam("path")

	d, err := h.service.Open(c.Request().Context(), relPath)
	if err != nil {
		return h.mapError(err)
	}
	defer d.File.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, d.Name))

	http.ServeContent(c.Response(), c.Request(), d.Name, d.ModTime, d.File)
	return nil
}

// Stats handles GET /api/v1/files/stats.
func (h *Handlers) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context())
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// mapError maps service errors to HTTP errors.
func (h *Handlers) mapError(err error) error {
	switch {
	case errors.Is(err, pathutil.ErrPathEscapesRoot), errors.Is(err, ErrRootImmutable):
		return echo.NewHTTPError(http.StatusForbidden, "Path is outside the storage root")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Path does not exist")
	case errors.Is(err, ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "Target already exists")
	case errors.Is(err, pathutil.ErrEmptyName):
		return echo.NewHTTPError(http.StatusBadRequest, "Name is empty after sanitization")
	case errors.Is(err, ErrExtensionNotAllowed):
		return echo.NewHTTPError(http.StatusBadRequest, "File extension not allowed")
	case errors.Is(err, ErrNoFiles):
		return echo.NewHTTPError(http.StatusBadRequest, "No files selected")
	case errors.Is(err, ErrIsDirectory):
		return echo.NewHTTPError(http.StatusBadRequest, "Path is a directory")
	case errors.Is(err, ErrNotDirectory):
		return echo.NewHTTPError(http.StatusBadRequest, "Path is not a directory")
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}

// rejectionReason converts a save error to the short per-file reason
// reported in the upload summary.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrExtensionNotAllowed):
		return "file extension not allowed"
	case errors.Is(err, pathutil.ErrEmptyName):
		return "filename is empty after sanitization"
	default:
		return "could not save file"
	}
}
