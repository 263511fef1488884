package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mediavault/mediavault/internal/media"
)

// MediaPathPrefix is where stored objects are served from. It matches the default
// storage public base URL.
const MediaPathPrefix = "/media"

// MediaHandler streams stored objects back to consumers.
type MediaHandler struct {
	logger  *slog.Logger
	storage media.StorageProvider
}

func NewMediaHandler(log *slog.Logger, storage media.StorageProvider) *MediaHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MediaHandler{
		logger:  log.With(slog.String("handler", "media")),
		storage: storage,
	}
}

func (h *MediaHandler) Register(e *echo.Echo) {
	e.GET(MediaPathPrefix+"/*", h.Get)
	e.HEAD(MediaPathPrefix+"/*", h.Get)
}

// Get streams one object by key.
func (h *MediaHandler) Get(c echo.Context) error {
	if h.storage == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage not configured")
	}
	key, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid media key")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return echo.NewHTTPError(http.StatusNotFound, "media not found")
	}

	reader, err := h.storage.Open(c.Request().Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrObjectNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "media not found")
		case errors.Is(err, media.ErrPathTraversal):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid media key")
		default:
			h.logger.Error("open media failed", slog.String("key", key), slog.Any("error", err))
			return echo.NewHTTPError(http.StatusInternalServerError, "open media failed")
		}
	}
	defer reader.Close()

	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	contentType := media.ContentType("", path.Ext(key))
	if c.Request().Method == http.MethodHead {
		c.Response().Header().Set(echo.HeaderContentType, contentType)
		return c.NoContent(http.StatusOK)
	}
	return c.Stream(http.StatusOK, contentType, reader)
}
