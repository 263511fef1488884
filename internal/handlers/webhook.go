package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mediavault/mediavault/internal/config"
	"github.com/mediavault/mediavault/internal/ingest"
	"github.com/mediavault/mediavault/internal/server"
	"github.com/mediavault/mediavault/internal/telegram"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

const (
	msgNoContent       = "No message content to process"
	msgProcessed       = "Webhook processed successfully"
	msgInvalidSecret   = "Unauthorized - Invalid webhook secret"
	msgMissingBotToken = "Unauthorized - Missing bot token"
	msgIngestNotReady  = "webhook dependencies not configured"
)

type webhookAuthorizer interface {
	Authorize(header string) error
}

type webhookIngester interface {
	Ingest(ctx context.Context, event telegram.Event) (ingest.Report, error)
}

// WebhookHandler receives Telegram Bot API update callbacks.
type WebhookHandler struct {
	logger   *slog.Logger
	path     string
	guard    webhookAuthorizer
	pipeline webhookIngester
}

// NewWebhookHandler creates the public webhook endpoint.
func NewWebhookHandler(log *slog.Logger, path string, guard webhookAuthorizer, pipeline webhookIngester) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = config.DefaultWebhookPath
	}
	return &WebhookHandler{
		logger:   log.With(slog.String("handler", "telegram_webhook")),
		path:     path,
		guard:    guard,
		pipeline: pipeline,
	}
}

// NewWebhookServerHandler is a DI-friendly constructor for fx, using concrete types.
func NewWebhookServerHandler(log *slog.Logger, cfg config.Config, guard *ingest.AuthGuard, pipeline *ingest.Pipeline) *WebhookHandler {
	return NewWebhookHandler(log, cfg.Server.WebhookPath, guard, pipeline)
}

// Register registers the webhook routes. The root path is kept as an alias.
func (h *WebhookHandler) Register(e *echo.Echo) {
	for _, p := range h.paths() {
		e.POST(p, h.Handle)
		e.OPTIONS(p, h.HandleOptions)
	}
}

func (h *WebhookHandler) paths() []string {
	if h.path == "/" {
		return []string{"/"}
	}
	return []string{h.path, "/"}
}

// HandleOptions answers CORS preflight requests.
func (h *WebhookHandler) HandleOptions(c echo.Context) error {
	setCORSHeaders(c)
	return c.NoContent(http.StatusNoContent)
}

// Handle authenticates, classifies and ingests one update.
func (h *WebhookHandler) Handle(c echo.Context) error {
	setCORSHeaders(c)
	if h.guard == nil || h.pipeline == nil {
		return c.JSON(http.StatusInternalServerError, failure(msgIngestNotReady))
	}

	if err := h.guard.Authorize(c.Request().Header.Get(ingest.SecretHeader)); err != nil {
		msg := msgInvalidSecret
		if errors.Is(err, ingest.ErrMissingBotToken) {
			msg = msgMissingBotToken
		}
		h.logger.Warn("webhook rejected", slog.String("remote_ip", c.RealIP()), slog.Any("error", err))
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, failure(fmt.Sprintf("read body: %v", err)))
	}
	if int64(len(payload)) > webhookMaxBodyBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, failure(fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes)))
	}

	event, err := telegram.Classify(payload)
	if err != nil {
		h.logger.Warn("malformed update", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, failure(err.Error()))
	}
	if event.Empty() {
		h.logger.Debug("update without message", slog.Int("update_id", event.UpdateID))
		return c.JSON(http.StatusOK, success(msgNoContent))
	}

	// Ingestion outlives a dropped connection.
	report, err := h.pipeline.Ingest(context.WithoutCancel(c.Request().Context()), event)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, failure(err.Error()))
	}
	h.logger.Debug("webhook processed", slog.String("report", report.String()))
	return c.JSON(http.StatusOK, success(msgProcessed))
}

func setCORSHeaders(c echo.Context) {
	header := c.Response().Header()
	header.Set(echo.HeaderAccessControlAllowOrigin, strings.Join(server.AllowOrigins, ","))
	header.Set(echo.HeaderAccessControlAllowHeaders, strings.Join(server.AllowHeaders, ", "))
}

func success(message string) map[string]any {
	return map[string]any{"success": true, "message": message}
}

func failure(message string) map[string]any {
	return map[string]any{"success": false, "error": message}
}
