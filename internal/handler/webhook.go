package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"affiliate-attribution/internal/config"
	"affiliate-attribution/internal/service"
	"affiliate-attribution/internal/webhook"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PlatformSettings is the resolved per-platform inbound channel configuration.
type PlatformSettings struct {
	Signature        webhook.SignatureConfig
	SignatureHeader  string
	StrategyHeader   string
	ExpectedStrategy string
	DeliveryIDHeader string
}

var defaultHeaders = map[string]PlatformSettings{
	"salla": {
		SignatureHeader:  "X-Salla-Signature",
		StrategyHeader:   "X-Salla-Security-Strategy",
		ExpectedStrategy: "signature",
		DeliveryIDHeader: "X-Salla-Delivery-Id",
	},
	"zid": {
		SignatureHeader:  "X-Zid-Signature",
		DeliveryIDHeader: "X-Zid-Delivery-Id",
	},
}

// ResolvePlatformSettings merges the configured channel with the platform's
// default header names.
func ResolvePlatformSettings(platform string, cfg config.PlatformWebhook) PlatformSettings {
	settings := defaultHeaders[platform]
	settings.Signature = webhook.SignatureConfig{
		Mode:        cfg.SignatureMode,
		Secret:      cfg.WebhookSecret,
		ConcatOrder: cfg.SHA256Order,
	}
	if cfg.SignatureHeader != "" {
		settings.SignatureHeader = cfg.SignatureHeader
	}
	if cfg.StrategyHeader != "" {
		settings.StrategyHeader = cfg.StrategyHeader
	}
	if cfg.ExpectedStrategy != "" {
		settings.ExpectedStrategy = cfg.ExpectedStrategy
	}
	if cfg.DeliveryIDHeader != "" {
		settings.DeliveryIDHeader = cfg.DeliveryIDHeader
	}
	return settings
}

type WebhookHandler struct {
	log        *zap.Logger
	processor  *service.WebhookProcessor
	platforms  map[string]PlatformSettings
	production bool
	timeout    time.Duration
}

func NewWebhookHandler(
	log *zap.Logger,
	processor *service.WebhookProcessor,
	platforms map[string]PlatformSettings,
	production bool,
	timeout time.Duration,
) *WebhookHandler {
	return &WebhookHandler{
		log:        log,
		processor:  processor,
		platforms:  platforms,
		production: production,
		timeout:    timeout,
	}
}

type webhookResponse struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message"`
}

// Handle is the single inbound webhook endpoint, POST /webhooks/:platform.
// Any logically-complete outcome (handled, duplicate, organic order, unknown
// event kind) responds 200 so the platform stops retrying.
func (h *WebhookHandler) Handle(c echo.Context) error {
	platform := c.Param("platform")
	settings, ok := h.platforms[platform]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown platform")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read request body")
	}

	if settings.ExpectedStrategy != "" {
		strategy := c.Request().Header.Get(settings.StrategyHeader)
		if strategy != settings.ExpectedStrategy {
			return echo.NewHTTPError(http.StatusUnauthorized, "unsupported security strategy")
		}
	}

	signature := c.Request().Header.Get(settings.SignatureHeader)
	if err := webhook.VerifySignature(body, signature, settings.Signature); err != nil {
		if errors.Is(err, webhook.ErrSecretMissing) && h.production {
			// A production channel without a secret must alarm, never pass
			// unsigned traffic.
			h.log.Error("webhook secret missing in production", zap.String("platform", platform))
			return echo.NewHTTPError(http.StatusInternalServerError, "webhook channel misconfigured")
		}
		h.log.Warn("webhook signature rejected", zap.String("platform", platform), zap.Error(err))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	deliveryID := ""
	if settings.DeliveryIDHeader != "" {
		deliveryID = c.Request().Header.Get(settings.DeliveryIDHeader)
	}

	// The platform times out and retries slow handlers; bounding our own
	// processing turns a slow success into a detectable duplicate instead of
	// an open-ended request.
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	result, err := h.processor.Process(ctx, platform, body, deliveryID)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrCannotNormalize):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnknownStore), errors.Is(err, service.ErrUnknownPlatform):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		default:
			h.log.Error("webhook processing failed",
				zap.String("platform", platform),
				zap.Error(err),
			)
			// 500 makes the platform retry; the ledger makes the retry safe.
			return echo.NewHTTPError(http.StatusInternalServerError, "webhook processing failed")
		}
	}

	return c.JSON(http.StatusOK, webhookResponse{
		Received:  true,
		Duplicate: result.Duplicate,
		Message:   result.Message,
	})
}
