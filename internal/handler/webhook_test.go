package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"affiliate-attribution/internal/client"
	"affiliate-attribution/internal/config"
	"affiliate-attribution/internal/model"
	"affiliate-attribution/internal/repository"
	"affiliate-attribution/internal/service"
	"affiliate-attribution/internal/webhook"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "wh-secret"

var dbSeq atomic.Int64

func newTestStack(t *testing.T, production bool, secret string) *echo.Echo {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := client.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	rate, _ := decimal.NewFromString("10")
	merchant := &model.Merchant{
		Name:                  "Test Store",
		Platform:              "salla",
		ExternalStoreID:       "111",
		CommissionRate:        rate,
		AttributionWindowDays: 30,
	}
	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	click := &model.ClickTracking{
		TrackingID:      "RAFF-AB12CD",
		MerchantID:      merchant.ID,
		CommissionRate:  rate,
		ExpiresAt:       time.Now().Add(24 * time.Hour),
		ConversionValue: decimal.Zero,
		CommissionValue: decimal.Zero,
	}
	if err := db.Create(click).Error; err != nil {
		t.Fatalf("seed click: %v", err)
	}

	log := zap.NewNop()
	commissionRepo := repository.NewCommissionRepository(db)
	processor := service.NewWebhookProcessor(
		db, log,
		repository.NewMerchantRepository(db),
		repository.NewWebhookEventRepository(db),
		repository.NewClickTrackingRepository(db),
		commissionRepo,
		service.NewFraudDetector(config.Fraud{Enabled: false}, commissionRepo, repository.NewFraudSignalRepository(db), log),
		service.NewLoggingSyncTrigger(log),
		webhook.NewSallaNormalizer(),
		webhook.NewZidNormalizer(),
	)

	channel := config.PlatformWebhook{WebhookSecret: secret, SignatureMode: webhook.ModeHMACSHA256}
	platforms := map[string]PlatformSettings{
		"salla": ResolvePlatformSettings("salla", channel),
		"zid":   ResolvePlatformSettings("zid", channel),
	}
	h := NewWebhookHandler(log, processor, platforms, production, 5*time.Second)

	e := echo.New()
	e.POST("/webhooks/:platform", h.Handle)
	return e
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func deliver(e *echo.Echo, platform string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+platform, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sallaHeaders(body []byte) map[string]string {
	return map[string]string{
		"X-Salla-Signature":         sign(testSecret, body),
		"X-Salla-Security-Strategy": "signature",
		"X-Salla-Delivery-Id":       "dl-1",
	}
}

const orderCreatedBody = `{"event":"order.created","merchant":111,"created_at":"2026-01-02T10:00:00Z","data":{"id":9001,"status":{"slug":"under_review"},"payment_status":"pending","amounts":{"total":{"amount":100.00,"currency":"SAR"}},"referrer_code":"RAFF-AB12CD"}}`

func TestWebhookHappyPath(t *testing.T) {
	e := newTestStack(t, false, testSecret)
	body := []byte(orderCreatedBody)

	rec := deliver(e, "salla", body, sallaHeaders(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		Received  bool   `json:"received"`
		Duplicate bool   `json:"duplicate"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Received || resp.Duplicate {
		t.Errorf("response = %+v", resp)
	}
	if resp.Message != "attributed" {
		t.Errorf("message = %q", resp.Message)
	}

	// Redelivery of the same event acknowledges as a duplicate.
	rec = deliver(e, "salla", body, sallaHeaders(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Duplicate {
		t.Errorf("redelivery not flagged duplicate: %+v", resp)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	e := newTestStack(t, false, testSecret)
	body := []byte(orderCreatedBody)

	headers := sallaHeaders(body)
	headers["X-Salla-Signature"] = sign("wrong-secret", body)
	rec := deliver(e, "salla", body, headers)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d", rec.Code)
	}

	headers = sallaHeaders(body)
	delete(headers, "X-Salla-Signature")
	rec = deliver(e, "salla", body, headers)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing signature: status = %d", rec.Code)
	}
}

func TestWebhookRejectsUnexpectedStrategy(t *testing.T) {
	e := newTestStack(t, false, testSecret)
	body := []byte(orderCreatedBody)

	headers := sallaHeaders(body)
	headers["X-Salla-Security-Strategy"] = "token"
	rec := deliver(e, "salla", body, headers)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookUnknownPlatform(t *testing.T) {
	e := newTestStack(t, false, testSecret)
	body := []byte(orderCreatedBody)

	rec := deliver(e, "shopify", body, sallaHeaders(body))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWebhookUnknownStore(t *testing.T) {
	e := newTestStack(t, false, testSecret)
	body := []byte(`{"event":"order.created","merchant":999,"data":{"id":1,"status":{"slug":"under_review"},"payment_status":"pending","amounts":{"total":{"amount":10,"currency":"SAR"}}}}`)

	rec := deliver(e, "salla", body, sallaHeaders(body))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	e := newTestStack(t, false, testSecret)
	body := []byte(`{"no":"envelope"}`)

	rec := deliver(e, "salla", body, sallaHeaders(body))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookMissingSecret(t *testing.T) {
	body := []byte(orderCreatedBody)
	headers := map[string]string{
		"X-Salla-Signature":         sign(testSecret, body),
		"X-Salla-Security-Strategy": "signature",
	}

	// Development without a secret rejects like any bad signature.
	e := newTestStack(t, false, "")
	rec := deliver(e, "salla", body, headers)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("development: status = %d, want 401", rec.Code)
	}

	// Production without a secret is a deployment fault, not a caller fault.
	e = newTestStack(t, true, "")
	rec = deliver(e, "salla", body, headers)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("production: status = %d, want 500", rec.Code)
	}
}
