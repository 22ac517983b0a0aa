package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrCannotNormalize = errors.New("payload cannot be normalized")

// EventKind routes a platform event type to a pipeline branch.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindOrder
	KindProduct
	KindApp
)

func (k EventKind) String() string {
	switch k {
	case KindOrder:
		return "order"
	case KindProduct:
		return "product"
	case KindApp:
		return "app"
	default:
		return "unknown"
	}
}

// ClassifyEvent maps a platform event type string ("order.status.updated",
// "product.created", "app.installed", ...) to its kind. Anything outside the
// known families is KindUnknown and the delivery is accepted without action.
func ClassifyEvent(eventType string) EventKind {
	family, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(eventType)), ".")
	switch family {
	case "order":
		return KindOrder
	case "product":
		return KindProduct
	case "app":
		return KindApp
	default:
		return KindUnknown
	}
}

// StatusVocabulary is the platform-specific status classification, kept as
// data because upstream naming is inconsistent (canceled vs cancelled,
// delivered vs completed) and differs per platform.
type StatusVocabulary struct {
	ConfirmedPayment []string
	ConfirmedOrder   []string
	Cancelled        []string
}

func containsStatus(set []string, status string) bool {
	status = strings.ToLower(strings.TrimSpace(status))
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// NormalizedOrderEvent is the canonical order event every platform payload is
// mapped into before any side effect runs.
type NormalizedOrderEvent struct {
	Platform       string
	StoreID        string
	EventType      string
	OrderID        string
	Total          decimal.Decimal
	Currency       string
	PaymentStatus  string
	OrderStatus    string
	ReferrerCode   string
	OccurredAt     time.Time
	IdempotencyKey string

	vocab *StatusVocabulary
}

// IsPaymentConfirmed reports whether this event observes a confirmed payment,
// either via the payment status or an order status that implies payment.
func (e *NormalizedOrderEvent) IsPaymentConfirmed() bool {
	return containsStatus(e.vocab.ConfirmedPayment, e.PaymentStatus) ||
		containsStatus(e.vocab.ConfirmedOrder, e.OrderStatus)
}

// IsCancelled reports whether this event observes a cancelled or refunded order.
func (e *NormalizedOrderEvent) IsCancelled() bool {
	return containsStatus(e.vocab.Cancelled, e.OrderStatus) ||
		containsStatus(e.vocab.Cancelled, e.PaymentStatus)
}

// Normalizer maps one platform's raw JSON payloads into canonical events.
type Normalizer interface {
	Platform() string
	// Envelope extracts the event type and store id without requiring the
	// payload to be a normalizable order (product and app events share the
	// same envelope).
	Envelope(body []byte) (eventType, storeID string, err error)
	// NormalizeOrder maps an order payload to the canonical event.
	NormalizeOrder(eventType string, body []byte) (*NormalizedOrderEvent, error)
}

// IdempotencyKey derives the dedupe key from the event's identifying fields
// only, so the same logical event keeps the same key across redeliveries with
// different wrapper metadata.
func IdempotencyKey(platform, storeID, eventType, orderID string) string {
	sum := sha256.Sum256([]byte(platform + "|" + storeID + "|" + eventType + "|" + orderID))
	return hex.EncodeToString(sum[:])
}
