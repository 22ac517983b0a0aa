package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Zid envelope: { "event": "...", "store_id": ..., "payload": { ...order... } }.
// Zid's numeric fields arrive as strings ("100.00"), and its status naming
// differs from Salla's, which is why the vocabulary is per platform.

type zidEnvelope struct {
	Event     string          `json:"event"`
	StoreID   json.Number     `json:"store_id"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type zidOrder struct {
	ID            json.Number     `json:"id"`
	Code          string          `json:"code"`
	OrderStatus   string          `json:"order_status"`
	PaymentStatus string          `json:"payment_status"`
	OrderTotal    decimal.Decimal `json:"order_total"`
	CurrencyCode  string          `json:"currency_code"`
	ReferralCode  string          `json:"referral_code"`
}

var zidVocabulary = StatusVocabulary{
	ConfirmedPayment: []string{"paid", "payment_captured"},
	ConfirmedOrder:   []string{"delivered", "completed"},
	Cancelled:        []string{"canceled", "cancelled", "reversed", "refunded"},
}

type ZidNormalizer struct{}

func NewZidNormalizer() *ZidNormalizer { return &ZidNormalizer{} }

func (n *ZidNormalizer) Platform() string { return "zid" }

func (n *ZidNormalizer) Envelope(body []byte) (string, string, error) {
	var env zidEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrCannotNormalize, err)
	}
	if env.Event == "" {
		return "", "", fmt.Errorf("%w: missing event field", ErrCannotNormalize)
	}
	if env.StoreID.String() == "" {
		return "", "", fmt.Errorf("%w: missing store id", ErrCannotNormalize)
	}
	return env.Event, env.StoreID.String(), nil
}

func (n *ZidNormalizer) NormalizeOrder(eventType string, body []byte) (*NormalizedOrderEvent, error) {
	var env zidEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotNormalize, err)
	}

	var order zidOrder
	if err := json.Unmarshal(env.Payload, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotNormalize, err)
	}

	orderID := order.ID.String()
	if orderID == "" {
		orderID = order.Code
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrCannotNormalize)
	}

	storeID := env.StoreID.String()
	if storeID == "" {
		return nil, fmt.Errorf("%w: missing store id", ErrCannotNormalize)
	}

	occurredAt := time.Now().UTC()
	if env.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, env.Timestamp); err == nil {
			occurredAt = t
		}
	}

	return &NormalizedOrderEvent{
		Platform:       n.Platform(),
		StoreID:        storeID,
		EventType:      eventType,
		OrderID:        orderID,
		Total:          order.OrderTotal,
		Currency:       order.CurrencyCode,
		PaymentStatus:  order.PaymentStatus,
		OrderStatus:    order.OrderStatus,
		ReferrerCode:   order.ReferralCode,
		OccurredAt:     occurredAt,
		IdempotencyKey: IdempotencyKey(n.Platform(), storeID, eventType, orderID),
		vocab:          &zidVocabulary,
	}, nil
}
