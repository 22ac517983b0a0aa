package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Salla envelope: { "event": "...", "merchant": <store id>, "created_at": "...",
// "data": { ...order... } }.

type sallaEnvelope struct {
	Event     string          `json:"event"`
	Merchant  json.Number     `json:"merchant"`
	CreatedAt string          `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

type sallaMoney struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type sallaAmounts struct {
	Total sallaMoney `json:"total"`
}

type sallaStatus struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
	Slug string      `json:"slug"`
}

type sallaOrder struct {
	ID            json.Number  `json:"id"`
	ReferenceID   json.Number  `json:"reference_id"`
	Status        sallaStatus  `json:"status"`
	PaymentStatus string       `json:"payment_status"`
	Amounts       sallaAmounts `json:"amounts"`
	ReferrerCode  string       `json:"referrer_code"`
	Currency      string       `json:"currency"`
}

var sallaVocabulary = StatusVocabulary{
	ConfirmedPayment: []string{"paid", "captured"},
	ConfirmedOrder:   []string{"completed", "delivered"},
	Cancelled:        []string{"cancelled", "canceled", "refunded", "restored", "restoring"},
}

type SallaNormalizer struct{}

func NewSallaNormalizer() *SallaNormalizer { return &SallaNormalizer{} }

func (n *SallaNormalizer) Platform() string { return "salla" }

func (n *SallaNormalizer) Envelope(body []byte) (string, string, error) {
	var env sallaEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrCannotNormalize, err)
	}
	if env.Event == "" {
		return "", "", fmt.Errorf("%w: missing event field", ErrCannotNormalize)
	}
	if env.Merchant.String() == "" {
		return "", "", fmt.Errorf("%w: missing merchant id", ErrCannotNormalize)
	}
	return env.Event, env.Merchant.String(), nil
}

func (n *SallaNormalizer) NormalizeOrder(eventType string, body []byte) (*NormalizedOrderEvent, error) {
	var env sallaEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotNormalize, err)
	}

	var order sallaOrder
	if err := json.Unmarshal(env.Data, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotNormalize, err)
	}

	orderID := order.ID.String()
	if orderID == "" {
		orderID = order.ReferenceID.String()
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrCannotNormalize)
	}

	storeID := env.Merchant.String()
	if storeID == "" {
		return nil, fmt.Errorf("%w: missing merchant id", ErrCannotNormalize)
	}

	currency := order.Amounts.Total.Currency
	if currency == "" {
		currency = order.Currency
	}

	occurredAt := time.Now().UTC()
	if env.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, env.CreatedAt); err == nil {
			occurredAt = t
		}
	}

	return &NormalizedOrderEvent{
		Platform:       n.Platform(),
		StoreID:        storeID,
		EventType:      eventType,
		OrderID:        orderID,
		Total:          order.Amounts.Total.Amount,
		Currency:       currency,
		PaymentStatus:  order.PaymentStatus,
		OrderStatus:    order.Status.Slug,
		ReferrerCode:   order.ReferrerCode,
		OccurredAt:     occurredAt,
		IdempotencyKey: IdempotencyKey(n.Platform(), storeID, eventType, orderID),
		vocab:          &sallaVocabulary,
	}, nil
}
