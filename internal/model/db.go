package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "PENDING"
	CommissionApproved  CommissionStatus = "APPROVED"
	CommissionOnHold    CommissionStatus = "ON_HOLD"
	CommissionCancelled CommissionStatus = "CANCELLED"
	CommissionPaid      CommissionStatus = "PAID"
)

type WebhookStatus string

const (
	WebhookReceived  WebhookStatus = "RECEIVED"
	WebhookProcessed WebhookStatus = "PROCESSED"
	WebhookFailed    WebhookStatus = "FAILED"
)

type Merchant struct {
	ID              string `gorm:"primaryKey;type:char(36)"`
	Name            string `gorm:"size:128"`
	Platform        string `gorm:"size:16;not null;index:idx_merchant_store,unique"` // salla, zid
	ExternalStoreID string `gorm:"size:64;not null;index:idx_merchant_store,unique"`
	// Default commission rate in percent, snapshotted onto clicks.
	CommissionRate        decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	AttributionWindowDays int             `gorm:"not null;default:30"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (m *Merchant) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// WebhookEvent is the dedupe/audit ledger for inbound deliveries. It has no
// foreign relations; the idempotency key is derived from event content.
type WebhookEvent struct {
	ID             string        `gorm:"primaryKey;type:char(36)"`
	Platform       string        `gorm:"size:16;index;not null"`
	StoreID        string        `gorm:"size:64;index"`
	EventType      string        `gorm:"size:64;index"`
	IdempotencyKey string        `gorm:"size:64;uniqueIndex;not null"`
	DeliveryID     string        `gorm:"size:128"` // platform delivery header, audit only
	Payload        string        `gorm:"type:text"`
	Status         WebhookStatus `gorm:"size:16;index;not null"`
	Error          string        `gorm:"size:512"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// ClickTracking is one referral click. Conversion aggregates are mutated only
// by the attribution pipeline, by delta within the commission transaction.
type ClickTracking struct {
	ID              string          `gorm:"primaryKey;type:char(36)"`
	TrackingID      string          `gorm:"size:64;not null;index:idx_click_merchant"` // referrer code in outbound links
	MerchantID      string          `gorm:"type:char(36);not null;index:idx_click_merchant"`
	CommissionRate  decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ExpiresAt       time.Time       `gorm:"index;not null"`
	Converted       bool            `gorm:"not null;default:false"`
	ConvertedCount  int             `gorm:"not null;default:0"`
	ConversionValue decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	CommissionValue decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	ConvertedAt     *time.Time
	LastConvertedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (c *ClickTracking) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// Commission is one row per (merchant, order); the unique pair is the
// idempotency anchor for financial attribution.
type Commission struct {
	ID               string           `gorm:"primaryKey;type:char(36)"`
	MerchantID       string           `gorm:"type:char(36);not null;index:idx_commission_order,unique"`
	OrderID          string           `gorm:"size:64;not null;index:idx_commission_order,unique"`
	ClickTrackingID  string           `gorm:"type:char(36);index;not null"`
	OrderTotal       decimal.Decimal  `gorm:"type:decimal(20,2);not null"`
	Currency         string           `gorm:"size:8;not null"`
	CommissionRate   decimal.Decimal  `gorm:"type:decimal(10,2);not null"`
	CommissionAmount decimal.Decimal  `gorm:"type:decimal(20,2);not null"`
	Status           CommissionStatus `gorm:"size:16;index;not null"`
	ApprovedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (c *Commission) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// FraudSignal is append-only; (commission, signal type) is written at most once.
type FraudSignal struct {
	ID              string `gorm:"primaryKey;type:char(36)"`
	CommissionID    string `gorm:"type:char(36);not null;index:idx_signal_commission_type,unique"`
	SignalType      string `gorm:"size:64;not null;index:idx_signal_commission_type,unique"`
	Severity        string `gorm:"size:16;not null"`
	Score           int    `gorm:"not null"`
	Reason          string `gorm:"size:512"`
	Metadata        string `gorm:"type:text"`
	ClickTrackingID string `gorm:"type:char(36);index"`
	OrderID         string `gorm:"size:64;index"`
	CreatedAt       time.Time
}

func (f *FraudSignal) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
