package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"affiliate-attribution/internal/model"
	"affiliate-attribution/internal/repository"
	"affiliate-attribution/internal/webhook"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrUnknownStore    = errors.New("unknown merchant store")
)

// Referrer codes outside this pattern are treated as organic orders, not
// errors; validation happens before any click lookup.
var referrerCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{2,63}$`)

// Result summarizes one processed delivery for the HTTP response.
type Result struct {
	Duplicate        bool
	Message          string
	CommissionID     string
	CommissionStatus model.CommissionStatus
	RiskScore        int
}

// WebhookProcessor drives a verified delivery through the ledger, the
// attribution lookup, the commission state machine, fraud scoring and the
// conversion aggregates. Everything after the ledger runs in one transaction.
type WebhookProcessor struct {
	db          *gorm.DB
	log         *zap.Logger
	normalizers map[string]webhook.Normalizer
	merchants   repository.MerchantRepository
	events      repository.WebhookEventRepository
	clicks      repository.ClickTrackingRepository
	commissions repository.CommissionRepository
	fraud       *FraudDetector
	sync        SyncTrigger
}

func NewWebhookProcessor(
	db *gorm.DB,
	log *zap.Logger,
	merchants repository.MerchantRepository,
	events repository.WebhookEventRepository,
	clicks repository.ClickTrackingRepository,
	commissions repository.CommissionRepository,
	fraud *FraudDetector,
	sync SyncTrigger,
	normalizers ...webhook.Normalizer,
) *WebhookProcessor {
	byPlatform := make(map[string]webhook.Normalizer, len(normalizers))
	for _, n := range normalizers {
		byPlatform[n.Platform()] = n
	}
	return &WebhookProcessor{
		db:          db,
		log:         log,
		normalizers: byPlatform,
		merchants:   merchants,
		events:      events,
		clicks:      clicks,
		commissions: commissions,
		fraud:       fraud,
		sync:        sync,
	}
}

// Process handles one signature-verified delivery end to end.
func (s *WebhookProcessor) Process(ctx context.Context, platform string, body []byte, deliveryID string) (*Result, error) {
	normalizer, ok := s.normalizers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}

	eventType, storeID, err := normalizer.Envelope(body)
	if err != nil {
		return nil, err
	}

	merchant, err := s.merchants.FindByExternalStoreID(ctx, platform, storeID)
	if err != nil {
		return nil, fmt.Errorf("resolve merchant: %w", err)
	}
	if merchant == nil {
		return nil, fmt.Errorf("%w: %s store %s", ErrUnknownStore, platform, storeID)
	}

	kind := webhook.ClassifyEvent(eventType)

	var event *webhook.NormalizedOrderEvent
	var key string
	if kind == webhook.KindOrder {
		event, err = normalizer.NormalizeOrder(eventType, body)
		if err != nil {
			return nil, err
		}
		key = event.IdempotencyKey
	} else {
		// Non-order events carry no entity id the key contract covers, so the
		// body digest stands in for it.
		digest := sha256.Sum256(body)
		key = webhook.IdempotencyKey(platform, storeID, eventType, hex.EncodeToString(digest[:]))
	}

	ledger := &model.WebhookEvent{
		Platform:       platform,
		StoreID:        storeID,
		EventType:      eventType,
		IdempotencyKey: key,
		DeliveryID:     deliveryID,
		Payload:        string(body),
	}
	accepted, err := s.events.Register(ctx, ledger)
	if err != nil {
		return nil, fmt.Errorf("register webhook event: %w", err)
	}
	if !accepted {
		s.log.Info("duplicate delivery ignored",
			zap.String("platform", platform),
			zap.String("eventType", eventType),
			zap.String("idempotencyKey", key),
		)
		return &Result{Duplicate: true, Message: "duplicate delivery"}, nil
	}

	var result *Result
	var procErr error
	switch kind {
	case webhook.KindOrder:
		result, procErr = s.processOrder(ctx, merchant, event)
	case webhook.KindProduct:
		if err := s.sync.ProductChanged(ctx, platform, storeID, eventType); err != nil {
			s.log.Error("product sync trigger failed", zap.String("eventType", eventType), zap.Error(err))
		}
		result = &Result{Message: "product event routed"}
	case webhook.KindApp:
		if err := s.sync.AppLifecycle(ctx, platform, storeID, eventType); err != nil {
			s.log.Error("app lifecycle trigger failed", zap.String("eventType", eventType), zap.Error(err))
		}
		result = &Result{Message: "app event routed"}
	default:
		result = &Result{Message: "unhandled event type"}
	}

	// Ledger status is audit metadata; its write must not affect the response
	// and must survive the request deadline.
	audit := context.WithoutCancel(ctx)
	if procErr != nil {
		if err := s.events.MarkFailed(audit, ledger.ID, procErr.Error()); err != nil {
			s.log.Error("mark webhook event failed", zap.String("id", ledger.ID), zap.Error(err))
		}
		return nil, procErr
	}
	if err := s.events.MarkProcessed(audit, ledger.ID); err != nil {
		s.log.Error("mark webhook event processed", zap.String("id", ledger.ID), zap.Error(err))
	}
	return result, nil
}

func (s *WebhookProcessor) processOrder(ctx context.Context, merchant *model.Merchant, event *webhook.NormalizedOrderEvent) (*Result, error) {
	now := time.Now().UTC()
	var result *Result

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.commissions.FindByMerchantOrder(ctx, tx, merchant.ID, event.OrderID)
		if err != nil {
			return fmt.Errorf("find commission: %w", err)
		}

		var click *model.ClickTracking
		if existing != nil {
			// Re-deliveries keep the original attribution even if the click
			// has expired since.
			click, err = s.clicks.FindByID(ctx, tx, existing.ClickTrackingID)
			if err != nil {
				return fmt.Errorf("load attributed click: %w", err)
			}
			if click == nil {
				return fmt.Errorf("click %s referenced by commission %s is missing", existing.ClickTrackingID, existing.ID)
			}
		} else {
			code := strings.TrimSpace(event.ReferrerCode)
			if code == "" || !referrerCodePattern.MatchString(code) {
				result = &Result{Message: "no attribution: organic order"}
				return nil
			}
			click, err = s.clicks.FindActive(ctx, tx, code, merchant.ID, now)
			if err != nil {
				return fmt.Errorf("find click: %w", err)
			}
			if click == nil {
				result = &Result{Message: "no attribution: no active click"}
				return nil
			}
		}

		total := event.Total.Round(2)
		rate := click.CommissionRate
		amount := total.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)

		created := false
		commission := existing
		if commission == nil {
			commission = &model.Commission{
				MerchantID:       merchant.ID,
				OrderID:          event.OrderID,
				ClickTrackingID:  click.ID,
				OrderTotal:       total,
				Currency:         event.Currency,
				CommissionRate:   rate,
				CommissionAmount: amount,
				Status:           model.CommissionPending,
			}
			if err := s.commissions.Create(ctx, tx, commission); err != nil {
				if !errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("create commission: %w", err)
				}
				// Lost the insert race to a concurrent delivery for the same
				// order; fall back to read-then-merge.
				commission, err = s.commissions.FindByMerchantOrder(ctx, tx, merchant.ID, event.OrderID)
				if err != nil {
					return fmt.Errorf("reload commission after conflict: %w", err)
				}
				if commission == nil {
					return fmt.Errorf("commission for order %s conflicted but is not visible yet", event.OrderID)
				}
				existing = commission
			} else {
				created = true
			}
		}

		prevStatus := model.CommissionPending
		if existing != nil {
			prevStatus = existing.Status
		}

		desired := model.CommissionPending
		switch {
		case event.IsCancelled():
			desired = model.CommissionCancelled
		case event.IsPaymentConfirmed():
			desired = model.CommissionApproved
		}

		riskScore := 0
		if desired != model.CommissionCancelled {
			riskScore, err = s.fraud.Evaluate(ctx, tx, commission, now)
			if err != nil {
				return err
			}
			if s.fraud.ShouldHold(riskScore) {
				desired = model.CommissionOnHold
			}
		}

		next := MergeStatus(prevStatus, desired)

		monetaryUnchanged := commission.OrderTotal.Equal(total) &&
			commission.CommissionRate.Equal(rate) &&
			commission.CommissionAmount.Equal(amount) &&
			commission.Currency == event.Currency
		if !created && next == prevStatus && monetaryUnchanged {
			result = &Result{
				Message:          "no change",
				CommissionID:     commission.ID,
				CommissionStatus: next,
				RiskScore:        riskScore,
			}
			return nil
		}

		updates := map[string]interface{}{
			"order_total":       total,
			"currency":          event.Currency,
			"commission_rate":   rate,
			"commission_amount": amount,
			"status":            next,
			"updated_at":        now,
		}
		if next == model.CommissionApproved && commission.ApprovedAt == nil {
			updates["approved_at"] = now
		}
		// The status predicate makes exactly one transaction own each
		// transition; the loser rolls back whole and the platform retry
		// re-reads the committed row.
		owned, err := s.commissions.UpdateFromStatus(ctx, tx, commission.ID, prevStatus, updates)
		if err != nil {
			return fmt.Errorf("update commission: %w", err)
		}
		if !owned {
			return fmt.Errorf("commission %s was updated concurrently", commission.ID)
		}

		// Conversion aggregates move by the delta of this transition, inside
		// the same transaction as the commission write.
		wasCounted := !created && countsAsConverted(prevStatus)
		willCount := countsAsConverted(next)
		if wasCounted != willCount {
			if willCount {
				err = s.incrementConversion(ctx, tx, click.ID, total, amount, now)
			} else {
				// Reverse what the approval added, not the latest event values.
				err = s.reverseConversion(ctx, tx, click.ID, commission.OrderTotal, commission.CommissionAmount, now)
			}
			if err != nil {
				return err
			}
		}

		s.log.Info("order event attributed",
			zap.String("platform", event.Platform),
			zap.String("orderId", event.OrderID),
			zap.String("commissionId", commission.ID),
			zap.String("status", string(next)),
			zap.Int("riskScore", riskScore),
		)

		result = &Result{
			Message:          "attributed",
			CommissionID:     commission.ID,
			CommissionStatus: next,
			RiskScore:        riskScore,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Aggregates are applied as SQL expression arithmetic over the stored row, so
// overlapping transactions on the same click serialize on the row lock and
// each delta lands on the other's committed value instead of overwriting it.
func (s *WebhookProcessor) incrementConversion(ctx context.Context, tx *gorm.DB, clickID string, total, amount decimal.Decimal, now time.Time) error {
	updates := map[string]interface{}{
		"converted":         true,
		"converted_count":   gorm.Expr("converted_count + 1"),
		"conversion_value":  gorm.Expr("conversion_value + ?", total),
		"commission_value":  gorm.Expr("commission_value + ?", amount),
		"converted_at":      gorm.Expr("COALESCE(converted_at, ?)", now),
		"last_converted_at": now,
		"updated_at":        now,
	}
	if err := s.clicks.UpdateAggregates(ctx, tx, clickID, updates); err != nil {
		return fmt.Errorf("increment conversion aggregates: %w", err)
	}
	return nil
}

func (s *WebhookProcessor) reverseConversion(ctx context.Context, tx *gorm.DB, clickID string, total, amount decimal.Decimal, now time.Time) error {
	// MySQL evaluates SET left to right against already-assigned values and
	// gorm orders map keys alphabetically, so converted and converted_at read
	// converted_count before it is reassigned.
	updates := map[string]interface{}{
		"converted":        gorm.Expr("converted_count > 1"),
		"converted_at":     gorm.Expr("CASE WHEN converted_count > 1 THEN converted_at ELSE NULL END"),
		"converted_count":  gorm.Expr("CASE WHEN converted_count > 1 THEN converted_count - 1 ELSE 0 END"),
		"conversion_value": gorm.Expr("CASE WHEN conversion_value > ? THEN conversion_value - ? ELSE 0 END", total, total),
		"commission_value": gorm.Expr("CASE WHEN commission_value > ? THEN commission_value - ? ELSE 0 END", amount, amount),
		"updated_at":       now,
	}
	if err := s.clicks.UpdateAggregates(ctx, tx, clickID, updates); err != nil {
		return fmt.Errorf("reverse conversion aggregates: %w", err)
	}
	return nil
}
