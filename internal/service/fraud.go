package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"affiliate-attribution/internal/config"
	"affiliate-attribution/internal/model"
	"affiliate-attribution/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	SignalHighFrequencyOrders = "HIGH_FREQUENCY_ORDERS"

	severityHigh       = "HIGH"
	highFrequencyScore = 60
	maxRiskScore       = 100
)

// FraudDetector scores a commission at evaluation time and records signals.
// It runs synchronously inside the attribution transaction, so every check
// must stay a bounded aggregate query.
type FraudDetector struct {
	cfg         config.Fraud
	commissions repository.CommissionRepository
	signals     repository.FraudSignalRepository
	log         *zap.Logger
}

func NewFraudDetector(
	cfg config.Fraud,
	commissions repository.CommissionRepository,
	signals repository.FraudSignalRepository,
	log *zap.Logger,
) *FraudDetector {
	return &FraudDetector{
		cfg:         cfg,
		commissions: commissions,
		signals:     signals,
		log:         log,
	}
}

// Evaluate computes the capped risk score for the commission, recording each
// emitted signal at most once per (commission, signal type).
func (d *FraudDetector) Evaluate(ctx context.Context, tx *gorm.DB, commission *model.Commission, now time.Time) (int, error) {
	if !d.cfg.Enabled {
		return 0, nil
	}

	score := 0

	since := now.Add(-d.cfg.HighFrequencyWindow)
	count, err := d.commissions.CountRecentByClick(ctx, tx, commission.ClickTrackingID, since)
	if err != nil {
		return 0, fmt.Errorf("count recent commissions: %w", err)
	}

	if d.cfg.HighFrequencyThreshold > 0 && count >= int64(d.cfg.HighFrequencyThreshold) {
		metadata, _ := json.Marshal(map[string]interface{}{
			"count":  count,
			"window": d.cfg.HighFrequencyWindow.String(),
		})
		created, err := d.signals.CreateIfAbsent(ctx, tx, &model.FraudSignal{
			CommissionID:    commission.ID,
			SignalType:      SignalHighFrequencyOrders,
			Severity:        severityHigh,
			Score:           highFrequencyScore,
			Reason:          fmt.Sprintf("%d orders attributed to the same click within %s", count, d.cfg.HighFrequencyWindow),
			Metadata:        string(metadata),
			ClickTrackingID: commission.ClickTrackingID,
			OrderID:         commission.OrderID,
		})
		if err != nil {
			return 0, fmt.Errorf("record fraud signal: %w", err)
		}
		if created {
			d.log.Warn("fraud signal recorded",
				zap.String("commissionId", commission.ID),
				zap.String("signalType", SignalHighFrequencyOrders),
				zap.Int64("count", count),
			)
		}
		score += highFrequencyScore
	}

	if score > maxRiskScore {
		score = maxRiskScore
	}
	return score, nil
}

// ShouldHold reports whether the aggregate score forces the commission to
// ON_HOLD instead of its payment-derived status.
func (d *FraudDetector) ShouldHold(score int) bool {
	return d.cfg.Enabled && d.cfg.HoldScoreThreshold > 0 && score >= d.cfg.HoldScoreThreshold
}
