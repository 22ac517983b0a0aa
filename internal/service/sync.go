package service

import (
	"context"

	"go.uber.org/zap"
)

// SyncTrigger is the collaborator contract for the non-order event branches.
// Catalog and store-info synchronization live elsewhere; the pipeline only
// routes to them, and their failures never affect order attribution.
type SyncTrigger interface {
	ProductChanged(ctx context.Context, platform, storeID, eventType string) error
	AppLifecycle(ctx context.Context, platform, storeID, eventType string) error
}

type loggingSyncTrigger struct {
	log *zap.Logger
}

// NewLoggingSyncTrigger returns a SyncTrigger that records the routed event
// and does nothing else.
func NewLoggingSyncTrigger(log *zap.Logger) SyncTrigger {
	return &loggingSyncTrigger{log: log}
}

func (t *loggingSyncTrigger) ProductChanged(ctx context.Context, platform, storeID, eventType string) error {
	t.log.Info("product sync triggered",
		zap.String("platform", platform),
		zap.String("storeId", storeID),
		zap.String("eventType", eventType),
	)
	return nil
}

func (t *loggingSyncTrigger) AppLifecycle(ctx context.Context, platform, storeID, eventType string) error {
	t.log.Info("app lifecycle event routed",
		zap.String("platform", platform),
		zap.String("storeId", storeID),
		zap.String("eventType", eventType),
	)
	return nil
}
