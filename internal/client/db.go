package client

import (
	"fmt"
	"time"

	"affiliate-attribution/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// InitMysqlClient opens the backing store and runs auto-migration.
// TranslateError is required: the idempotency ledger and the commission
// upsert both interpret gorm.ErrDuplicatedKey.
func InitMysqlClient(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool (important for webhooks)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Merchant{},
		&model.WebhookEvent{},
		&model.ClickTracking{},
		&model.Commission{},
		&model.FraudSignal{},
	)
}
