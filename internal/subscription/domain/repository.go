package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository is the storage boundary for subscriptions and the transaction
// ledger. Methods take the db handle explicitly so services can pass a
// transaction where a caller needs several writes to commit together.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error

	// InsertTransaction appends a ledger row. When the row carries a
	// gateway payment ID the insert is a no-op on conflict with the unique
	// index; the returned bool reports whether a row was actually written.
	InsertTransaction(ctx context.Context, db *gorm.DB, transaction *Transaction) (bool, error)

	FindByGatewaySubscriptionID(ctx context.Context, db *gorm.DB, gatewaySubscriptionID string) (*Subscription, error)
	FindByGatewaySubscriptionIDForUpdate(ctx context.Context, db *gorm.DB, gatewaySubscriptionID string) (*Subscription, error)
	FindTransactionByGatewayPaymentID(ctx context.Context, db *gorm.DB, gatewayPaymentID string) (*Transaction, error)

	HasUsedTrial(ctx context.Context, db *gorm.DB, userID string) (bool, error)
	FindActiveTrialByUserID(ctx context.Context, db *gorm.DB, userID string, now time.Time) (*Subscription, error)
	FindActiveTrialByUserIDForUpdate(ctx context.Context, db *gorm.DB, userID string, now time.Time) (*Subscription, error)
	FindLatestActiveByUserID(ctx context.Context, db *gorm.DB, userID string) (*Subscription, error)

	UpdateActivation(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	ExpireTrials(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
