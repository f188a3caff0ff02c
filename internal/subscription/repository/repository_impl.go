package repository

import (
	"context"
	"time"

	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, user_id, gateway_subscription_id, plan_type, status,
	 current_period_start, current_period_end, is_trial_subscription,
	 trial_start_date, trial_end_date, has_used_trial, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, user_id, gateway_subscription_id, plan_type, status,
			current_period_start, current_period_end, is_trial_subscription,
			trial_start_date, trial_end_date, has_used_trial, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.UserID,
		subscription.GatewaySubscriptionID,
		subscription.PlanType,
		subscription.Status,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.IsTrialSubscription,
		subscription.TrialStartDate,
		subscription.TrialEndDate,
		subscription.HasUsedTrial,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, transaction *subscriptiondomain.Transaction) (bool, error) {
	if transaction.GatewayPaymentID == nil {
		// Trial grants carry no payment ID; nothing to conflict on.
		err := db.WithContext(ctx).Exec(
			`INSERT INTO transactions (
				id, subscription_id, user_id, gateway_payment_id, amount, currency,
				status, method, description, is_trial_transaction, notes, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			transaction.ID,
			transaction.SubscriptionID,
			transaction.UserID,
			transaction.GatewayPaymentID,
			transaction.Amount,
			transaction.Currency,
			transaction.Status,
			transaction.Method,
			transaction.Description,
			transaction.IsTrialTransaction,
			transaction.Notes,
			transaction.CreatedAt,
		).Error
		return err == nil, err
	}

	res := db.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, subscription_id, user_id, gateway_payment_id, amount, currency,
			status, method, description, is_trial_transaction, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (gateway_payment_id) WHERE gateway_payment_id IS NOT NULL DO NOTHING`,
		transaction.ID,
		transaction.SubscriptionID,
		transaction.UserID,
		transaction.GatewayPaymentID,
		transaction.Amount,
		transaction.Currency,
		transaction.Status,
		transaction.Method,
		transaction.Description,
		transaction.IsTrialTransaction,
		transaction.Notes,
		transaction.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByGatewaySubscriptionID(ctx context.Context, db *gorm.DB, gatewaySubscriptionID string) (*subscriptiondomain.Subscription, error) {
	return r.findByGatewaySubscriptionID(ctx, db, gatewaySubscriptionID, false)
}

func (r *repo) FindByGatewaySubscriptionIDForUpdate(ctx context.Context, db *gorm.DB, gatewaySubscriptionID string) (*subscriptiondomain.Subscription, error) {
	return r.findByGatewaySubscriptionID(ctx, db, gatewaySubscriptionID, true)
}

func (r *repo) findByGatewaySubscriptionID(ctx context.Context, db *gorm.DB, gatewaySubscriptionID string, forUpdate bool) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions WHERE gateway_subscription_id = ?
		 LIMIT 1`+lockSuffix(db, forUpdate),
		gatewaySubscriptionID,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindTransactionByGatewayPaymentID(ctx context.Context, db *gorm.DB, gatewayPaymentID string) (*subscriptiondomain.Transaction, error) {
	var transaction subscriptiondomain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, subscription_id, user_id, gateway_payment_id, amount, currency,
		 status, method, description, is_trial_transaction, notes, created_at
		 FROM transactions WHERE gateway_payment_id = ?
		 LIMIT 1`,
		gatewayPaymentID,
	).Scan(&transaction).Error
	if err != nil {
		return nil, err
	}
	if transaction.ID == 0 {
		return nil, nil
	}
	return &transaction, nil
}

func (r *repo) HasUsedTrial(ctx context.Context, db *gorm.DB, userID string) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM subscriptions WHERE user_id = ? AND has_used_trial = ?`,
		userID,
		true,
	).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FindActiveTrialByUserID(ctx context.Context, db *gorm.DB, userID string, now time.Time) (*subscriptiondomain.Subscription, error) {
	return r.findActiveTrialByUserID(ctx, db, userID, now, false)
}

func (r *repo) FindActiveTrialByUserIDForUpdate(ctx context.Context, db *gorm.DB, userID string, now time.Time) (*subscriptiondomain.Subscription, error) {
	return r.findActiveTrialByUserID(ctx, db, userID, now, true)
}

func (r *repo) findActiveTrialByUserID(ctx context.Context, db *gorm.DB, userID string, now time.Time, forUpdate bool) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE user_id = ? AND status = ? AND trial_end_date > ?
		 ORDER BY created_at DESC
		 LIMIT 1`+lockSuffix(db, forUpdate),
		userID,
		subscriptiondomain.SubscriptionStatusTrialActive,
		now,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindLatestActiveByUserID(ctx context.Context, db *gorm.DB, userID string) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE user_id = ? AND status IN (?, ?)
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
		subscriptiondomain.SubscriptionStatusActive,
		subscriptiondomain.SubscriptionStatusTrialActive,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) UpdateActivation(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET gateway_subscription_id = ?, plan_type = ?, status = ?,
		     current_period_start = ?, current_period_end = ?,
		     is_trial_subscription = ?, updated_at = ?
		 WHERE id = ?`,
		subscription.GatewaySubscriptionID,
		subscription.PlanType,
		subscription.Status,
		subscription.CurrentPeriodStart,
		subscription.CurrentPeriodEnd,
		subscription.IsTrialSubscription,
		subscription.UpdatedAt,
		subscription.ID,
	).Error
}

func (r *repo) ExpireTrials(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND trial_end_date < ?`,
		subscriptiondomain.SubscriptionStatusTrialExpired,
		now,
		subscriptiondomain.SubscriptionStatusTrialActive,
		now,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// lockSuffix returns the row-lock clause where the dialect supports it.
// sqlite serializes writers at the database level, so the clause is dropped
// there instead of failing the query.
func lockSuffix(db *gorm.DB, forUpdate bool) string {
	if !forUpdate {
		return ""
	}
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}
