// Package domain contains persistence models for subscriptions and the
// payment transaction ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusCreated      SubscriptionStatus = "CREATED"
	SubscriptionStatusActive       SubscriptionStatus = "ACTIVE"
	SubscriptionStatusTrialActive  SubscriptionStatus = "TRIAL_ACTIVE"
	SubscriptionStatusTrialExpired SubscriptionStatus = "TRIAL_EXPIRED"
)

// PlanType identifies the entitlement tier a subscription grants.
type PlanType string

const (
	PlanTrialBasic PlanType = "TRIAL_BASIC"
	PlanBasic      PlanType = "BASIC"
	PlanPro        PlanType = "PRO"
)

// TrialPeriod is the fixed free-trial window granted once per user.
const TrialPeriod = 7 * 24 * time.Hour

// Subscription is one lifecycle instance of a user's subscription. Rows are
// never hard-deleted; expired trials are retained for history and the
// has_used_trial flag stays true forever once any trial was created.
type Subscription struct {
	ID                    snowflake.ID       `gorm:"primaryKey"`
	UserID                string             `gorm:"not null;index"`
	GatewaySubscriptionID *string            `gorm:"index"`
	PlanType              PlanType           `gorm:"type:text;not null"`
	Status                SubscriptionStatus `gorm:"type:text;not null"`
	CurrentPeriodStart    *time.Time         `gorm:""`
	CurrentPeriodEnd      *time.Time         `gorm:""`
	IsTrialSubscription   bool               `gorm:"not null;default:false"`
	TrialStartDate        *time.Time         `gorm:""`
	TrialEndDate          *time.Time         `gorm:""`
	HasUsedTrial          bool               `gorm:"not null;default:false"`
	CreatedAt             time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// TransactionStatus values mirror the gateway's settled-payment states.
const (
	TransactionStatusCaptured = "CAPTURED"
)

// Transaction is one row of the append-only payment ledger. GatewayPaymentID
// is unique when present and acts as the idempotency key for payment events;
// trial grants carry a nil payment ID.
type Transaction struct {
	ID                 snowflake.ID      `gorm:"primaryKey"`
	SubscriptionID     snowflake.ID      `gorm:"not null;index"`
	UserID             string            `gorm:"not null"`
	GatewayPaymentID   *string           `gorm:"uniqueIndex"`
	Amount             float64           `gorm:"not null"`
	Currency           string            `gorm:"type:text;not null"`
	Status             string            `gorm:"type:text;not null"`
	Method             *string           `gorm:"type:text"`
	Description        *string           `gorm:"type:text"`
	IsTrialTransaction bool              `gorm:"not null;default:false"`
	Notes              datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

// ParsePlanType validates a plan name from the API surface.
func ParsePlanType(value string) (PlanType, bool) {
	switch PlanType(value) {
	case PlanTrialBasic, PlanBasic, PlanPro:
		return PlanType(value), true
	default:
		return "", false
	}
}

// IsPaidPlan reports whether the plan is purchasable at the gateway.
func IsPaidPlan(plan PlanType) bool {
	return plan == PlanBasic || plan == PlanPro
}
