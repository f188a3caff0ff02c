package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type CreateSubscriptionRequest struct {
	UserID string   `json:"-"`
	Plan   PlanType `json:"plan"`
}

type CreateSubscriptionResponse struct {
	GatewaySubscriptionID string             `json:"gatewaySubscriptionId"`
	ClientKey             string             `json:"clientKey"`
	Status                SubscriptionStatus `json:"status"`
}

type CreateTrialResponse struct {
	Subscription       Subscription `json:"subscription"`
	TrialDaysRemaining int          `json:"trialDaysRemaining"`
}

type ConvertTrialRequest struct {
	UserID                string
	GatewaySubscriptionID string
	PlanType              PlanType
	PeriodStart           *time.Time
	PeriodEnd             *time.Time

	// Tx, when set, joins the caller's transaction so the conversion and
	// the caller's dependent writes (the payment ledger row) commit or
	// roll back together. When nil the service opens its own transaction.
	Tx *gorm.DB
}

type SubscriptionStatusResponse struct {
	HasActiveSubscription bool     `json:"hasActiveSubscription"`
	CanStartTrial         bool     `json:"canStartTrial"`
	SubscriptionType      PlanType `json:"subscriptionType,omitempty"`
	TrialDaysLeft         int      `json:"trialDaysLeft"`
}

// Service owns the subscription lifecycle: gateway-backed creation, the trial
// state machine and the status read model.
type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (CreateSubscriptionResponse, error)
	CreateTrial(ctx context.Context, userID string) (CreateTrialResponse, error)
	ConvertTrialToPaid(ctx context.Context, req ConvertTrialRequest) (*Subscription, error)
	CheckAndExpireTrials(ctx context.Context, now time.Time) (int64, error)
	GetUserSubscriptionStatus(ctx context.Context, userID string) (SubscriptionStatusResponse, error)
	HasUsedTrial(ctx context.Context, userID string) (bool, error)
}
