package domain

import "errors"

var (
	ErrInvalidUser              = errors.New("invalid_user")
	ErrInvalidPlan              = errors.New("invalid_plan")
	ErrSubscriptionNotFound     = errors.New("subscription_not_found")
	ErrTrialAlreadyUsed         = errors.New("trial_already_used")
	ErrActiveTrialExists        = errors.New("active_trial_exists")
	ErrActiveSubscriptionExists = errors.New("active_subscription_exists")
	ErrNoActiveTrial            = errors.New("no_active_trial")
)
