package service

import (
	"context"
	"strings"
	"time"

	"github.com/IkramBagban/proxlay-sub001/internal/clock"
	"github.com/IkramBagban/proxlay-sub001/internal/config"
	"github.com/IkramBagban/proxlay-sub001/internal/gateway"
	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
	"github.com/IkramBagban/proxlay-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    subscriptiondomain.Repository
	Gateway gateway.Client
	Cfg     config.Config
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    subscriptiondomain.Repository
	gateway gateway.Client
	cfg     config.Config
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("subscription.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		gateway: p.Gateway,
		cfg:     p.Cfg,
	}
}

// Create registers a paid subscription at the gateway and records the local
// CREATED row. Activation happens later through the payment or webhook
// reconcilers once the first charge is confirmed.
func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.CreateSubscriptionResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return subscriptiondomain.CreateSubscriptionResponse{}, subscriptiondomain.ErrInvalidUser
	}
	if !subscriptiondomain.IsPaidPlan(req.Plan) {
		return subscriptiondomain.CreateSubscriptionResponse{}, subscriptiondomain.ErrInvalidPlan
	}

	planID := s.gatewayPlanID(req.Plan)
	if planID == "" {
		return subscriptiondomain.CreateSubscriptionResponse{}, subscriptiondomain.ErrInvalidPlan
	}

	gatewaySub, err := s.gateway.CreateSubscription(ctx, planID, userID)
	if err != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}

	now := s.clock.Now()
	gatewaySubscriptionID := gatewaySub.ID
	subscription := subscriptiondomain.Subscription{
		ID:                    s.genID.Generate(),
		UserID:                userID,
		GatewaySubscriptionID: &gatewaySubscriptionID,
		PlanType:              req.Plan,
		Status:                subscriptiondomain.SubscriptionStatusCreated,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if gatewaySub.CurrentStart > 0 {
		start := time.Unix(gatewaySub.CurrentStart, 0).UTC()
		subscription.CurrentPeriodStart = &start
	}
	if gatewaySub.CurrentEnd > 0 {
		end := time.Unix(gatewaySub.CurrentEnd, 0).UTC()
		subscription.CurrentPeriodEnd = &end
	}

	if err := s.repo.Insert(ctx, s.db, &subscription); err != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}

	s.log.Info("subscription created at gateway",
		zap.String("user_id", userID),
		zap.String("gateway_subscription_id", gatewaySubscriptionID),
		zap.String("plan", string(req.Plan)),
	)

	return subscriptiondomain.CreateSubscriptionResponse{
		GatewaySubscriptionID: gatewaySubscriptionID,
		ClientKey:             s.cfg.GatewayKeyID,
		Status:                subscriptiondomain.SubscriptionStatusCreated,
	}, nil
}

// CreateTrial starts the one free trial a user may ever have. The trial row
// and its zero-amount ledger entry commit in the same transaction so neither
// can exist without the other.
func (s *Service) CreateTrial(ctx context.Context, userID string) (subscriptiondomain.CreateTrialResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return subscriptiondomain.CreateTrialResponse{}, subscriptiondomain.ErrInvalidUser
	}

	now := s.clock.Now()
	trialEnd := now.Add(subscriptiondomain.TrialPeriod)

	subscription := subscriptiondomain.Subscription{
		ID:                  s.genID.Generate(),
		UserID:              userID,
		PlanType:            subscriptiondomain.PlanTrialBasic,
		Status:              subscriptiondomain.SubscriptionStatusTrialActive,
		CurrentPeriodStart:  &now,
		CurrentPeriodEnd:    &trialEnd,
		IsTrialSubscription: true,
		TrialStartDate:      &now,
		TrialEndDate:        &trialEnd,
		HasUsedTrial:        true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	description := "free trial grant"
	transaction := subscriptiondomain.Transaction{
		ID:                 s.genID.Generate(),
		SubscriptionID:     subscription.ID,
		UserID:             userID,
		Amount:             0,
		Currency:           "INR",
		Status:             subscriptiondomain.TransactionStatusCaptured,
		Description:        &description,
		IsTrialTransaction: true,
		CreatedAt:          now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Preconditions are re-checked inside the transaction so a
		// concurrent trial creation for the same user cannot slip
		// between check and insert.
		used, err := s.repo.HasUsedTrial(ctx, tx, userID)
		if err != nil {
			return err
		}
		if used {
			return subscriptiondomain.ErrTrialAlreadyUsed
		}

		existing, err := s.repo.FindLatestActiveByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == subscriptiondomain.SubscriptionStatusActive {
				return subscriptiondomain.ErrActiveSubscriptionExists
			}
			return subscriptiondomain.ErrActiveTrialExists
		}

		if err := s.repo.Insert(ctx, tx, &subscription); err != nil {
			// The partial unique index on (user_id) for trial rows
			// catches the racer the pre-checks could not see.
			if db.IsDuplicateKeyErr(err) {
				return subscriptiondomain.ErrTrialAlreadyUsed
			}
			return err
		}
		_, err = s.repo.InsertTransaction(ctx, tx, &transaction)
		return err
	})
	if err != nil {
		return subscriptiondomain.CreateTrialResponse{}, err
	}

	s.log.Info("trial subscription created",
		zap.String("user_id", userID),
		zap.Time("trial_end", trialEnd),
	)

	return subscriptiondomain.CreateTrialResponse{
		Subscription:       subscription,
		TrialDaysRemaining: trialDays(trialEnd, now),
	}, nil
}

// ConvertTrialToPaid upgrades the user's running trial in place. The row keeps
// its identity and history; has_used_trial stays true.
func (s *Service) ConvertTrialToPaid(ctx context.Context, req subscriptiondomain.ConvertTrialRequest) (*subscriptiondomain.Subscription, error) {
	userID := strings.TrimSpace(req.UserID)
	gatewaySubscriptionID := strings.TrimSpace(req.GatewaySubscriptionID)
	if userID == "" || gatewaySubscriptionID == "" {
		return nil, subscriptiondomain.ErrInvalidUser
	}
	if !subscriptiondomain.IsPaidPlan(req.PlanType) {
		return nil, subscriptiondomain.ErrInvalidPlan
	}

	now := s.clock.Now()
	var converted *subscriptiondomain.Subscription

	convert := func(tx *gorm.DB) error {
		trial, err := s.repo.FindActiveTrialByUserIDForUpdate(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if trial == nil {
			return subscriptiondomain.ErrNoActiveTrial
		}

		trial.GatewaySubscriptionID = &gatewaySubscriptionID
		trial.PlanType = req.PlanType
		trial.Status = subscriptiondomain.SubscriptionStatusActive
		trial.IsTrialSubscription = false
		if req.PeriodStart != nil {
			trial.CurrentPeriodStart = req.PeriodStart
		}
		if req.PeriodEnd != nil {
			trial.CurrentPeriodEnd = req.PeriodEnd
		}
		trial.UpdatedAt = now

		if err := s.repo.UpdateActivation(ctx, tx, trial); err != nil {
			return err
		}
		converted = trial
		return nil
	}

	var err error
	if req.Tx != nil {
		err = convert(req.Tx)
	} else {
		err = s.db.WithContext(ctx).Transaction(convert)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("trial converted to paid subscription",
		zap.String("user_id", userID),
		zap.String("gateway_subscription_id", gatewaySubscriptionID),
		zap.String("plan", string(req.PlanType)),
	)
	return converted, nil
}

// CheckAndExpireTrials transitions every overdue TRIAL_ACTIVE row to
// TRIAL_EXPIRED. The persisted status is the sole truth: a row a concurrent
// conversion already moved to ACTIVE is excluded by the status filter.
func (s *Service) CheckAndExpireTrials(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.repo.ExpireTrials(ctx, s.db, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("expired trial subscriptions", zap.Int64("count", count))
	}
	return count, nil
}

func (s *Service) GetUserSubscriptionStatus(ctx context.Context, userID string) (subscriptiondomain.SubscriptionStatusResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return subscriptiondomain.SubscriptionStatusResponse{}, subscriptiondomain.ErrInvalidUser
	}

	subscription, err := s.repo.FindLatestActiveByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.SubscriptionStatusResponse{}, err
	}

	if subscription == nil {
		used, err := s.repo.HasUsedTrial(ctx, s.db, userID)
		if err != nil {
			return subscriptiondomain.SubscriptionStatusResponse{}, err
		}
		return subscriptiondomain.SubscriptionStatusResponse{
			HasActiveSubscription: false,
			CanStartTrial:         !used,
		}, nil
	}

	resp := subscriptiondomain.SubscriptionStatusResponse{
		HasActiveSubscription: true,
		SubscriptionType:      subscription.PlanType,
	}
	if subscription.Status == subscriptiondomain.SubscriptionStatusTrialActive && subscription.TrialEndDate != nil {
		resp.TrialDaysLeft = trialDays(*subscription.TrialEndDate, s.clock.Now())
	}
	return resp, nil
}

func (s *Service) HasUsedTrial(ctx context.Context, userID string) (bool, error) {
	return s.repo.HasUsedTrial(ctx, s.db, strings.TrimSpace(userID))
}

func (s *Service) gatewayPlanID(plan subscriptiondomain.PlanType) string {
	switch plan {
	case subscriptiondomain.PlanBasic:
		return s.cfg.GatewayPlanBasic
	case subscriptiondomain.PlanPro:
		return s.cfg.GatewayPlanPro
	default:
		return ""
	}
}

// trialDays is ceil(remaining / 24h), floored at zero.
func trialDays(trialEnd, now time.Time) int {
	remaining := trialEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}
