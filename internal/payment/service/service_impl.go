package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IkramBagban/proxlay-sub001/internal/clock"
	"github.com/IkramBagban/proxlay-sub001/internal/config"
	"github.com/IkramBagban/proxlay-sub001/internal/gateway"
	obsmetrics "github.com/IkramBagban/proxlay-sub001/internal/observability/metrics"
	paymentdomain "github.com/IkramBagban/proxlay-sub001/internal/payment/domain"
	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Repo            subscriptiondomain.Repository
	SubscriptionSvc subscriptiondomain.Service
	Gateway         gateway.Client
	Cfg             config.Config
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	repo            subscriptiondomain.Repository
	subscriptionSvc subscriptiondomain.Service
	gateway         gateway.Client
	cfg             config.Config
	obsMetrics      *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("payment.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		subscriptionSvc: p.SubscriptionSvc,
		gateway:         p.Gateway,
		cfg:             p.Cfg,
		obsMetrics:      p.ObsMetrics,
	}
}

// VerifyAndApplyPayment is the synchronous reconciliation path. Every step is
// a hard precondition; no state is mutated before the signature and the
// gateway's authoritative records check out.
func (s *Service) VerifyAndApplyPayment(ctx context.Context, req paymentdomain.VerifyPaymentRequest) (paymentdomain.VerifyPaymentResponse, error) {
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.GatewaySubscriptionID = strings.TrimSpace(req.GatewaySubscriptionID)
	req.Signature = strings.TrimSpace(req.Signature)
	req.UserID = strings.TrimSpace(req.UserID)

	if req.PaymentID == "" || req.GatewaySubscriptionID == "" || req.Signature == "" || req.UserID == "" {
		return paymentdomain.VerifyPaymentResponse{}, paymentdomain.ErrValidation
	}
	if !subscriptiondomain.IsPaidPlan(req.Plan) {
		return paymentdomain.VerifyPaymentResponse{}, subscriptiondomain.ErrInvalidPlan
	}

	// Fast path: a webhook or an earlier retry may already have activated
	// this subscription. Duplicate confirmations return success without
	// re-applying anything.
	existing, err := s.repo.FindByGatewaySubscriptionID(ctx, s.db, req.GatewaySubscriptionID)
	if err != nil {
		return paymentdomain.VerifyPaymentResponse{}, err
	}
	if existing != nil && existing.Status == subscriptiondomain.SubscriptionStatusActive {
		s.countDuplicate("sync")
		return paymentdomain.VerifyPaymentResponse{
			Success:    true,
			Plan:       req.Plan,
			ActivePlan: existing.PlanType,
		}, nil
	}

	if !gateway.VerifyPaymentSignature(req.PaymentID, req.GatewaySubscriptionID, req.Signature, s.cfg.GatewayKeySecret) {
		s.log.Warn("payment confirmation signature rejected",
			zap.String("user_id", req.UserID),
			zap.String("gateway_subscription_id", req.GatewaySubscriptionID),
		)
		return paymentdomain.VerifyPaymentResponse{}, paymentdomain.ErrSignatureInvalid
	}

	gatewaySub, err := s.gateway.FetchSubscription(ctx, req.GatewaySubscriptionID)
	if err != nil {
		return paymentdomain.VerifyPaymentResponse{}, err
	}
	gatewayPayment, err := s.gateway.FetchPayment(ctx, req.PaymentID)
	if err != nil {
		return paymentdomain.VerifyPaymentResponse{}, err
	}

	if req.IsUpgradeFromTrial {
		if err := s.applyTrialUpgrade(ctx, req, gatewaySub, gatewayPayment); err != nil {
			return paymentdomain.VerifyPaymentResponse{}, err
		}
	} else {
		if err := s.applyActivation(ctx, req, gatewaySub, gatewayPayment); err != nil {
			return paymentdomain.VerifyPaymentResponse{}, err
		}
	}

	if s.obsMetrics != nil {
		s.obsMetrics.PaymentsApplied.WithLabelValues("sync").Inc()
	}
	return paymentdomain.VerifyPaymentResponse{Success: true, Plan: req.Plan}, nil
}

// applyActivation moves the CREATED row to ACTIVE and appends the ledger row
// in one transaction; both commit together or neither does.
func (s *Service) applyActivation(ctx context.Context, req paymentdomain.VerifyPaymentRequest, gatewaySub *gateway.Subscription, gatewayPayment *gateway.Payment) error {
	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByGatewaySubscriptionIDForUpdate(ctx, tx, req.GatewaySubscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if subscription.Status == subscriptiondomain.SubscriptionStatusActive {
			// Lost the race against a concurrent delivery; converged.
			s.countDuplicate("sync")
			return nil
		}

		applyPeriod(subscription, gatewaySub)
		subscription.PlanType = req.Plan
		subscription.Status = subscriptiondomain.SubscriptionStatusActive
		subscription.UpdatedAt = now
		if err := s.repo.UpdateActivation(ctx, tx, subscription); err != nil {
			return err
		}

		inserted, err := s.repo.InsertTransaction(ctx, tx, s.buildTransaction(subscription, gatewayPayment, now))
		if err != nil {
			return err
		}
		if !inserted {
			s.countDuplicate("sync")
		}
		return nil
	})
}

// applyTrialUpgrade runs the trial manager's in-place conversion and the
// ledger append in one transaction; the status flip and the payment row
// commit together or not at all, so an interrupted upgrade leaves the trial
// intact and a retry re-applies the whole pair. A conversion failure here
// means the gateway has already collected money without a local entitlement;
// that is surfaced as a reconciliation conflict for operator remediation,
// never swallowed.
func (s *Service) applyTrialUpgrade(ctx context.Context, req paymentdomain.VerifyPaymentRequest, gatewaySub *gateway.Subscription, gatewayPayment *gateway.Payment) error {
	var periodStart, periodEnd *time.Time
	if gatewaySub.CurrentStart > 0 {
		start := time.Unix(gatewaySub.CurrentStart, 0).UTC()
		periodStart = &start
	}
	if gatewaySub.CurrentEnd > 0 {
		end := time.Unix(gatewaySub.CurrentEnd, 0).UTC()
		periodEnd = &end
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		converted, err := s.subscriptionSvc.ConvertTrialToPaid(ctx, subscriptiondomain.ConvertTrialRequest{
			UserID:                req.UserID,
			GatewaySubscriptionID: req.GatewaySubscriptionID,
			PlanType:              req.Plan,
			PeriodStart:           periodStart,
			PeriodEnd:             periodEnd,
			Tx:                    tx,
		})
		if err != nil {
			s.log.Error("trial conversion failed after gateway capture",
				zap.String("user_id", req.UserID),
				zap.String("gateway_subscription_id", req.GatewaySubscriptionID),
				zap.String("gateway_payment_id", req.PaymentID),
				zap.Error(err),
			)
			if s.obsMetrics != nil {
				s.obsMetrics.ReconciliationConflicts.Inc()
			}
			return fmt.Errorf("%w: %v", paymentdomain.ErrReconciliationConflict, err)
		}

		if _, err := s.repo.InsertTransaction(ctx, tx, s.buildTransaction(converted, gatewayPayment, s.clock.Now())); err != nil {
			s.log.Error("payment ledger append failed during trial conversion",
				zap.String("gateway_payment_id", req.PaymentID),
				zap.Error(err),
			)
			if s.obsMetrics != nil {
				s.obsMetrics.ReconciliationConflicts.Inc()
			}
			return fmt.Errorf("%w: %v", paymentdomain.ErrReconciliationConflict, err)
		}
		return nil
	})
}

func (s *Service) buildTransaction(subscription *subscriptiondomain.Subscription, payment *gateway.Payment, now time.Time) *subscriptiondomain.Transaction {
	paymentID := payment.ID
	transaction := &subscriptiondomain.Transaction{
		ID:               s.genID.Generate(),
		SubscriptionID:   subscription.ID,
		UserID:           subscription.UserID,
		GatewayPaymentID: &paymentID,
		Amount:           float64(payment.Amount) / 100, // minor to major unit
		Currency:         strings.ToUpper(payment.Currency),
		Status:           subscriptiondomain.TransactionStatusCaptured,
		CreatedAt:        now,
	}
	if payment.Method != "" {
		method := payment.Method
		transaction.Method = &method
	}
	if payment.Description != "" {
		description := payment.Description
		transaction.Description = &description
	}
	if len(payment.Notes) > 0 {
		notes := make(map[string]any, len(payment.Notes))
		for k, v := range payment.Notes {
			notes[k] = v
		}
		transaction.Notes = datatypes.JSONMap(notes)
	}
	return transaction
}

func applyPeriod(subscription *subscriptiondomain.Subscription, gatewaySub *gateway.Subscription) {
	if gatewaySub.CurrentStart > 0 {
		start := time.Unix(gatewaySub.CurrentStart, 0).UTC()
		subscription.CurrentPeriodStart = &start
	}
	if gatewaySub.CurrentEnd > 0 {
		end := time.Unix(gatewaySub.CurrentEnd, 0).UTC()
		subscription.CurrentPeriodEnd = &end
	}
}

func (s *Service) countDuplicate(path string) {
	if s.obsMetrics != nil {
		s.obsMetrics.DuplicatesSuppressed.WithLabelValues(path).Inc()
	}
}
