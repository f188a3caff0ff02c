package webhook

import (
	"context"
	"encoding/json"
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

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       subscriptiondomain.Repository
	Cfg        config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       subscriptiondomain.Repository
	secret     string
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		secret:     p.Cfg.GatewayWebhookSecret,
		obsMetrics: p.ObsMetrics,
	}
}

// HandleWebhook processes one gateway delivery. A missing secret or signature
// header is a request-format problem, distinguished from a signature that
// fails verification; all three reject. Once the signature is verified,
// unrecognized event types are acknowledged as no-ops so the gateway does not
// retry them forever.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error {
	if s.secret == "" {
		s.log.Error("webhook secret not configured")
		return paymentdomain.ErrWebhookNotConfigured
	}
	if strings.TrimSpace(signatureHeader) == "" {
		s.log.Warn("webhook delivery without signature header")
		return paymentdomain.ErrMissingSignature
	}
	if !gateway.VerifyWebhookSignature(rawBody, signatureHeader, s.secret) {
		s.log.Warn("webhook signature rejected")
		return paymentdomain.ErrSignatureInvalid
	}

	var envelope paymentdomain.WebhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return paymentdomain.ErrValidation
	}

	switch envelope.Event {
	case paymentdomain.EventSubscriptionActivated:
		return s.onSubscriptionActivated(ctx, &envelope.Payload.Subscription.Entity, &envelope.Payload.Payment.Entity)
	case paymentdomain.EventSubscriptionCharged:
		return s.onSubscriptionCharged(ctx, &envelope.Payload.Subscription.Entity, &envelope.Payload.Payment.Entity)
	default:
		s.log.Debug("ignoring webhook event", zap.String("event", envelope.Event))
		return nil
	}
}

// onSubscriptionActivated applies the first-charge activation. The two
// idempotency checks are independent because either half of the event could
// have been retried alone: the subscription may already be ACTIVE while its
// transaction insert was lost, or vice versa.
func (s *Service) onSubscriptionActivated(ctx context.Context, sub *gateway.Subscription, payment *gateway.Payment) error {
	userID := userIDFromNotes(sub, payment)
	if userID == "" {
		s.log.Error("webhook carries no user identity",
			zap.String("gateway_subscription_id", sub.ID),
			zap.String("gateway_payment_id", payment.ID),
		)
		return paymentdomain.ErrMissingIdentity
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByGatewaySubscriptionIDForUpdate(ctx, tx, sub.ID)
		if err != nil {
			return err
		}
		if subscription == nil {
			// The CREATED row from the synchronous create call should
			// already exist; its absence is a data-integrity problem to
			// surface, not to drop.
			s.log.Error("webhook for unknown subscription",
				zap.String("gateway_subscription_id", sub.ID),
			)
			return paymentdomain.ErrSubscriptionRowMissing
		}

		if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
			applyPeriod(subscription, sub)
			subscription.Status = subscriptiondomain.SubscriptionStatusActive
			subscription.UpdatedAt = now
			if err := s.repo.UpdateActivation(ctx, tx, subscription); err != nil {
				return err
			}
		} else {
			s.countDuplicate()
		}

		inserted, err := s.repo.InsertTransaction(ctx, tx, s.buildTransaction(subscription, payment, userID, now))
		if err != nil {
			return err
		}
		if !inserted {
			s.countDuplicate()
			return nil
		}
		if s.obsMetrics != nil {
			s.obsMetrics.PaymentsApplied.WithLabelValues("webhook").Inc()
		}
		return nil
	})
}

// onSubscriptionCharged handles a recurring charge: each legitimate charge
// produces a new ledger row, only duplicate delivery of the same payment
// event is suppressed.
func (s *Service) onSubscriptionCharged(ctx context.Context, sub *gateway.Subscription, payment *gateway.Payment) error {
	userID := userIDFromNotes(sub, payment)
	if userID == "" {
		s.log.Error("webhook carries no user identity",
			zap.String("gateway_subscription_id", sub.ID),
			zap.String("gateway_payment_id", payment.ID),
		)
		return paymentdomain.ErrMissingIdentity
	}

	// Fast path; the unique index on gateway_payment_id inside the
	// transaction below is the authoritative check.
	existing, err := s.repo.FindTransactionByGatewayPaymentID(ctx, s.db, payment.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		s.countDuplicate()
		return nil
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByGatewaySubscriptionIDForUpdate(ctx, tx, sub.ID)
		if err != nil {
			return err
		}
		if subscription == nil {
			s.log.Error("webhook for unknown subscription",
				zap.String("gateway_subscription_id", sub.ID),
			)
			return paymentdomain.ErrSubscriptionRowMissing
		}

		applyPeriod(subscription, sub)
		subscription.Status = subscriptiondomain.SubscriptionStatusActive
		subscription.UpdatedAt = now
		if err := s.repo.UpdateActivation(ctx, tx, subscription); err != nil {
			return err
		}

		inserted, err := s.repo.InsertTransaction(ctx, tx, s.buildTransaction(subscription, payment, userID, now))
		if err != nil {
			return err
		}
		if !inserted {
			s.countDuplicate()
			return nil
		}
		if s.obsMetrics != nil {
			s.obsMetrics.PaymentsApplied.WithLabelValues("webhook").Inc()
		}
		return nil
	})
}

func (s *Service) buildTransaction(subscription *subscriptiondomain.Subscription, payment *gateway.Payment, userID string, now time.Time) *subscriptiondomain.Transaction {
	paymentID := payment.ID
	transaction := &subscriptiondomain.Transaction{
		ID:               s.genID.Generate(),
		SubscriptionID:   subscription.ID,
		UserID:           userID,
		GatewayPaymentID: &paymentID,
		Amount:           float64(payment.Amount) / 100,
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

// userIDFromNotes resolves identity from the subscription entity's notes with
// fallback to the payment's; the gateway carries no other identity on
// webhook payloads.
func userIDFromNotes(sub *gateway.Subscription, payment *gateway.Payment) string {
	if sub != nil {
		if id := strings.TrimSpace(sub.Notes["userId"]); id != "" {
			return id
		}
	}
	if payment != nil {
		if id := strings.TrimSpace(payment.Notes["userId"]); id != "" {
			return id
		}
	}
	return ""
}

func applyPeriod(subscription *subscriptiondomain.Subscription, sub *gateway.Subscription) {
	if sub.CurrentStart > 0 {
		start := time.Unix(sub.CurrentStart, 0).UTC()
		subscription.CurrentPeriodStart = &start
	}
	if sub.CurrentEnd > 0 {
		end := time.Unix(sub.CurrentEnd, 0).UTC()
		subscription.CurrentPeriodEnd = &end
	}
}

func (s *Service) countDuplicate() {
	if s.obsMetrics != nil {
		s.obsMetrics.DuplicatesSuppressed.WithLabelValues("webhook").Inc()
	}
}
