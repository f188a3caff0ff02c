// Package domain defines the reconciliation boundary: the synchronous
// client-confirmation path and the asynchronous gateway-webhook path, both of
// which converge the local subscription state onto gateway truth.
package domain

import (
	"context"
	"errors"

	"github.com/IkramBagban/proxlay-sub001/internal/gateway"
	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
)

var (
	ErrValidation             = errors.New("validation_failed")
	ErrSignatureInvalid       = errors.New("signature_invalid")
	ErrMissingSignature       = errors.New("missing_signature_header")
	ErrWebhookNotConfigured   = errors.New("webhook_secret_not_configured")
	ErrMissingIdentity        = errors.New("webhook_missing_user_identity")
	ErrSubscriptionRowMissing = errors.New("subscription_row_missing")
	ErrReconciliationConflict = errors.New("reconciliation_conflict")
)

// Webhook event types pushed by the gateway. Everything else is acknowledged
// and ignored.
const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCharged   = "subscription.charged"
)

type VerifyPaymentRequest struct {
	PaymentID             string                      `json:"gatewayPaymentId"`
	GatewaySubscriptionID string                      `json:"gatewaySubscriptionId"`
	Signature             string                      `json:"gatewaySignature"`
	UserID                string                      `json:"-"`
	Plan                  subscriptiondomain.PlanType `json:"plan"`
	IsUpgradeFromTrial    bool                        `json:"isUpgradeFromTrial"`
}

type VerifyPaymentResponse struct {
	Success    bool                        `json:"success"`
	Plan       subscriptiondomain.PlanType `json:"plan"`
	ActivePlan subscriptiondomain.PlanType `json:"activePlan,omitempty"`
}

// Service is the synchronous reconciler behind the client's verify-payment
// call.
type Service interface {
	VerifyAndApplyPayment(ctx context.Context, req VerifyPaymentRequest) (VerifyPaymentResponse, error)
}

// WebhookEnvelope is the gateway's webhook wire format: entities nested one
// level under the payload keys.
type WebhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Subscription struct {
			Entity gateway.Subscription `json:"entity"`
		} `json:"subscription"`
		Payment struct {
			Entity gateway.Payment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// WebhookService is the asynchronous reconciler. HandleWebhook must be safe
// against arbitrary redelivery and reordering of events.
type WebhookService interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error
}
