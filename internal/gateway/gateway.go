// Package gateway talks to the external payment gateway that owns the
// authoritative subscription and payment records.
package gateway

import (
	"context"
	"errors"
)

var (
	ErrSubscriptionNotFound = errors.New("gateway_subscription_not_found")
	ErrPaymentNotFound      = errors.New("gateway_payment_not_found")
	ErrGatewayUnavailable   = errors.New("gateway_unavailable")
)

// Subscription is the gateway's view of a subscription. Period bounds are
// unix seconds as delivered on the wire.
type Subscription struct {
	ID           string            `json:"id"`
	PlanID       string            `json:"plan_id"`
	Status       string            `json:"status"`
	CurrentStart int64             `json:"current_start"`
	CurrentEnd   int64             `json:"current_end"`
	Notes        map[string]string `json:"notes"`
}

// Payment is the gateway's view of a settled payment. Amount is in minor
// currency units.
type Payment struct {
	ID          string            `json:"id"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Status      string            `json:"status"`
	Method      string            `json:"method"`
	Description string            `json:"description"`
	Notes       map[string]string `json:"notes"`
}

// Client is the outbound interface to the gateway. A fake implementation is
// substituted in tests.
type Client interface {
	CreateSubscription(ctx context.Context, planID, userID string) (*Subscription, error)
	FetchSubscription(ctx context.Context, id string) (*Subscription, error)
	FetchPayment(ctx context.Context, id string) (*Payment, error)
}
