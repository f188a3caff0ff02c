package webhook_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IkramBagban/proxlay-sub001/internal/clock"
	"github.com/IkramBagban/proxlay-sub001/internal/config"
	paymentdomain "github.com/IkramBagban/proxlay-sub001/internal/payment/domain"
	paymentwebhook "github.com/IkramBagban/proxlay-sub001/internal/payment/webhook"
	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
	subscriptionrepo "github.com/IkramBagban/proxlay-sub001/internal/subscription/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

type env struct {
	db   *gorm.DB
	clk  *clock.FakeClock
	node *snowflake.Node
	repo subscriptiondomain.Repository
	svc  paymentdomain.WebhookService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(13)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	repo := subscriptionrepo.Provide()
	svc := paymentwebhook.NewService(paymentwebhook.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repo,
		Cfg:   config.Config{GatewayWebhookSecret: webhookSecret},
	})
	return &env{db: db, clk: clk, node: node, repo: repo, svc: svc}
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (e *env) seedCreatedRow(t *testing.T, userID, gatewaySubscriptionID string) subscriptiondomain.Subscription {
	t.Helper()

	now := e.clk.Now()
	sub := subscriptiondomain.Subscription{
		ID:                    e.node.Generate(),
		UserID:                userID,
		GatewaySubscriptionID: &gatewaySubscriptionID,
		PlanType:              subscriptiondomain.PlanBasic,
		Status:                subscriptiondomain.SubscriptionStatusCreated,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := e.repo.Insert(context.Background(), e.db, &sub); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return sub
}

func eventBody(event, subID, payID string, startUnix, endUnix int64, withUserNote bool) []byte {
	notes := ""
	if withUserNote {
		notes = `,"notes":{"userId":"user-1"}`
	}
	return []byte(fmt.Sprintf(
		`{"event":%q,"payload":{"subscription":{"entity":{"id":%q,"status":"active","current_start":%d,"current_end":%d%s}},"payment":{"entity":{"id":%q,"amount":49900,"currency":"inr","status":"captured","method":"card"%s}}}}`,
		event, subID, startUnix, endUnix, notes, payID, notes,
	))
}

func (e *env) countTransactions(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := e.db.Raw(`SELECT COUNT(1) FROM transactions`).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func TestHandleWebhookActivates(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedCreatedRow(t, "user-1", "sub_1")

	now := e.clk.Now()
	body := eventBody(paymentdomain.EventSubscriptionActivated, "sub_1", "pay_1",
		now.Unix(), now.Add(30*24*time.Hour).Unix(), true)

	if err := e.svc.HandleWebhook(ctx, body, signBody(body)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	sub, err := e.repo.FindByGatewaySubscriptionID(ctx, e.db, "sub_1")
	if err != nil || sub == nil {
		t.Fatalf("find: %v %v", sub, err)
	}
	if sub.Status != subscriptiondomain.SubscriptionStatusActive {
		t.Fatalf("expected ACTIVE, got %s", sub.Status)
	}
	if sub.CurrentPeriodEnd == nil {
		t.Fatal("expected period bounds applied")
	}
	if got := e.countTransactions(t); got != 1 {
		t.Fatalf("expected 1 transaction, got %d", got)
	}
}

func TestHandleWebhookRedeliveryIsSuppressed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedCreatedRow(t, "user-1", "sub_1")

	now := e.clk.Now()
	body := eventBody(paymentdomain.EventSubscriptionActivated, "sub_1", "pay_1",
		now.Unix(), now.Add(30*24*time.Hour).Unix(), true)

	for i := 0; i < 3; i++ {
		if err := e.svc.HandleWebhook(ctx, body, signBody(body)); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if got := e.countTransactions(t); got != 1 {
		t.Fatalf("expected 1 transaction after redelivery, got %d", got)
	}
}

func TestHandleWebhookChargedAppendsPerCharge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedCreatedRow(t, "user-1", "sub_1")

	now := e.clk.Now()
	activated := eventBody(paymentdomain.EventSubscriptionActivated, "sub_1", "pay_1",
		now.Unix(), now.Add(30*24*time.Hour).Unix(), true)
	if err := e.svc.HandleWebhook(ctx, activated, signBody(activated)); err != nil {
		t.Fatalf("activated: %v", err)
	}

	// Next billing cycle charge: a fresh payment ID, a fresh ledger row.
	cycleEnd := now.Add(60 * 24 * time.Hour)
	charged := eventBody(paymentdomain.EventSubscriptionCharged, "sub_1", "pay_2",
		now.Add(30*24*time.Hour).Unix(), cycleEnd.Unix(), true)
	if err := e.svc.HandleWebhook(ctx, charged, signBody(charged)); err != nil {
		t.Fatalf("charged: %v", err)
	}
	if got := e.countTransactions(t); got != 2 {
		t.Fatalf("expected 2 transactions, got %d", got)
	}

	sub, err := e.repo.FindByGatewaySubscriptionID(ctx, e.db, "sub_1")
	if err != nil || sub == nil {
		t.Fatalf("find: %v %v", sub, err)
	}
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(time.Unix(cycleEnd.Unix(), 0).UTC()) {
		t.Fatalf("expected billing period refreshed, got %v", sub.CurrentPeriodEnd)
	}

	// Same charge delivered again stays suppressed.
	if err := e.svc.HandleWebhook(ctx, charged, signBody(charged)); err != nil {
		t.Fatalf("charged redelivery: %v", err)
	}
	if got := e.countTransactions(t); got != 2 {
		t.Fatalf("expected duplicate charge suppressed, got %d", got)
	}
}

func TestHandleWebhookSignatureFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	body := eventBody(paymentdomain.EventSubscriptionActivated, "sub_1", "pay_1", 0, 0, true)

	if err := e.svc.HandleWebhook(ctx, body, ""); !errors.Is(err, paymentdomain.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
	if err := e.svc.HandleWebhook(ctx, body, "deadbeef"); !errors.Is(err, paymentdomain.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}

	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = 'x'
	if err := e.svc.HandleWebhook(ctx, tampered, signBody(body)); !errors.Is(err, paymentdomain.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for tampered body, got %v", err)
	}
	if got := e.countTransactions(t); got != 0 {
		t.Fatalf("rejected deliveries must not write, got %d", got)
	}
}

func TestHandleWebhookWithoutConfiguredSecret(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	node, _ := snowflake.NewNode(14)
	svc := paymentwebhook.NewService(paymentwebhook.Params{
		DB:    e.db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: e.clk,
		Repo:  e.repo,
		Cfg:   config.Config{},
	})

	body := eventBody(paymentdomain.EventSubscriptionActivated, "sub_1", "pay_1", 0, 0, true)
	if err := svc.HandleWebhook(ctx, body, signBody(body)); !errors.Is(err, paymentdomain.ErrWebhookNotConfigured) {
		t.Fatalf("expected ErrWebhookNotConfigured, got %v", err)
	}
}

func TestHandleWebhookIgnoresUnknownEvents(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	body := eventBody("invoice.paid", "sub_1", "pay_1", 0, 0, true)
	if err := e.svc.HandleWebhook(ctx, body, signBody(body)); err != nil {
		t.Fatalf("unknown event must be acknowledged, got %v", err)
	}
	if got := e.countTransactions(t); got != 0 {
		t.Fatalf("unknown event must be a no-op, got %d", got)
	}
}

func TestHandleWebhookMissingIdentity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedCreatedRow(t, "user-1", "sub_1")

	body := eventBody(paymentdomain.EventSubscriptionActivated, "sub_1", "pay_1", 0, 0, false)
	if err := e.svc.HandleWebhook(ctx, body, signBody(body)); !errors.Is(err, paymentdomain.ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
}

func TestHandleWebhookUnknownSubscriptionRow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	body := eventBody(paymentdomain.EventSubscriptionActivated, "sub_ghost", "pay_1", 0, 0, true)
	if err := e.svc.HandleWebhook(ctx, body, signBody(body)); !errors.Is(err, paymentdomain.ErrSubscriptionRowMissing) {
		t.Fatalf("expected ErrSubscriptionRowMissing, got %v", err)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE subscriptions (
			id BIGINT PRIMARY KEY,
			user_id TEXT NOT NULL,
			gateway_subscription_id TEXT,
			plan_type TEXT NOT NULL,
			status TEXT NOT NULL,
			current_period_start TIMESTAMP,
			current_period_end TIMESTAMP,
			is_trial_subscription BOOLEAN NOT NULL DEFAULT FALSE,
			trial_start_date TIMESTAMP,
			trial_end_date TIMESTAMP,
			has_used_trial BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE transactions (
			id BIGINT PRIMARY KEY,
			subscription_id BIGINT NOT NULL,
			user_id TEXT NOT NULL,
			gateway_payment_id TEXT,
			amount NUMERIC NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			method TEXT,
			description TEXT,
			is_trial_transaction BOOLEAN NOT NULL DEFAULT FALSE,
			notes TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_subscriptions_user_trial
			ON subscriptions (user_id)
			WHERE is_trial_subscription`,
		`CREATE UNIQUE INDEX ux_transactions_gateway_payment_id
			ON transactions (gateway_payment_id)
			WHERE gateway_payment_id IS NOT NULL`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}
