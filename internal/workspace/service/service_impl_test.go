package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IkramBagban/proxlay-sub001/internal/auth"
	"github.com/IkramBagban/proxlay-sub001/internal/clock"
	"github.com/IkramBagban/proxlay-sub001/internal/config"
	plandomain "github.com/IkramBagban/proxlay-sub001/internal/plan/domain"
	planrepo "github.com/IkramBagban/proxlay-sub001/internal/plan/repository"
	planservice "github.com/IkramBagban/proxlay-sub001/internal/plan/service"
	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
	subscriptionrepo "github.com/IkramBagban/proxlay-sub001/internal/subscription/repository"
	workspacedomain "github.com/IkramBagban/proxlay-sub001/internal/workspace/domain"
	workspacerepo "github.com/IkramBagban/proxlay-sub001/internal/workspace/repository"
	workspaceservice "github.com/IkramBagban/proxlay-sub001/internal/workspace/service"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const gb = int64(1) << 30

type env struct {
	db      *gorm.DB
	clk     *clock.FakeClock
	node    *snowflake.Node
	subRepo subscriptiondomain.Repository
	svc     workspacedomain.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(15)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	holder, err := config.NewPlanConfigHolder()
	if err != nil {
		t.Fatalf("plan config: %v", err)
	}
	subRepo := subscriptionrepo.Provide()
	gate := planservice.NewService(planservice.Params{
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Plans:   holder,
		Repo:    planrepo.Provide(),
		SubRepo: subRepo,
	})
	svc := workspaceservice.NewService(workspaceservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  workspacerepo.Provide(),
		Gate:  gate,
	})

	return &env{db: db, clk: clk, node: node, subRepo: subRepo, svc: svc}
}

func (e *env) seedActiveSubscription(t *testing.T, userID string, plan subscriptiondomain.PlanType) {
	t.Helper()

	now := e.clk.Now()
	gatewayID := fmt.Sprintf("sub_%s", userID)
	sub := subscriptiondomain.Subscription{
		ID:                    e.node.Generate(),
		UserID:                userID,
		GatewaySubscriptionID: &gatewayID,
		PlanType:              plan,
		Status:                subscriptiondomain.SubscriptionStatusActive,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := e.subRepo.Insert(context.Background(), e.db, &sub); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
}

func TestCreateWorkspaceRequiresActivePlan(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.svc.CreateWorkspace(ctx, "user-1", &workspacedomain.CreateWorkspaceRequest{Name: "recordings"})
	if !errors.Is(err, plandomain.ErrNoActivePlan) {
		t.Fatalf("expected ErrNoActivePlan, got %v", err)
	}
}

func TestCreateWorkspaceEnforcesPlanCap(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedActiveSubscription(t, "user-1", subscriptiondomain.PlanBasic)

	workspace, err := e.svc.CreateWorkspace(ctx, "user-1", &workspacedomain.CreateWorkspaceRequest{Name: "recordings"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if workspace.OwnerID != "user-1" {
		t.Fatalf("unexpected owner %q", workspace.OwnerID)
	}

	// The owner is enrolled as the first member in the same transaction.
	var members int64
	if err := e.db.Raw(`SELECT COUNT(1) FROM workspace_members WHERE workspace_id = ?`, workspace.ID).Scan(&members).Error; err != nil {
		t.Fatalf("count members: %v", err)
	}
	if members != 1 {
		t.Fatalf("expected owner membership, got %d members", members)
	}

	_, err = e.svc.CreateWorkspace(ctx, "user-1", &workspacedomain.CreateWorkspaceRequest{Name: "second"})
	if !errors.Is(err, plandomain.ErrWorkspaceQuotaExceeded) {
		t.Fatalf("expected ErrWorkspaceQuotaExceeded on BASIC, got %v", err)
	}

	// Denied creation must not leave partial state behind.
	var workspaces int64
	if err := e.db.Raw(`SELECT COUNT(1) FROM workspaces`).Scan(&workspaces).Error; err != nil {
		t.Fatalf("count workspaces: %v", err)
	}
	if workspaces != 1 {
		t.Fatalf("expected 1 workspace, got %d", workspaces)
	}
}

func TestAddMemberEnforcesRoleAndCap(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedActiveSubscription(t, "user-1", subscriptiondomain.PlanBasic)

	workspace, err := e.svc.CreateWorkspace(ctx, "user-1", &workspacedomain.CreateWorkspaceRequest{Name: "recordings"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// BASIC allows 5 members per workspace; the owner occupies one slot.
	for i := 2; i <= 5; i++ {
		_, err := e.svc.AddMember(ctx, "user-1", workspace.ID, &workspacedomain.AddMemberRequest{
			UserID: fmt.Sprintf("user-%d", i),
			Role:   auth.RoleEditor,
		})
		if err != nil {
			t.Fatalf("add member %d: %v", i, err)
		}
	}
	_, err = e.svc.AddMember(ctx, "user-1", workspace.ID, &workspacedomain.AddMemberRequest{
		UserID: "user-6",
		Role:   auth.RoleViewer,
	})
	if !errors.Is(err, plandomain.ErrMemberQuotaExceeded) {
		t.Fatalf("expected ErrMemberQuotaExceeded, got %v", err)
	}

	_, err = e.svc.AddMember(ctx, "user-1", workspace.ID, &workspacedomain.AddMemberRequest{
		UserID: "user-2",
		Role:   auth.RoleEditor,
	})
	if !errors.Is(err, plandomain.ErrMemberQuotaExceeded) && !errors.Is(err, workspacedomain.ErrMemberExists) {
		t.Fatalf("expected duplicate membership rejection, got %v", err)
	}

	// Editors can upload but not invite.
	_, err = e.svc.AddMember(ctx, "user-2", workspace.ID, &workspacedomain.AddMemberRequest{
		UserID: "user-7",
		Role:   auth.RoleViewer,
	})
	if !errors.Is(err, workspacedomain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for editor, got %v", err)
	}

	// Strangers are not even members.
	_, err = e.svc.AddMember(ctx, "stranger", workspace.ID, &workspacedomain.AddMemberRequest{
		UserID: "user-8",
		Role:   auth.RoleViewer,
	})
	if !errors.Is(err, workspacedomain.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestRecordUploadChargesOwnerQuota(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedActiveSubscription(t, "user-1", subscriptiondomain.PlanBasic)

	workspace, err := e.svc.CreateWorkspace(ctx, "user-1", &workspacedomain.CreateWorkspaceRequest{Name: "recordings"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	video, err := e.svc.RecordUpload(ctx, "user-1", workspace.ID, &workspacedomain.RecordUploadRequest{
		Title:     "standup",
		SizeBytes: 2 * gb,
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if video.Status != workspacedomain.VideoStatusUploaded {
		t.Fatalf("unexpected status %q", video.Status)
	}

	var used int64
	if err := e.db.Raw(`SELECT total_storage_used FROM plan_usages WHERE owner_id = ?`, "user-1").Scan(&used).Error; err != nil {
		t.Fatalf("read usage: %v", err)
	}
	if used != 2*gb {
		t.Fatalf("expected 2GB charged, got %d", used)
	}

	// Push usage to the storage ceiling; the next upload must be denied by
	// the storage bound alone.
	if err := e.db.Exec(`UPDATE plan_usages SET total_storage_used = ? WHERE owner_id = ?`, 50*gb, "user-1").Error; err != nil {
		t.Fatalf("update usage: %v", err)
	}
	_, err = e.svc.RecordUpload(ctx, "user-1", workspace.ID, &workspacedomain.RecordUploadRequest{
		Title:     "retro",
		SizeBytes: 1,
	})
	if !errors.Is(err, plandomain.ErrVideoQuotaExceeded) {
		t.Fatalf("expected ErrVideoQuotaExceeded, got %v", err)
	}

	// Viewers cannot upload.
	if _, err := e.svc.AddMember(ctx, "user-1", workspace.ID, &workspacedomain.AddMemberRequest{
		UserID: "user-2",
		Role:   auth.RoleViewer,
	}); err != nil {
		t.Fatalf("add viewer: %v", err)
	}
	_, err = e.svc.RecordUpload(ctx, "user-2", workspace.ID, &workspacedomain.RecordUploadRequest{
		Title:     "clip",
		SizeBytes: 1,
	})
	if !errors.Is(err, workspacedomain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for viewer, got %v", err)
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
		`CREATE TABLE plan_usages (
			id BIGINT PRIMARY KEY,
			owner_id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			plan_type TEXT NOT NULL,
			total_workspaces INT NOT NULL DEFAULT 0,
			total_video_uploads INT NOT NULL DEFAULT 0,
			total_storage_used BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE workspaces (
			id BIGINT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'team',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE workspace_members (
			id BIGINT PRIMARY KEY,
			workspace_id BIGINT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (workspace_id, user_id)
		)`,
		`CREATE TABLE videos (
			id BIGINT PRIMARY KEY,
			workspace_id BIGINT NOT NULL,
			uploader_id TEXT NOT NULL,
			title TEXT NOT NULL,
			size_bytes BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'UPLOADED',
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}
