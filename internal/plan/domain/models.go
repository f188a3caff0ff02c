package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNoActivePlan           = errors.New("no_active_plan")
	ErrUnknownPlan            = errors.New("unknown_plan")
	ErrWorkspaceQuotaExceeded = errors.New("workspace_quota_exceeded")
	ErrVideoQuotaExceeded     = errors.New("video_quota_exceeded")
	ErrMemberQuotaExceeded    = errors.New("member_quota_exceeded")
)

const PlanUsageStatusActive = "ACTIVE"

// PlanUsage aggregates quota-relevant counters across every workspace the
// owner holds. Counters move only as side effects of successful gated
// actions; reads for gating never write.
type PlanUsage struct {
	ID                snowflake.ID `gorm:"column:id;primaryKey"`
	OwnerID           string       `gorm:"column:owner_id"`
	Status            string       `gorm:"column:status"`
	PlanType          string       `gorm:"column:plan_type"`
	TotalWorkspaces   int64        `gorm:"column:total_workspaces"`
	TotalVideoUploads int64        `gorm:"column:total_video_uploads"`
	TotalStorageUsed  int64        `gorm:"column:total_storage_used"`
	CreatedAt         time.Time    `gorm:"column:created_at"`
	UpdatedAt         time.Time    `gorm:"column:updated_at"`
}

func (PlanUsage) TableName() string {
	return "plan_usages"
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, usage *PlanUsage) error
	FindByOwnerID(ctx context.Context, db *gorm.DB, ownerID string) (*PlanUsage, error)
	FindByOwnerIDForUpdate(ctx context.Context, db *gorm.DB, ownerID string) (*PlanUsage, error)
	Update(ctx context.Context, db *gorm.DB, usage *PlanUsage) error
}

// Gate authorizes quota-limited actions. Reserve methods lock the owner's
// usage row, evaluate the limit, and apply the counter increment so that the
// caller can commit the gated action and the counter in one transaction.
type Gate interface {
	ReserveWorkspace(ctx context.Context, tx *gorm.DB, ownerID string) error
	ReserveUpload(ctx context.Context, tx *gorm.DB, ownerID string, sizeBytes int64) error
	AuthorizeMemberAdd(ctx context.Context, tx *gorm.DB, ownerID string, currentMemberCount int64) error
}
