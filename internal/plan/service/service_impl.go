package service

import (
	"context"

	"github.com/IkramBagban/proxlay-sub001/internal/clock"
	"github.com/IkramBagban/proxlay-sub001/internal/config"
	obsmetrics "github.com/IkramBagban/proxlay-sub001/internal/observability/metrics"
	plandomain "github.com/IkramBagban/proxlay-sub001/internal/plan/domain"
	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Plans      *config.PlanConfigHolder
	Repo       plandomain.Repository
	SubRepo    subscriptiondomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	plans      *config.PlanConfigHolder
	repo       plandomain.Repository
	subRepo    subscriptiondomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) plandomain.Gate {
	return &Service{
		log:        p.Log.Named("plan.gate"),
		genID:      p.GenID,
		clock:      p.Clock,
		plans:      p.Plans,
		repo:       p.Repo,
		subRepo:    p.SubRepo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) ReserveWorkspace(ctx context.Context, tx *gorm.DB, ownerID string) error {
	usage, limits, err := s.lockUsage(ctx, tx, ownerID)
	if err != nil {
		return err
	}
	if !plandomain.CanCreateWorkspace(limits, usage.TotalWorkspaces) {
		s.countDenied("workspace_create")
		return plandomain.ErrWorkspaceQuotaExceeded
	}
	usage.TotalWorkspaces++
	usage.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, tx, usage)
}

func (s *Service) ReserveUpload(ctx context.Context, tx *gorm.DB, ownerID string, sizeBytes int64) error {
	usage, limits, err := s.lockUsage(ctx, tx, ownerID)
	if err != nil {
		return err
	}
	if !plandomain.CanUploadVideo(limits, usage.TotalVideoUploads, usage.TotalStorageUsed) {
		s.countDenied("video_upload")
		return plandomain.ErrVideoQuotaExceeded
	}
	usage.TotalVideoUploads++
	usage.TotalStorageUsed += sizeBytes
	usage.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, tx, usage)
}

func (s *Service) AuthorizeMemberAdd(ctx context.Context, tx *gorm.DB, ownerID string, currentMemberCount int64) error {
	_, limits, err := s.lockUsage(ctx, tx, ownerID)
	if err != nil {
		return err
	}
	if !plandomain.CanAddUserToWorkspace(limits, currentMemberCount) {
		s.countDenied("member_add")
		return plandomain.ErrMemberQuotaExceeded
	}
	return nil
}

// lockUsage resolves the owner's plan from the latest active subscription,
// then loads the usage row under a row lock, creating it on first use. The
// plan type is refreshed on every call so an upgrade takes effect without a
// separate sync step.
func (s *Service) lockUsage(ctx context.Context, tx *gorm.DB, ownerID string) (*plandomain.PlanUsage, config.PlanLimits, error) {
	subscription, err := s.subRepo.FindLatestActiveByUserID(ctx, tx, ownerID)
	if err != nil {
		return nil, config.PlanLimits{}, err
	}
	if subscription == nil {
		s.countDenied("no_active_plan")
		return nil, config.PlanLimits{}, plandomain.ErrNoActivePlan
	}

	limits, ok := s.plans.Limits(string(subscription.PlanType))
	if !ok {
		s.log.Error("subscription carries unconfigured plan",
			zap.String("owner_id", ownerID),
			zap.String("plan_type", string(subscription.PlanType)),
		)
		return nil, config.PlanLimits{}, plandomain.ErrUnknownPlan
	}

	usage, err := s.repo.FindByOwnerIDForUpdate(ctx, tx, ownerID)
	if err != nil {
		return nil, config.PlanLimits{}, err
	}
	now := s.clock.Now()
	if usage == nil {
		usage = &plandomain.PlanUsage{
			ID:        s.genID.Generate(),
			OwnerID:   ownerID,
			Status:    plandomain.PlanUsageStatusActive,
			PlanType:  string(subscription.PlanType),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Insert(ctx, tx, usage); err != nil {
			return nil, config.PlanLimits{}, err
		}
		return usage, limits, nil
	}
	if usage.PlanType != string(subscription.PlanType) {
		usage.PlanType = string(subscription.PlanType)
	}
	return usage, limits, nil
}

func (s *Service) countDenied(action string) {
	if s.obsMetrics != nil {
		s.obsMetrics.QuotaDenied.WithLabelValues(action).Inc()
	}
}
