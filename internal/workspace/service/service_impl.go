package service

import (
	"context"
	"strings"

	"github.com/IkramBagban/proxlay-sub001/internal/auth"
	"github.com/IkramBagban/proxlay-sub001/internal/clock"
	plandomain "github.com/IkramBagban/proxlay-sub001/internal/plan/domain"
	workspacedomain "github.com/IkramBagban/proxlay-sub001/internal/workspace/domain"
	"github.com/IkramBagban/proxlay-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  workspacedomain.Repository
	Gate  plandomain.Gate
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  workspacedomain.Repository
	gate  plandomain.Gate
}

func NewService(p Params) workspacedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("workspace.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		gate:  p.Gate,
	}
}

// CreateWorkspace reserves quota, creates the workspace, and enrolls the
// owner as its first member in one transaction.
func (s *Service) CreateWorkspace(ctx context.Context, ownerID string, req *workspacedomain.CreateWorkspaceRequest) (*workspacedomain.Workspace, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, workspacedomain.ErrValidation
	}
	workspaceType := req.Type
	if workspaceType == "" {
		workspaceType = workspacedomain.WorkspaceTypeTeam
	}
	if workspaceType != workspacedomain.WorkspaceTypeTeam && workspaceType != workspacedomain.WorkspaceTypePersonal {
		return nil, workspacedomain.ErrValidation
	}

	now := s.clock.Now()
	workspace := &workspacedomain.Workspace{
		ID:        s.genID.Generate(),
		OwnerID:   ownerID,
		Name:      name,
		Type:      workspaceType,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.gate.ReserveWorkspace(ctx, tx, ownerID); err != nil {
			return err
		}
		if err := s.repo.InsertWorkspace(ctx, tx, workspace); err != nil {
			return err
		}
		return s.repo.InsertMember(ctx, tx, &workspacedomain.WorkspaceMember{
			ID:          s.genID.Generate(),
			WorkspaceID: workspace.ID,
			UserID:      ownerID,
			Role:        auth.RoleOwner,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("workspace created",
		zap.Int64("workspace_id", int64(workspace.ID)),
		zap.String("owner_id", ownerID),
	)
	return workspace, nil
}

// AddMember gates the invite on the actor's role and the owner's member
// quota. The quota counts members of this workspace, not across workspaces.
func (s *Service) AddMember(ctx context.Context, actorID string, workspaceID snowflake.ID, req *workspacedomain.AddMemberRequest) (*workspacedomain.WorkspaceMember, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, workspacedomain.ErrValidation
	}
	if !auth.ValidRole(req.Role) {
		return nil, workspacedomain.ErrInvalidRole
	}

	member := &workspacedomain.WorkspaceMember{
		ID:          s.genID.Generate(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        req.Role,
		CreatedAt:   s.clock.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		workspace, err := s.authorize(ctx, tx, actorID, workspaceID, auth.PermissionWorkspaceInvite)
		if err != nil {
			return err
		}
		count, err := s.repo.CountMembers(ctx, tx, workspaceID)
		if err != nil {
			return err
		}
		if err := s.gate.AuthorizeMemberAdd(ctx, tx, workspace.OwnerID, count); err != nil {
			return err
		}
		if err := s.repo.InsertMember(ctx, tx, member); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return workspacedomain.ErrMemberExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RecordUpload registers a finished upload and charges it against the
// workspace owner's upload and storage quota atomically.
func (s *Service) RecordUpload(ctx context.Context, actorID string, workspaceID snowflake.ID, req *workspacedomain.RecordUploadRequest) (*workspacedomain.Video, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || req.SizeBytes <= 0 {
		return nil, workspacedomain.ErrValidation
	}

	video := &workspacedomain.Video{
		ID:          s.genID.Generate(),
		WorkspaceID: workspaceID,
		UploaderID:  actorID,
		Title:       title,
		SizeBytes:   req.SizeBytes,
		Status:      workspacedomain.VideoStatusUploaded,
		CreatedAt:   s.clock.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		workspace, err := s.authorize(ctx, tx, actorID, workspaceID, auth.PermissionVideoUpload)
		if err != nil {
			return err
		}
		if err := s.gate.ReserveUpload(ctx, tx, workspace.OwnerID, req.SizeBytes); err != nil {
			return err
		}
		return s.repo.InsertVideo(ctx, tx, video)
	})
	if err != nil {
		return nil, err
	}
	return video, nil
}

func (s *Service) authorize(ctx context.Context, tx *gorm.DB, actorID string, workspaceID snowflake.ID, permission string) (*workspacedomain.Workspace, error) {
	workspace, err := s.repo.FindWorkspaceByID(ctx, tx, workspaceID)
	if err != nil {
		return nil, err
	}
	if workspace == nil {
		return nil, workspacedomain.ErrWorkspaceNotFound
	}
	member, err := s.repo.FindMember(ctx, tx, workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, workspacedomain.ErrNotMember
	}
	if !auth.HasPermission(member.Role, permission) {
		return nil, workspacedomain.ErrPermissionDenied
	}
	return workspace, nil
}
