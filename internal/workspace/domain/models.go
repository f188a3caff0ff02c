package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrValidation        = errors.New("validation_error")
	ErrWorkspaceNotFound = errors.New("workspace_not_found")
	ErrNotMember         = errors.New("not_workspace_member")
	ErrPermissionDenied  = errors.New("permission_denied")
	ErrMemberExists      = errors.New("member_already_exists")
	ErrInvalidRole       = errors.New("invalid_role")
)

const (
	WorkspaceTypeTeam     = "team"
	WorkspaceTypePersonal = "personal"
)

const VideoStatusUploaded = "UPLOADED"

type Workspace struct {
	ID        snowflake.ID `gorm:"column:id;primaryKey"`
	OwnerID   string       `gorm:"column:owner_id"`
	Name      string       `gorm:"column:name"`
	Type      string       `gorm:"column:type"`
	CreatedAt time.Time    `gorm:"column:created_at"`
	UpdatedAt time.Time    `gorm:"column:updated_at"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

type WorkspaceMember struct {
	ID          snowflake.ID `gorm:"column:id;primaryKey"`
	WorkspaceID snowflake.ID `gorm:"column:workspace_id"`
	UserID      string       `gorm:"column:user_id"`
	Role        string       `gorm:"column:role"`
	CreatedAt   time.Time    `gorm:"column:created_at"`
}

func (WorkspaceMember) TableName() string {
	return "workspace_members"
}

type Video struct {
	ID          snowflake.ID `gorm:"column:id;primaryKey"`
	WorkspaceID snowflake.ID `gorm:"column:workspace_id"`
	UploaderID  string       `gorm:"column:uploader_id"`
	Title       string       `gorm:"column:title"`
	SizeBytes   int64        `gorm:"column:size_bytes"`
	Status      string       `gorm:"column:status"`
	CreatedAt   time.Time    `gorm:"column:created_at"`
}

func (Video) TableName() string {
	return "videos"
}

type Repository interface {
	InsertWorkspace(ctx context.Context, db *gorm.DB, workspace *Workspace) error
	FindWorkspaceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Workspace, error)
	InsertMember(ctx context.Context, db *gorm.DB, member *WorkspaceMember) error
	FindMember(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, userID string) (*WorkspaceMember, error)
	CountMembers(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID) (int64, error)
	InsertVideo(ctx context.Context, db *gorm.DB, video *Video) error
}

type CreateWorkspaceRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type AddMemberRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type RecordUploadRequest struct {
	Title     string `json:"title"`
	SizeBytes int64  `json:"sizeBytes"`
}

type Service interface {
	CreateWorkspace(ctx context.Context, ownerID string, req *CreateWorkspaceRequest) (*Workspace, error)
	AddMember(ctx context.Context, actorID string, workspaceID snowflake.ID, req *AddMemberRequest) (*WorkspaceMember, error)
	RecordUpload(ctx context.Context, actorID string, workspaceID snowflake.ID, req *RecordUploadRequest) (*Video, error)
}
