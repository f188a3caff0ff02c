package repository

import (
	"context"

	workspacedomain "github.com/IkramBagban/proxlay-sub001/internal/workspace/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() workspacedomain.Repository {
	return &repo{}
}

func (r *repo) InsertWorkspace(ctx context.Context, db *gorm.DB, workspace *workspacedomain.Workspace) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO workspaces (id, owner_id, name, type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		workspace.ID,
		workspace.OwnerID,
		workspace.Name,
		workspace.Type,
		workspace.CreatedAt,
		workspace.UpdatedAt,
	).Error
}

func (r *repo) FindWorkspaceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*workspacedomain.Workspace, error) {
	var workspace workspacedomain.Workspace
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_id, name, type, created_at, updated_at
		 FROM workspaces WHERE id = ? LIMIT 1`,
		id,
	).Scan(&workspace).Error
	if err != nil {
		return nil, err
	}
	if workspace.ID == 0 {
		return nil, nil
	}
	return &workspace, nil
}

func (r *repo) InsertMember(ctx context.Context, db *gorm.DB, member *workspacedomain.WorkspaceMember) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO workspace_members (id, workspace_id, user_id, role, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		member.ID,
		member.WorkspaceID,
		member.UserID,
		member.Role,
		member.CreatedAt,
	).Error
}

func (r *repo) FindMember(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, userID string) (*workspacedomain.WorkspaceMember, error) {
	var member workspacedomain.WorkspaceMember
	err := db.WithContext(ctx).Raw(
		`SELECT id, workspace_id, user_id, role, created_at
		 FROM workspace_members WHERE workspace_id = ? AND user_id = ? LIMIT 1`,
		workspaceID,
		userID,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) CountMembers(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM workspace_members WHERE workspace_id = ?`,
		workspaceID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) InsertVideo(ctx context.Context, db *gorm.DB, video *workspacedomain.Video) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO videos (id, workspace_id, uploader_id, title, size_bytes, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		video.ID,
		video.WorkspaceID,
		video.UploaderID,
		video.Title,
		video.SizeBytes,
		video.Status,
		video.CreatedAt,
	).Error
}
