package repository

import (
	"context"

	plandomain "github.com/IkramBagban/proxlay-sub001/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() plandomain.Repository {
	return &repo{}
}

const planUsageColumns = `id, owner_id, status, plan_type, total_workspaces,
	 total_video_uploads, total_storage_used, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, usage *plandomain.PlanUsage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plan_usages (
			id, owner_id, status, plan_type, total_workspaces,
			total_video_uploads, total_storage_used, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		usage.ID,
		usage.OwnerID,
		usage.Status,
		usage.PlanType,
		usage.TotalWorkspaces,
		usage.TotalVideoUploads,
		usage.TotalStorageUsed,
		usage.CreatedAt,
		usage.UpdatedAt,
	).Error
}

func (r *repo) FindByOwnerID(ctx context.Context, db *gorm.DB, ownerID string) (*plandomain.PlanUsage, error) {
	return r.findByOwnerID(ctx, db, ownerID, false)
}

func (r *repo) FindByOwnerIDForUpdate(ctx context.Context, db *gorm.DB, ownerID string) (*plandomain.PlanUsage, error) {
	return r.findByOwnerID(ctx, db, ownerID, true)
}

func (r *repo) findByOwnerID(ctx context.Context, db *gorm.DB, ownerID string, forUpdate bool) (*plandomain.PlanUsage, error) {
	var usage plandomain.PlanUsage
	err := db.WithContext(ctx).Raw(
		`SELECT `+planUsageColumns+`
		 FROM plan_usages WHERE owner_id = ?
		 LIMIT 1`+lockSuffix(db, forUpdate),
		ownerID,
	).Scan(&usage).Error
	if err != nil {
		return nil, err
	}
	if usage.ID == 0 {
		return nil, nil
	}
	return &usage, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, usage *plandomain.PlanUsage) error {
	return db.WithContext(ctx).Exec(
		`UPDATE plan_usages
		 SET plan_type = ?, total_workspaces = ?, total_video_uploads = ?,
		     total_storage_used = ?, updated_at = ?
		 WHERE id = ?`,
		usage.PlanType,
		usage.TotalWorkspaces,
		usage.TotalVideoUploads,
		usage.TotalStorageUsed,
		usage.UpdatedAt,
		usage.ID,
	).Error
}

func lockSuffix(db *gorm.DB, forUpdate bool) string {
	if !forUpdate {
		return ""
	}
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}
