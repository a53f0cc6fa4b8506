package store

import (
	"context"

	"coinledger/internal/model"

	"gorm.io/gorm"
)

// ArchiveRepository 交易归档表访问层
// 排空任务写入 PENDING 行，投递任务负责推进状态
type ArchiveRepository struct {
	db *gorm.DB
}

func NewArchiveRepository(db *gorm.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

func (r *ArchiveRepository) Create(ctx context.Context, archive *model.TransactionArchive) error {
	return r.db.WithContext(ctx).Create(archive).Error
}

func (r *ArchiveRepository) GetPending(ctx context.Context, limit int) ([]*model.TransactionArchive, error) {
	var archives []*model.TransactionArchive
	err := r.db.WithContext(ctx).
		Where("status = ?", model.ArchiveStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&archives).Error
	return archives, err
}

func (r *ArchiveRepository) ListByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]*model.TransactionArchive, int64, error) {
	var archives []*model.TransactionArchive
	var total int64

	query := r.db.WithContext(ctx).Model(&model.TransactionArchive{}).Where("owner_id = ?", ownerID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&archives).Error

	return archives, total, err
}

func (r *ArchiveRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.TransactionArchive{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *ArchiveRepository) IncrementRetryCount(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.TransactionArchive{}).
		Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
}

func (r *ArchiveRepository) MarkAsFailed(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.TransactionArchive{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.ArchiveStatusFailed,
			"retry_count": gorm.Expr("retry_count + 1"),
		}).Error
}
