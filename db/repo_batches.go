package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"constructlink/models"
)

// Visibility limits which projects a caller may see. All wins over ProjectID;
// with neither set nothing is visible.
type Visibility struct {
	All       bool
	ProjectID *uint
}

type BatchRepo struct{ DB *gorm.DB }

func NewBatchRepo(gdb *gorm.DB) *BatchRepo { return &BatchRepo{DB: gdb} }

// FindForPrint loads the batch with its line items and assets.
func (r *BatchRepo) FindForPrint(ctx context.Context, id uint, vis Visibility) (*models.BorrowedToolBatch, error) {
	tx := r.DB.WithContext(ctx).
		Preload("Project").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Asset").
		Where("id = ?", id)
	if !vis.All {
		if vis.ProjectID == nil {
			return nil, ErrNotFound
		}
		tx = tx.Where("project_id = ?", *vis.ProjectID)
	}
	var b models.BorrowedToolBatch
	if err := tx.First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// MarkPrinted stamps printed_at on the batch row only; line items are untouched.
func (r *BatchRepo) MarkPrinted(ctx context.Context, id uint, at time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.BorrowedToolBatch{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"printed_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
