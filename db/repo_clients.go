package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"constructlink/models"
)

// ClientFilter 列表筛选
type ClientFilter struct {
	Q           string
	Status      string // "", "active", "inactive"
	CompanyType string
	Page        int
	Size        int
}

type ClientRepo struct {
	Table[models.Client]
}

func NewClientRepo(gdb *gorm.DB) *ClientRepo {
	return &ClientRepo{Table[models.Client]{
		DB:            gdb,
		SearchColumns: []string{"name", "contact_person", "email", "tax_id"},
		Order:         "name ASC",
	}}
}

func (r *ClientRepo) Search(ctx context.Context, f ClientFilter) (Page[models.Client], error) {
	q := ListQuery{Q: f.Q, Page: f.Page, Size: f.Size, Filters: map[string]any{}}
	switch f.Status {
	case "active":
		q.Filters["is_active"] = true
	case "inactive":
		q.Filters["is_active"] = false
	}
	if f.CompanyType != "" {
		q.Filters["company_type"] = f.CompanyType
	}
	return r.List(ctx, q)
}

func (r *ClientRepo) Create(ctx context.Context, c *models.Client) (Result, error) {
	taken, err := r.Taken(ctx, "name", c.Name, 0)
	if err != nil {
		return Result{}, err
	}
	if taken {
		return Invalid("name", "A client with this name already exists."), nil
	}
	c.IsActive = true
	if err := r.Insert(ctx, c); err != nil {
		return Result{}, fmt.Errorf("create client: %w", err)
	}
	return OK("Client created successfully."), nil
}

func (r *ClientRepo) Update(ctx context.Context, c *models.Client) (Result, error) {
	if err := r.exists(ctx, c.ID); err != nil {
		return Result{}, err
	}
	taken, err := r.Taken(ctx, "name", c.Name, c.ID)
	if err != nil {
		return Result{}, err
	}
	if taken {
		return Invalid("name", "A client with this name already exists."), nil
	}
	if err := r.Save(ctx, c); err != nil {
		return Result{}, fmt.Errorf("update client %d: %w", c.ID, err)
	}
	return OK("Client updated successfully."), nil
}

// Delete 仅在没有资产引用时物理删除，否则提示改为停用
func (r *ClientRepo) Delete(ctx context.Context, id uint) (Result, error) {
	if err := r.exists(ctx, id); err != nil {
		return Result{}, err
	}
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Asset{}).
		Where("client_id = ?", id).
		Count(&n).Error; err != nil {
		return Result{}, err
	}
	if n > 0 {
		return Fail(fmt.Sprintf("Cannot delete client: %d asset(s) are linked to it. Deactivate the client instead.", n)), nil
	}
	if err := r.Remove(ctx, id); err != nil {
		return Result{}, err
	}
	return OK("Client deleted successfully."), nil
}

// ToggleStatus flips is_active in one statement and returns the new row.
func (r *ClientRepo) ToggleStatus(ctx context.Context, id uint) (*models.Client, Result, error) {
	res := r.DB.WithContext(ctx).Model(&models.Client{}).
		Where("id = ?", id).
		Update("is_active", gorm.Expr("NOT is_active"))
	if res.Error != nil {
		return nil, Result{}, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, Result{}, ErrNotFound
	}
	c, err := r.Find(ctx, id)
	if err != nil {
		return nil, Result{}, err
	}
	msg := "Client deactivated."
	if c.IsActive {
		msg = "Client activated."
	}
	return c, OK(msg), nil
}

func (r *ClientRepo) Assets(ctx context.Context, id uint) ([]models.Asset, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}
	var as []models.Asset
	err := r.DB.WithContext(ctx).
		Where("client_id = ?", id).
		Order("ref ASC").
		Find(&as).Error
	return as, err
}

// Active lists active clients for dropdowns.
func (r *ClientRepo) Active(ctx context.Context) ([]models.Client, error) {
	var cs []models.Client
	err := r.DB.WithContext(ctx).
		Select("id", "name").
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&cs).Error
	return cs, err
}
